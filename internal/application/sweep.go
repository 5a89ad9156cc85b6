package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wafiPortal/internal/storage"
)

// StagingLister lists and removes staged objects.
type StagingLister interface {
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, key string) error
}

const sweepBatch = 500

// SweepStaging deletes staged CVs older than maxAge, which belong to drafts
// that expired without being submitted. It returns the number removed.
func SweepStaging(ctx context.Context, objects StagingLister, maxAge time.Duration, now time.Time, logger *slog.Logger) (int, error) {
	metas, err := objects.ListObjects(ctx, StagingPrefix, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list staged cvs: %w", err)
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, meta := range metas {
		if !meta.LastModified.Before(cutoff) || !isStagingKey(meta.Key) {
			continue
		}
		if err := objects.DeleteObject(ctx, meta.Key); err != nil {
			logger.Warn("sweep staged cv", slog.String("object_key", meta.Key), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}
