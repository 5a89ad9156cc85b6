package application

import (
	"context"
	"io"
	"log/slog"
	"time"

	"wafiPortal/internal/storage"
)

type agedLister struct {
	*fakeObjects
	ages map[string]time.Duration
}

func (a *agedLister) ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error) {
	metas, err := a.fakeObjects.ListObjects(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range metas {
		metas[i].LastModified = now.Add(-a.ages[metas[i].Key])
	}
	return metas, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
