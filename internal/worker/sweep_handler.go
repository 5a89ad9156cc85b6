package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"wafiPortal/internal/application"
	"wafiPortal/internal/tasks"
)

// StagingSweepHandler removes staged CVs whose drafts were abandoned.
type StagingSweepHandler struct {
	objects       application.StagingLister
	defaultMaxAge time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewStagingSweepHandler creates the handler. defaultMaxAge applies when the
// task payload does not carry one.
func NewStagingSweepHandler(objects application.StagingLister, defaultMaxAge time.Duration, logger *slog.Logger) *StagingSweepHandler {
	return &StagingSweepHandler{
		objects:       objects,
		defaultMaxAge: defaultMaxAge,
		logger:        logger,
		now:           time.Now,
	}
}

// ProcessTask implements asynq.Handler.
func (h *StagingSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.StagingSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	maxAge := time.Duration(payload.MaxAgeSeconds) * time.Second
	if maxAge <= 0 {
		maxAge = h.defaultMaxAge
	}

	removed, err := application.SweepStaging(ctx, h.objects, maxAge, h.now(), h.logger)
	if err != nil {
		h.logger.Error("staging sweep failed", slog.Any("error", err))
		return err
	}
	h.logger.Info("staging sweep completed", slog.Int("removed", removed), slog.Duration("max_age", maxAge))
	return nil
}
