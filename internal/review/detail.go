package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wafiPortal/internal/backend"
	"wafiPortal/internal/querycache"
	"wafiPortal/internal/submission"
)

var (
	// ErrNotFound means the backend has no submission with the requested id.
	ErrNotFound = errors.New("submission not found")
	// ErrNotEditing is returned by Save outside of the editing mode.
	ErrNotEditing = errors.New("status is not being edited")
	// ErrNotLoaded is returned by StartEdit before a successful Load.
	ErrNotLoaded = errors.New("submission not loaded")
	// ErrInvalidStatus rejects a save with a status outside the enumeration.
	ErrInvalidStatus = errors.New("invalid status")
)

// DetailSource reads and updates a single submission.
type DetailSource interface {
	GetSubmission(ctx context.Context, id string) (*submission.Detail, error)
	UpdateStatus(ctx context.Context, id string, update submission.UpdateStatusRequest) (string, error)
}

// Mode is the state of the status editor.
type Mode int

const (
	ModeViewing Mode = iota
	ModeEditing
)

// DetailView shows one submission and drives its status editor:
// viewing -> StartEdit -> editing -> Save (ok) -> viewing, or Cancel.
// A failed Save stays in editing with the error kept for display.
type DetailView struct {
	id     string
	source DetailSource
	cache  *querycache.Cache
	logger *slog.Logger

	detail *submission.Detail
	mode   Mode
	draft  submission.UpdateStatusRequest
	err    error
}

// NewDetailView builds the view of submission id. cache may be nil.
func NewDetailView(id string, source DetailSource, cache *querycache.Cache, logger *slog.Logger) *DetailView {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailView{id: id, source: source, cache: cache, logger: logger}
}

// Load fetches the submission, from cache when fresh.
func (v *DetailView) Load(ctx context.Context) (*submission.Detail, error) {
	detail, err := querycache.Fetch(ctx, v.cache, detailKey(v.id), func(ctx context.Context) (*submission.Detail, error) {
		return v.source.GetSubmission(ctx, v.id)
	})
	if errors.Is(err, backend.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.detail = detail
	return detail, nil
}

// Detail returns the last loaded submission.
func (v *DetailView) Detail() *submission.Detail { return v.detail }

// Mode returns the editor state.
func (v *DetailView) Mode() Mode { return v.mode }

// Draft returns the pending status and notes.
func (v *DetailView) Draft() submission.UpdateStatusRequest { return v.draft }

// Err returns the error of the last failed save.
func (v *DetailView) Err() error { return v.err }

// StartEdit opens the editor, seeded with the current status and notes.
func (v *DetailView) StartEdit() error {
	if v.detail == nil {
		return ErrNotLoaded
	}
	v.mode = ModeEditing
	v.draft = submission.UpdateStatusRequest{Status: v.detail.Status, AdminNotes: v.detail.AdminNotes}
	v.err = nil
	return nil
}

// SetDraft changes the pending values while editing.
func (v *DetailView) SetDraft(status submission.Status, notes string) {
	if v.mode != ModeEditing {
		return
	}
	v.draft = submission.UpdateStatusRequest{Status: status, AdminNotes: notes}
}

// Cancel closes the editor without sending anything.
func (v *DetailView) Cancel() {
	v.mode = ModeViewing
	v.draft = submission.UpdateStatusRequest{}
	v.err = nil
}

// Save sends exactly one status update. On success the cached detail and all
// cached list pages are invalidated and the editor closes.
func (v *DetailView) Save(ctx context.Context) (string, error) {
	if v.mode != ModeEditing {
		return "", ErrNotEditing
	}
	if !v.draft.Status.Known() {
		v.err = ErrInvalidStatus
		return "", ErrInvalidStatus
	}

	msg, err := v.source.UpdateStatus(ctx, v.id, v.draft)
	if err != nil {
		v.err = err
		return "", fmt.Errorf("save status: %w", err)
	}

	if err := v.cache.Invalidate(ctx, detailKey(v.id)); err != nil {
		v.logger.Warn("invalidate cached submission", slog.String("id", v.id), slog.Any("error", err))
	}
	if err := v.cache.InvalidatePrefix(ctx, listKeyPrefix); err != nil {
		v.logger.Warn("invalidate cached submission lists", slog.Any("error", err))
	}

	v.mode = ModeViewing
	v.draft = submission.UpdateStatusRequest{}
	v.err = nil
	v.detail = nil
	return msg, nil
}
