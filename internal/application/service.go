package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wafiPortal/internal/scan"
	"wafiPortal/internal/storage"
	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

// StagingPrefix is where accepted CVs wait for submission.
const StagingPrefix = "staging/cv/"

const msgCVExpired = "انتهت صلاحية الملف المرفوع، الرجاء رفعه مرة أخرى"

var (
	// ErrSubmitFailed wraps any failure of the submit call; the draft is kept.
	ErrSubmitFailed = errors.New("حدث خطأ أثناء إرسال طلبك. يرجى المحاولة مرة أخرى.")
	// ErrSubmitInProgress is returned while another submit of the same session
	// is pending.
	ErrSubmitInProgress = errors.New("submit already in progress")
)

// Submitter sends a packaged application to the backend.
type Submitter interface {
	SubmitApplication(ctx context.Context, body []byte, contentType string) (*submission.SubmitFormResponse, error)
}

// ObjectStore holds staged CVs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
}

// DraftStore persists drafts per browser session.
type DraftStore interface {
	Load(ctx context.Context, sid string) (*Draft, error)
	Save(ctx context.Context, sid string, d *Draft) error
	Delete(ctx context.Context, sid string) error
}

// Locker guards a session against concurrent submits.
type Locker interface {
	TryLock(ctx context.Context, sid string) (bool, error)
	Unlock(ctx context.Context, sid string) error
}

// Submitted describes an accepted application, for follow-up work such as
// the printable receipt.
type Submitted struct {
	SessionID string
	Response  submission.SubmitFormResponse
	App       *validation.Application
	At        time.Time
}

// SubmitHook runs after a successful submit. Its error is logged only.
type SubmitHook func(ctx context.Context, s Submitted) error

// Upload is a file chosen in the form.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// Service runs the form operations against the stores.
type Service struct {
	drafts    DraftStore
	objects   ObjectStore
	scanner   scan.Scanner
	submitter Submitter
	locker    Locker
	onSubmit  SubmitHook
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker enables the double-submit guard.
func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

// WithScanner scans CVs before staging them.
func WithScanner(sc scan.Scanner) Option { return func(s *Service) { s.scanner = sc } }

// WithSubmitHook registers a hook run after each successful submit.
func WithSubmitHook(h SubmitHook) Option { return func(s *Service) { s.onSubmit = h } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService wires a Service.
func NewService(drafts DraftStore, objects ObjectStore, submitter Submitter, opts ...Option) *Service {
	s := &Service{
		drafts:    drafts,
		objects:   objects,
		scanner:   scan.Disabled{},
		submitter: submitter,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draft loads the session's draft, or a fresh one.
func (s *Service) Draft(ctx context.Context, sid string) (*Draft, error) {
	d, err := s.drafts.Load(ctx, sid)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return NewDraft(), nil
	}
	d.ensureExperience()
	return d, nil
}

// SaveDraft persists d for the session.
func (s *Service) SaveDraft(ctx context.Context, sid string, d *Draft) error {
	return s.drafts.Save(ctx, sid, d)
}

// AttachCV checks, scans and stages up as the draft's CV. On any error the
// draft keeps its previous CV.
func (s *Service) AttachCV(ctx context.Context, sid string, d *Draft, up Upload) error {
	if up.Size > MaxCVBytes {
		return ErrFileTooLarge
	}
	if up.Size <= 0 {
		return ErrEmptyFile
	}
	contentType, ext, ok := cvType(up.FileName, up.ContentType)
	if !ok {
		return ErrFileType
	}

	if err := s.scanner.Scan(ctx, up.Content); err != nil {
		return fmt.Errorf("scan cv: %w", err)
	}
	if _, err := up.Content.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind cv: %w", err)
	}

	key := StagingPrefix + sid + "/" + uuid.NewString() + ext
	if err := s.objects.PutObject(ctx, key, up.Content, up.Size, contentType); err != nil {
		return fmt.Errorf("stage cv: %w", err)
	}

	previous := d.CV
	d.CV = &CV{FileName: cleanFileName(up.FileName), ContentType: contentType, Size: up.Size, ObjectKey: key}
	if err := s.drafts.Save(ctx, sid, d); err != nil {
		d.CV = previous
		s.discard(ctx, key)
		return err
	}
	if previous != nil {
		s.discard(ctx, previous.ObjectKey)
	}
	s.logger.Info("cv staged", slog.String("object_key", key), slog.Int64("size", up.Size))
	return nil
}

// RemoveCV detaches the draft's CV.
func (s *Service) RemoveCV(ctx context.Context, sid string, d *Draft) error {
	if d.CV == nil {
		return nil
	}
	key := d.CV.ObjectKey
	d.CV = nil
	if err := s.drafts.Save(ctx, sid, d); err != nil {
		return err
	}
	s.discard(ctx, key)
	return nil
}

// Submit validates the draft and, if valid, sends it as one multipart POST.
// Field errors come back as validation.FieldErrors and nothing is sent. On
// success the draft, its CV and its signature are cleared; on failure they
// are left untouched and the error wraps ErrSubmitFailed.
func (s *Service) Submit(ctx context.Context, sid string, d *Draft) (*submission.SubmitFormResponse, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sid)
		if err != nil {
			return nil, fmt.Errorf("acquire submit lock: %w", err)
		}
		if !ok {
			return nil, ErrSubmitInProgress
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), sid); err != nil {
				s.logger.Warn("release submit lock", slog.Any("error", err))
			}
		}()
	}

	app, fieldErrs := validation.ValidateApplication(d.Fields)
	if fieldErrs != nil {
		return nil, fieldErrs
	}

	var attachment *Attachment
	if d.CV != nil {
		rc, err := s.objects.OpenObject(ctx, d.CV.ObjectKey)
		if storage.IsNoSuchKey(err) {
			return nil, validation.FieldErrors{"cv": msgCVExpired}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: open staged cv: %v", ErrSubmitFailed, err)
		}
		defer rc.Close()
		attachment = &Attachment{FileName: d.CV.FileName, ContentType: d.CV.ContentType, Content: rc}
	}

	body, contentType, err := BuildMultipart(app, attachment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	resp, err := s.submitter.SubmitApplication(ctx, body, contentType)
	if err != nil {
		s.logger.Error("submit application", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if d.CV != nil {
		s.discard(ctx, d.CV.ObjectKey)
	}
	d.Reset()
	if err := s.drafts.Delete(ctx, sid); err != nil {
		s.logger.Warn("delete submitted draft", slog.Any("error", err))
	}

	if s.onSubmit != nil {
		done := Submitted{SessionID: sid, Response: *resp, App: app, At: s.now()}
		if err := s.onSubmit(ctx, done); err != nil {
			s.logger.Error("post-submit hook", slog.String("reference_code", resp.ReferenceCode), slog.Any("error", err))
		}
	}
	s.logger.Info("application submitted", slog.String("reference_code", resp.ReferenceCode))
	return resp, nil
}

// Discard drops the session's draft and its staged CV.
func (s *Service) Discard(ctx context.Context, sid string) error {
	d, err := s.drafts.Load(ctx, sid)
	if err != nil {
		return err
	}
	if d != nil && d.CV != nil {
		s.discard(ctx, d.CV.ObjectKey)
	}
	return s.drafts.Delete(ctx, sid)
}

func (s *Service) discard(ctx context.Context, key string) {
	if !isStagingKey(key) {
		return
	}
	if err := s.objects.DeleteObject(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("delete staged cv", slog.String("object_key", key), slog.Any("error", err))
	}
}
