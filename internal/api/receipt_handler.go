package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"wafiPortal/internal/api/middleware"
	"wafiPortal/internal/application"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/database"
	"wafiPortal/internal/tasks"
)

// ReceiptStore is the receipt persistence used by the portal.
type ReceiptStore interface {
	Create(ctx context.Context, r *database.Receipt, summary database.ReceiptSummary) error
	FindByReference(ctx context.Context, ref string) (*database.Receipt, error)
}

// TaskEnqueuer queues background work.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Presigner hands out temporary download links.
type Presigner interface {
	PresignedDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error)
}

// ReceiptIssuer records a receipt for every accepted application and queues
// its PDF generation.
type ReceiptIssuer struct {
	receipts ReceiptStore
	queue    TaskEnqueuer
	logger   *slog.Logger
}

// NewReceiptIssuer builds the issuer.
func NewReceiptIssuer(receipts ReceiptStore, queue TaskEnqueuer, logger *slog.Logger) *ReceiptIssuer {
	return &ReceiptIssuer{receipts: receipts, queue: queue, logger: logger}
}

// Issue is an application.SubmitHook.
func (i *ReceiptIssuer) Issue(ctx context.Context, s application.Submitted) error {
	ref := s.Response.ReferenceCode
	if ref == "" {
		return errors.New("submit response carries no reference code")
	}
	if s.App == nil {
		return errors.New("submitted application is missing")
	}

	receipt := &database.Receipt{
		ReferenceCode: ref,
		SubmissionID:  s.Response.SubmissionID,
		SessionID:     s.SessionID,
		ApplicantName: s.App.ApplicantName,
		Email:         s.App.Email,
		SubmittedAt:   s.At,
	}
	if err := i.receipts.Create(ctx, receipt, receiptSummary(s)); err != nil {
		return err
	}

	task, err := tasks.NewReceiptGenerateTask(ref, backend.CorrelationID(ctx))
	if err != nil {
		return fmt.Errorf("build receipt task: %w", err)
	}
	info, err := i.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue receipt task: %w", err)
	}
	i.logger.Info("receipt queued", slog.String("reference_code", ref), slog.String("task_id", info.ID))
	return nil
}

func receiptSummary(s application.Submitted) database.ReceiptSummary {
	app := s.App
	summary := database.ReceiptSummary{
		FullName:       app.FullName,
		NationalID:     maskID(app.NationalID),
		DateOfBirth:    app.DateOfBirth,
		Nationality:    app.Nationality,
		MaritalStatus:  app.MaritalStatus.Text(),
		Phone:          app.Phone,
		Email:          app.Email,
		Address:        app.Address,
		Qualification:  app.Qualification,
		Major:          app.Major,
		GraduationYear: app.GraduationYear,
		AppliedBefore:  app.AppliedBefore,
		HasRelatives:   app.RelativesInCompany,
		ApplicantName:  app.ApplicantName,
		Signature:      app.Signature,
	}
	for _, exp := range app.WorkExperiences {
		if exp.IsBlank() {
			continue
		}
		summary.WorkExperiences = append(summary.WorkExperiences, database.ReceiptWorkExperience{
			Company:  exp.Company,
			Position: exp.Position,
			Duration: exp.Duration,
		})
	}
	return summary
}

// maskID keeps the last four characters of an identity number.
func maskID(id string) string {
	n := utf8.RuneCountInString(id)
	if n <= 4 {
		return id
	}
	runes := []rune(id)
	return strings.Repeat("*", n-4) + string(runes[n-4:])
}

// ReceiptHandler serves the confirmation page and the receipt download.
type ReceiptHandler struct {
	receipts ReceiptStore
	objects  Presigner
	pages    pages
	linkTTL  time.Duration
}

// NewReceiptHandler builds the handler.
func NewReceiptHandler(receipts ReceiptStore, objects Presigner, p pages, linkTTL time.Duration) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, objects: objects, pages: p, linkTTL: linkTTL}
}

type confirmationPage struct {
	basePage
	ReferenceCode string
	ReceiptStatus string
}

// ownedReceipt returns the receipt for ref when it belongs to the calling
// browser session.
func (h *ReceiptHandler) ownedReceipt(c *gin.Context, ref string) (*database.Receipt, error) {
	r, err := h.receipts.FindByReference(c.Request.Context(), ref)
	if err != nil {
		return nil, err
	}
	if r.SessionID == "" || r.SessionID != middleware.GetSessionID(c) {
		return nil, database.ErrReceiptNotFound
	}
	return r, nil
}

// Confirmation shows the reference code of a just-submitted application.
func (h *ReceiptHandler) Confirmation(c *gin.Context) {
	ref := c.Param("ref")
	if !validReference(ref) {
		showMessage(h.pages, c, http.StatusNotFound, "غير موجود", msgNotFound, "/form", "العودة إلى النموذج")
		return
	}
	page := confirmationPage{
		basePage:      basePage{Title: "تم إرسال طلبك"},
		ReferenceCode: ref,
	}
	r, err := h.ownedReceipt(c, ref)
	switch {
	case err == nil:
		page.ReceiptStatus = r.Status
	case !errors.Is(err, database.ErrReceiptNotFound):
		middleware.LoggerFromContext(c).Warn("load receipt failed", slog.Any("error", err))
	}
	h.pages.render(c, http.StatusOK, "confirmation", page)
}

// Download redirects to a short-lived link to the receipt PDF.
func (h *ReceiptHandler) Download(c *gin.Context) {
	ref := c.Param("ref")
	log := middleware.LoggerFromContext(c)
	r, err := h.ownedReceipt(c, ref)
	if errors.Is(err, database.ErrReceiptNotFound) {
		showMessage(h.pages, c, http.StatusNotFound, "غير موجود", msgNotFound, "/form", "العودة إلى النموذج")
		return
	}
	if err != nil {
		log.Error("load receipt failed", slog.Any("error", err))
		showMessage(h.pages, c, http.StatusInternalServerError, "خطأ", msgGenericError, "/form/confirmation/"+ref, "العودة")
		return
	}
	if r.Status != database.ReceiptReady || r.ObjectKey == "" {
		showMessage(h.pages, c, http.StatusConflict, "الإيصال غير جاهز", "جاري تجهيز الإيصال. يرجى المحاولة بعد قليل.", "/form/confirmation/"+ref, "العودة")
		return
	}
	link, err := h.objects.PresignedDownloadURL(c.Request.Context(), r.ObjectKey, "receipt-"+ref+".pdf", h.linkTTL)
	if err != nil {
		log.Error("presign receipt failed", slog.Any("error", err))
		showMessage(h.pages, c, http.StatusInternalServerError, "خطأ", msgGenericError, "/form/confirmation/"+ref, "العودة")
		return
	}
	c.Redirect(http.StatusFound, link)
}

// validReference accepts any printable reference without a path separator.
func validReference(ref string) bool {
	if ref == "" || len(ref) > 64 || !utf8.ValidString(ref) {
		return false
	}
	for _, r := range ref {
		if r == '/' || r == '\\' || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
