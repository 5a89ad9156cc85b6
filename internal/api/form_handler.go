package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"wafiPortal/internal/api/middleware"
	"wafiPortal/internal/application"
	"wafiPortal/internal/scan"
	"wafiPortal/internal/signature"
	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

// FormService is the form orchestration behind the public pages.
type FormService interface {
	Draft(ctx context.Context, sid string) (*application.Draft, error)
	SaveDraft(ctx context.Context, sid string, d *application.Draft) error
	AttachCV(ctx context.Context, sid string, d *application.Draft, up application.Upload) error
	RemoveCV(ctx context.Context, sid string, d *application.Draft) error
	Submit(ctx context.Context, sid string, d *application.Draft) (*submission.SubmitFormResponse, error)
}

const multipartMemory = 8 << 20

// FormHandler serves the job application form.
type FormHandler struct {
	forms    FormService
	pages    pages
	maxBytes int64
}

// NewFormHandler builds the handler. maxBytes is the CV size ceiling.
func NewFormHandler(forms FormService, p pages, maxBytes int64) *FormHandler {
	if maxBytes <= 0 {
		maxBytes = application.MaxCVBytes
	}
	return &FormHandler{forms: forms, pages: p, maxBytes: maxBytes}
}

type option struct {
	Value    string
	Text     string
	Selected bool
}

type formPage struct {
	basePage
	F                     validation.ApplicationInput
	Errors                validation.FieldErrors
	Experiences           []submission.WorkExperience
	CanRemoveExperience   bool
	CV                    *application.CV
	MaritalOptions        []option
	ShowAppliedBeforeWhen bool
	ShowRelativesDetails  bool
	Signature             string
	PadWidth              int
	PadHeight             int
	MaxCVMB               int64
}

func (h *FormHandler) page(d *application.Draft, errs validation.FieldErrors, notice string) formPage {
	experiences := d.Experiences()
	marital := make([]option, 0, len(submission.MaritalStatuses))
	for _, m := range submission.MaritalStatuses {
		marital = append(marital, option{Value: string(m), Text: m.Text(), Selected: d.Fields.MaritalStatus == string(m)})
	}
	return formPage{
		basePage:              basePage{Title: "نموذج طلب التوظيف", Notice: notice},
		F:                     d.Fields,
		Errors:                errs,
		Experiences:           experiences,
		CanRemoveExperience:   len(experiences) > 1,
		CV:                    d.CV,
		MaritalOptions:        marital,
		ShowAppliedBeforeWhen: d.ShowAppliedBeforeWhen(),
		ShowRelativesDetails:  d.ShowRelativesDetails(),
		Signature:             d.Fields.Signature,
		PadWidth:              signature.DefaultWidth,
		PadHeight:             signature.DefaultHeight,
		MaxCVMB:               h.maxBytes / (1024 * 1024),
	}
}

// Show renders the session's draft.
func (h *FormHandler) Show(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	d, err := h.forms.Draft(c.Request.Context(), sid)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load draft failed", slog.Any("error", err))
		d = application.NewDraft()
		h.pages.render(c, http.StatusOK, "form", h.page(d, nil, msgGenericError))
		return
	}
	h.pages.render(c, http.StatusOK, "form", h.page(d, nil, ""))
}

// Post applies one form action: save, add/remove experience, remove the CV,
// clear the signature or submit. A chosen CV file is staged on every action.
func (h *FormHandler) Post(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.GetSessionID(c)
	log := middleware.LoggerFromContext(c)

	d, err := h.forms.Draft(ctx, sid)
	if err != nil {
		log.Error("load draft failed", slog.Any("error", err))
		h.pages.render(c, http.StatusInternalServerError, "form", h.page(application.NewDraft(), nil, msgGenericError))
		return
	}

	// Leave room for the other fields around a file just above the ceiling,
	// so that it is rejected with the size message rather than a parse error.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxBytes+multipartMemory)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.pages.render(c, http.StatusRequestEntityTooLarge, "form", h.page(d, validation.FieldErrors{"cv": application.ErrFileTooLarge.Error()}, ""))
			return
		}
		log.Warn("parse form failed", slog.Any("error", err))
		h.pages.render(c, http.StatusBadRequest, "form", h.page(d, nil, msgGenericError))
		return
	}
	if c.Request.MultipartForm != nil {
		defer func() { _ = c.Request.MultipartForm.RemoveAll() }()
	}

	errs := validation.FieldErrors{}
	bindDraft(c, d)
	if err := bindSignature(c, d); err != nil {
		log.Warn("discarding signature strokes", slog.Any("error", err))
		errs["signature"] = "تعذر قراءة التوقيع. يرجى التوقيع مرة أخرى."
	}

	if fh, err := c.FormFile("cv"); err == nil && fh.Filename != "" {
		if msg := h.attachCV(ctx, log, sid, d, fh); msg != "" {
			errs["cv"] = msg
		}
	}

	action := c.PostForm("action")
	switch {
	case action == "submit":
		h.submit(c, sid, d, errs)
		return
	case action == "add_experience":
		d.AppendExperience()
	case strings.HasPrefix(action, "remove_experience:"):
		i, err := strconv.Atoi(strings.TrimPrefix(action, "remove_experience:"))
		if err == nil {
			err = d.RemoveExperience(i)
		}
		if err != nil {
			log.Info("remove experience rejected", slog.Any("error", err))
		}
	case action == "remove_cv":
		if err := h.forms.RemoveCV(ctx, sid, d); err != nil {
			log.Error("remove cv failed", slog.Any("error", err))
			h.pages.render(c, http.StatusInternalServerError, "form", h.page(d, errs, msgGenericError))
			return
		}
	case action == "clear_signature":
		signature.New(signature.WithOnChange(d.SetSignature)).Clear()
	}

	if err := h.forms.SaveDraft(ctx, sid, d); err != nil {
		log.Error("save draft failed", slog.Any("error", err))
		h.pages.render(c, http.StatusInternalServerError, "form", h.page(d, errs, msgGenericError))
		return
	}
	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusUnprocessableEntity
	}
	h.pages.render(c, status, "form", h.page(d, errs, ""))
}

func (h *FormHandler) submit(c *gin.Context, sid string, d *application.Draft, errs validation.FieldErrors) {
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	if len(errs) > 0 {
		// A rejected CV or unreadable signature blocks the submit; keep what
		// was typed.
		if err := h.forms.SaveDraft(ctx, sid, d); err != nil {
			log.Error("save draft failed", slog.Any("error", err))
		}
		h.pages.render(c, http.StatusUnprocessableEntity, "form", h.page(d, errs, ""))
		return
	}

	resp, err := h.forms.Submit(ctx, sid, d)
	if err == nil {
		if !validReference(resp.ReferenceCode) {
			// No route can carry this reference; show it without receipt tracking.
			h.pages.render(c, http.StatusOK, "confirmation", confirmationPage{
				basePage:      basePage{Title: "تم إرسال طلبك"},
				ReferenceCode: resp.ReferenceCode,
			})
			return
		}
		redirect(c, "/form/confirmation/"+url.PathEscape(resp.ReferenceCode))
		return
	}

	if saveErr := h.forms.SaveDraft(ctx, sid, d); saveErr != nil {
		log.Error("save draft failed", slog.Any("error", saveErr))
	}
	if fieldErrs, ok := validation.AsFieldErrors(err); ok {
		h.pages.render(c, http.StatusUnprocessableEntity, "form", h.page(d, fieldErrs, ""))
		return
	}
	if errors.Is(err, application.ErrSubmitInProgress) {
		h.pages.render(c, http.StatusConflict, "form", h.page(d, nil, msgSessionBusy))
		return
	}
	log.Error("submit failed", slog.Any("error", err))
	h.pages.render(c, http.StatusBadGateway, "form", h.page(d, nil, application.ErrSubmitFailed.Error()))
}

// attachCV stages fh and returns the message to show next to the field, or
// "" on success.
func (h *FormHandler) attachCV(ctx context.Context, log *slog.Logger, sid string, d *application.Draft, fh *multipart.FileHeader) string {
	if fh.Size > h.maxBytes {
		return application.ErrFileTooLarge.Error()
	}
	file, err := fh.Open()
	if err != nil {
		return msgGenericError
	}
	defer file.Close()

	up := application.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     file,
	}
	err = h.forms.AttachCV(ctx, sid, d, up)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, application.ErrFileTooLarge),
		errors.Is(err, application.ErrFileType),
		errors.Is(err, application.ErrEmptyFile):
		return err.Error()
	case errors.Is(err, scan.ErrInfected):
		return "تم رفض الملف لأسباب أمنية"
	default:
		log.Error("attach cv failed", slog.Any("error", err))
		return msgGenericError
	}
}

var formFields = map[string]func(*validation.ApplicationInput) *string{
	"fullName":           func(f *validation.ApplicationInput) *string { return &f.FullName },
	"nationalId":         func(f *validation.ApplicationInput) *string { return &f.NationalID },
	"dateOfBirth":        func(f *validation.ApplicationInput) *string { return &f.DateOfBirth },
	"nationality":        func(f *validation.ApplicationInput) *string { return &f.Nationality },
	"maritalStatus":      func(f *validation.ApplicationInput) *string { return &f.MaritalStatus },
	"phone":              func(f *validation.ApplicationInput) *string { return &f.Phone },
	"email":              func(f *validation.ApplicationInput) *string { return &f.Email },
	"address":            func(f *validation.ApplicationInput) *string { return &f.Address },
	"qualification":      func(f *validation.ApplicationInput) *string { return &f.Qualification },
	"major":              func(f *validation.ApplicationInput) *string { return &f.Major },
	"graduationYear":     func(f *validation.ApplicationInput) *string { return &f.GraduationYear },
	"appliedBefore":      func(f *validation.ApplicationInput) *string { return &f.AppliedBefore },
	"appliedBeforeWhen":  func(f *validation.ApplicationInput) *string { return &f.AppliedBeforeWhen },
	"relativesInCompany": func(f *validation.ApplicationInput) *string { return &f.RelativesInCompany },
	"relativesDetails":   func(f *validation.ApplicationInput) *string { return &f.RelativesDetails },
	"applicantName":      func(f *validation.ApplicationInput) *string { return &f.ApplicantName },
}

// bindDraft copies the posted fields into d. Fields absent from the post keep
// their draft value.
func bindDraft(c *gin.Context, d *application.Draft) {
	for name, field := range formFields {
		if v, ok := c.GetPostForm(name); ok {
			*field(&d.Fields) = v
		}
	}

	companies, ok := c.GetPostFormArray("expCompany")
	if !ok {
		return
	}
	positions := c.PostFormArray("expPosition")
	durations := c.PostFormArray("expDuration")
	reasons := c.PostFormArray("expReason")
	exps := make([]submission.WorkExperience, len(companies))
	for i := range companies {
		exps[i] = submission.WorkExperience{
			Company:  companies[i],
			Position: at(positions, i),
			Duration: at(durations, i),
			Reason:   at(reasons, i),
		}
	}
	if len(exps) > 0 {
		d.Fields.WorkExperiences = exps
	}
}

// bindSignature replays the strokes drawn in the browser onto a pad and keeps
// the result as the draft's signature.
func bindSignature(c *gin.Context, d *application.Draft) error {
	raw := strings.TrimSpace(c.PostForm("signatureStrokes"))
	if raw == "" {
		return nil
	}
	strokes, err := signature.ParseStrokes(raw)
	if err != nil {
		return err
	}
	pad := signature.New(signature.WithOnChange(d.SetSignature))
	signature.Replay(pad, strokes)
	return nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
