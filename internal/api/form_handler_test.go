package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"wafiPortal/internal/application"
	"wafiPortal/internal/scan"
	"wafiPortal/internal/validation"
)

func TestFormShowIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	rec := env.get(t, "/form", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "نموذج طلب التوظيف") {
		t.Fatal("form heading missing")
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), testCookieName+"=") {
		t.Fatalf("no session cookie, headers = %v", rec.Header())
	}
}

func TestRootRedirectsToForm(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")
	rec := env.get(t, "/", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/form" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestFormSaveKeepsFields(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	rec := env.postForm(t, "/form", "sid-1", url.Values{
		"fullName":      {"أحمد علي"},
		"appliedBefore": {"true"},
		"expCompany":    {"شركة أ"},
		"expPosition":   {"محاسب"},
		"action":        {"save"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	d := env.forms.draft("sid-1")
	if d == nil || d.Fields.FullName != "أحمد علي" {
		t.Fatalf("draft = %+v", d)
	}
	if !d.ShowAppliedBeforeWhen() {
		t.Fatal("applied-before follow-up should be revealed")
	}
	if exps := d.Experiences(); len(exps) != 1 || exps[0].Company != "شركة أ" || exps[0].Position != "محاسب" {
		t.Fatalf("experiences = %+v", exps)
	}
}

func TestFormExperienceActions(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	env.postForm(t, "/form", "sid-1", url.Values{"action": {"add_experience"}})
	if n := len(env.forms.draft("sid-1").Experiences()); n != 2 {
		t.Fatalf("after add: %d experiences, want 2", n)
	}

	env.postForm(t, "/form", "sid-1", url.Values{
		"expCompany": {"a", "b"},
		"action":     {"remove_experience:0"},
	})
	exps := env.forms.draft("sid-1").Experiences()
	if len(exps) != 1 || exps[0].Company != "b" {
		t.Fatalf("after remove: %+v", exps)
	}

	env.postForm(t, "/form", "sid-1", url.Values{"action": {"remove_experience:0"}})
	if n := len(env.forms.draft("sid-1").Experiences()); n != 1 {
		t.Fatalf("last experience removed, %d left", n)
	}
}

func TestFormSignatureStrokes(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	rec := env.postForm(t, "/form", "sid-1", url.Values{
		"signatureStrokes": {`[[{"x":10,"y":10},{"x":60,"y":40},{"x":120,"y":20}]]`},
		"action":           {"save"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	sig := env.forms.draft("sid-1").Fields.Signature
	if !strings.HasPrefix(sig, "data:image/png;base64,") {
		t.Fatalf("signature = %.40q", sig)
	}

	env.postForm(t, "/form", "sid-1", url.Values{
		"signatureStrokes": {`[[{"x":5,"y":5},{"x":30,"y":30}]]`},
		"action":           {"clear_signature"},
	})
	if got := env.forms.draft("sid-1").Fields.Signature; got != "" {
		t.Fatalf("signature after clear = %.40q", got)
	}
}

func TestFormBadSignatureStrokes(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")
	rec := env.postForm(t, "/form", "sid-1", url.Values{
		"signatureStrokes": {`not json`},
		"action":           {"save"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestFormSubmitRedirectsToConfirmation(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	rec := env.postForm(t, "/form", "sid-1", url.Values{"fullName": {"Ahmed"}, "action": {"submit"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/form/confirmation/AWJ-0001" {
		t.Fatalf("location = %q", loc)
	}
	if len(env.forms.submitted) != 1 {
		t.Fatalf("submitted %d times", len(env.forms.submitted))
	}
}

func TestFormSubmitEscapesReference(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")
	env.forms.response.ReferenceCode = "AWJ.2025 01"

	rec := env.postForm(t, "/form", "sid-1", url.Values{"fullName": {"Ahmed"}, "action": {"submit"}})
	loc := rec.Header().Get("Location")
	if rec.Code != http.StatusSeeOther || loc != "/form/confirmation/AWJ.2025%2001" {
		t.Fatalf("status = %d, location = %q", rec.Code, loc)
	}
	rec = env.get(t, loc, "sid-1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "AWJ.2025 01") {
		t.Fatalf("confirmation status = %d", rec.Code)
	}

	env.forms.response.ReferenceCode = "AWJ/2025/02"
	rec = env.postForm(t, "/form", "sid-2", url.Values{"fullName": {"Ahmed"}, "action": {"submit"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "AWJ/2025/02") {
		t.Fatalf("unroutable reference status = %d", rec.Code)
	}
}

func TestFormSubmitFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"validation", validation.FieldErrors{"email": "البريد الإلكتروني غير صحيح"}, http.StatusUnprocessableEntity, "البريد الإلكتروني غير صحيح"},
		{"in progress", application.ErrSubmitInProgress, http.StatusConflict, msgSessionBusy},
		{"backend", errors.New("boom"), http.StatusBadGateway, application.ErrSubmitFailed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "http://backend.invalid")
			env.forms.submitErr = tt.err

			rec := env.postForm(t, "/form", "sid-1", url.Values{"fullName": {"Ahmed"}, "action": {"submit"}})
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantText) {
				t.Fatalf("body does not mention %q", tt.wantText)
			}
			if d := env.forms.draft("sid-1"); d == nil || d.Fields.FullName != "Ahmed" {
				t.Fatalf("draft not kept: %+v", d)
			}
		})
	}
}

func newCVRequest(t *testing.T, filename, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="cv"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/form", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestFormCVUpload(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")

	req := newCVRequest(t, "cv.pdf", "application/pdf", []byte("%PDF-1.4 test"), map[string]string{"action": "save"})
	rec := env.do(t, req, "sid-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.forms.uploads) != 1 || env.forms.uploads[0].FileName != "cv.pdf" {
		t.Fatalf("uploads = %+v", env.forms.uploads)
	}
	if cv := env.forms.draft("sid-1").CV; cv == nil || cv.FileName != "cv.pdf" {
		t.Fatalf("draft cv = %+v", cv)
	}
	if !strings.Contains(rec.Body.String(), "cv.pdf") {
		t.Fatal("page does not show the staged file")
	}

	env.postForm(t, "/form", "sid-1", url.Values{"action": {"remove_cv"}})
	if cv := env.forms.draft("sid-1").CV; cv != nil {
		t.Fatalf("cv still attached: %+v", cv)
	}
}

func TestFormCVRejected(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantText string
	}{
		{"type", application.ErrFileType, application.ErrFileType.Error()},
		{"infected", scan.ErrInfected, "تم رفض الملف لأسباب أمنية"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "http://backend.invalid")
			env.forms.attachErr = tt.err

			req := newCVRequest(t, "cv.exe", "application/octet-stream", []byte("MZ"), map[string]string{"action": "submit"})
			rec := env.do(t, req, "sid-1")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantText) {
				t.Fatalf("body does not mention %q", tt.wantText)
			}
			if len(env.forms.submitted) != 0 {
				t.Fatal("submit must not run with a rejected CV")
			}
		})
	}
}
