package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"

	"wafiPortal/internal/validation"
)

// Attachment is the CV content sent with a submission.
type Attachment struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// BuildMultipart packages a validated application: every scalar field as a
// text part, the work history as one JSON part named workExperiences, and the
// CV (if any) as the file part "cv".
func BuildMultipart(app *validation.Application, cv *Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"fullName", app.FullName},
		{"nationalId", app.NationalID},
		{"dateOfBirth", app.DateOfBirth},
		{"nationality", app.Nationality},
		{"maritalStatus", string(app.MaritalStatus)},
		{"phone", app.Phone},
		{"email", app.Email},
		{"address", app.Address},
		{"qualification", app.Qualification},
		{"major", app.Major},
		{"graduationYear", app.GraduationYear},
		{"appliedBefore", strconv.FormatBool(app.AppliedBefore)},
		{"appliedBeforeWhen", app.AppliedBeforeWhen},
		{"relativesInCompany", strconv.FormatBool(app.RelativesInCompany)},
		{"relativesDetails", app.RelativesDetails},
		{"applicantName", app.ApplicantName},
		{"signature", app.Signature},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if len(app.WorkExperiences) > 0 {
		raw, err := json.Marshal(app.WorkExperiences)
		if err != nil {
			return nil, "", fmt.Errorf("encode work experiences: %w", err)
		}
		if err := w.WriteField("workExperiences", string(raw)); err != nil {
			return nil, "", fmt.Errorf("write field workExperiences: %w", err)
		}
	}

	if cv != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="cv"; filename=%q`, cv.FileName))
		header.Set("Content-Type", cv.ContentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create cv part: %w", err)
		}
		if _, err := io.Copy(part, cv.Content); err != nil {
			return nil, "", fmt.Errorf("write cv part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
