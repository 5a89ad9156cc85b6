package worker

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"wafiPortal/internal/database"
)

const signaturePrefix = "data:image/png;base64,"

// receiptTemplateString prints on one A4 page, right to left.
const receiptTemplateString = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
    <meta charset="UTF-8">
    <style>
        @page { size: A4; margin: 18mm; }
        body {
            margin: 0;
            font-family: 'Noto Naskh Arabic', 'Amiri', 'Tahoma', sans-serif;
            font-size: 11pt;
            color: #1f2937;
        }
        header {
            display: flex;
            justify-content: space-between;
            align-items: baseline;
            border-bottom: 2px solid #0f766e;
            padding-bottom: 8px;
            margin-bottom: 16px;
        }
        h1 { font-size: 18pt; margin: 0; color: #0f766e; }
        .reference { font-family: monospace; font-size: 12pt; direction: ltr; }
        h2 { font-size: 12pt; margin: 18px 0 6px; color: #0f766e; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: right; padding: 4px 6px; border-bottom: 1px solid #e5e7eb; vertical-align: top; }
        th { width: 30%; color: #6b7280; font-weight: normal; }
        .signature img { max-height: 90px; border: 1px solid #e5e7eb; }
        footer { margin-top: 24px; font-size: 9pt; color: #6b7280; }
    </style>
</head>
<body>
    <header>
        <h1>إيصال استلام طلب توظيف</h1>
        <span class="reference">{{.ReferenceCode}}</span>
    </header>

    <table>
        <tr><th>تاريخ التقديم</th><td>{{.SubmittedAt}}</td></tr>
        <tr><th>الاسم الكامل</th><td>{{.Summary.FullName}}</td></tr>
        <tr><th>رقم الهوية الوطنية</th><td>{{.Summary.NationalID}}</td></tr>
        <tr><th>تاريخ الميلاد</th><td>{{.Summary.DateOfBirth}}</td></tr>
        <tr><th>الجنسية</th><td>{{.Summary.Nationality}}</td></tr>
        <tr><th>الحالة الاجتماعية</th><td>{{.Summary.MaritalStatus}}</td></tr>
    </table>

    <h2>معلومات الاتصال</h2>
    <table>
        <tr><th>رقم الجوال</th><td>{{.Summary.Phone}}</td></tr>
        <tr><th>البريد الإلكتروني</th><td>{{.Summary.Email}}</td></tr>
        <tr><th>العنوان</th><td>{{.Summary.Address}}</td></tr>
    </table>

    {{if or .Summary.Qualification .Summary.Major .Summary.GraduationYear}}
    <h2>المؤهل العلمي</h2>
    <table>
        <tr><th>المؤهل</th><td>{{.Summary.Qualification}}</td></tr>
        <tr><th>التخصص</th><td>{{.Summary.Major}}</td></tr>
        <tr><th>سنة التخرج</th><td>{{.Summary.GraduationYear}}</td></tr>
    </table>
    {{end}}

    {{if .Summary.WorkExperiences}}
    <h2>الخبرات العملية</h2>
    <table>
        {{range .Summary.WorkExperiences}}
        <tr><th>{{.Company}}</th><td>{{.Position}} {{if .Duration}}({{.Duration}}){{end}}</td></tr>
        {{end}}
    </table>
    {{end}}

    <h2>الإقرار</h2>
    <table>
        <tr><th>سبق التقديم</th><td>{{yesNo .Summary.AppliedBefore}}</td></tr>
        <tr><th>أقارب في الشركة</th><td>{{yesNo .Summary.HasRelatives}}</td></tr>
        <tr><th>اسم مقدم الطلب</th><td>{{.Summary.ApplicantName}}</td></tr>
        {{with signature .Summary.Signature}}
        <tr><th>التوقيع</th><td class="signature"><img src="{{.}}" alt="التوقيع"></td></tr>
        {{end}}
    </table>

    <footer>يرجى الاحتفاظ برقم المرجع لمتابعة حالة طلبك.</footer>
</body>
</html>
`

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"yesNo": func(b bool) string {
		if b {
			return "نعم"
		}
		return "لا"
	},
	"signature": func(s string) template.URL {
		if !strings.HasPrefix(s, signaturePrefix) {
			return ""
		}
		return template.URL(s)
	},
}).Parse(receiptTemplateString))

type receiptView struct {
	ReferenceCode string
	SubmittedAt   string
	Summary       database.ReceiptSummary
}

// RenderReceiptHTML fills the receipt template for r.
func RenderReceiptHTML(r *database.Receipt) (string, error) {
	summary, err := r.DecodeSummary()
	if err != nil {
		return "", err
	}
	submitted := r.SubmittedAt
	if submitted.IsZero() {
		submitted = r.CreatedAt
	}
	view := receiptView{
		ReferenceCode: r.ReferenceCode,
		SubmittedAt:   submitted.In(time.UTC).Format("2006-01-02 15:04"),
		Summary:       summary,
	}
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render receipt template: %w", err)
	}
	return buf.String(), nil
}
