package validation

import (
	"strings"

	"wafiPortal/internal/submission"
)

// ApplicationInput is the raw job application as entered in the form. The
// yes/no answers arrive as the literal strings "true"/"false".
type ApplicationInput struct {
	FullName      string `json:"fullName" validate:"required,min=2,max=100"`
	NationalID    string `json:"nationalId" validate:"required"`
	DateOfBirth   string `json:"dateOfBirth" validate:"required,parseable_date"`
	Nationality   string `json:"nationality" validate:"required"`
	MaritalStatus string `json:"maritalStatus" validate:"required,maritalstatus"`

	Phone   string `json:"phone" validate:"required,min=10,phone"`
	Email   string `json:"email" validate:"required,email_simple"`
	Address string `json:"address" validate:"required,min=5"`

	Qualification  string `json:"qualification"`
	Major          string `json:"major"`
	GraduationYear string `json:"graduationYear"`

	WorkExperiences []submission.WorkExperience `json:"workExperiences"`

	AppliedBefore      string `json:"appliedBefore" validate:"required"`
	AppliedBeforeWhen  string `json:"appliedBeforeWhen"`
	RelativesInCompany string `json:"relativesInCompany" validate:"required"`
	RelativesDetails   string `json:"relativesDetails"`

	ApplicantName string `json:"applicantName" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
}

// Application is a validated job application with the yes/no answers coerced
// to booleans.
type Application struct {
	FullName      string
	NationalID    string
	DateOfBirth   string
	Nationality   string
	MaritalStatus submission.MaritalStatus

	Phone   string
	Email   string
	Address string

	Qualification  string
	Major          string
	GraduationYear string

	WorkExperiences []submission.WorkExperience

	AppliedBefore      bool
	AppliedBeforeWhen  string
	RelativesInCompany bool
	RelativesDetails   string

	ApplicantName string
	Signature     string
}

var applicationMessages = map[string]map[string]string{
	"fullName":           {"required": "الاسم الكامل مطلوب", "min": "الاسم الكامل مطلوب", "max": "الاسم طويل جداً"},
	"nationalId":         {"*": "رقم الهوية الوطنية مطلوب"},
	"dateOfBirth":        {"required": "تاريخ الميلاد مطلوب", "parseable_date": "تاريخ الميلاد غير صحيح"},
	"nationality":        {"*": "الجنسية مطلوبة"},
	"maritalStatus":      {"required": "يرجى اختيار الحالة الاجتماعية", "maritalstatus": "يرجى اختيار حالة اجتماعية صحيحة"},
	"phone":              {"required": "رقم الهاتف مطلوب", "min": "رقم الهاتف مطلوب", "phone": "رقم الهاتف غير صحيح"},
	"email":              {"required": "البريد الإلكتروني مطلوب", "email_simple": "البريد الإلكتروني غير صحيح"},
	"address":            {"*": "عنوان السكن مطلوب"},
	"appliedBefore":      {"*": "يرجى الإجابة على هذا السؤال"},
	"relativesInCompany": {"*": "يرجى الإجابة على هذا السؤال"},
	"applicantName":      {"*": "اسم المتقدم مطلوب"},
	"signature":          {"*": "التوقيع مطلوب"},
}

// ValidateApplication checks in against the job application rules. On success
// it returns the coerced application; otherwise a FieldErrors keyed by field.
func ValidateApplication(in ApplicationInput) (*Application, FieldErrors) {
	in = trimApplication(in)
	if errs := run(in, applicationMessages); len(errs) > 0 {
		return nil, errs
	}

	return &Application{
		FullName:           in.FullName,
		NationalID:         in.NationalID,
		DateOfBirth:        in.DateOfBirth,
		Nationality:        in.Nationality,
		MaritalStatus:      submission.MaritalStatus(in.MaritalStatus),
		Phone:              in.Phone,
		Email:              in.Email,
		Address:            in.Address,
		Qualification:      in.Qualification,
		Major:              in.Major,
		GraduationYear:     in.GraduationYear,
		WorkExperiences:    in.WorkExperiences,
		AppliedBefore:      in.AppliedBefore == "true",
		AppliedBeforeWhen:  in.AppliedBeforeWhen,
		RelativesInCompany: in.RelativesInCompany == "true",
		RelativesDetails:   in.RelativesDetails,
		ApplicantName:      in.ApplicantName,
		Signature:          in.Signature,
	}, nil
}

func trimApplication(in ApplicationInput) ApplicationInput {
	fields := []*string{
		&in.FullName, &in.NationalID, &in.DateOfBirth, &in.Nationality, &in.MaritalStatus,
		&in.Phone, &in.Email, &in.Address, &in.Qualification, &in.Major, &in.GraduationYear,
		&in.AppliedBefore, &in.AppliedBeforeWhen, &in.RelativesInCompany, &in.RelativesDetails,
		&in.ApplicantName,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	return in
}
