package submission

// FormKey identifies the job application form on the backend.
const FormKey = "job-application"

// MaritalStatus is the applicant's declared marital status.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "Single"
	MaritalMarried  MaritalStatus = "Married"
	MaritalDivorced MaritalStatus = "Divorced"
	MaritalWidowed  MaritalStatus = "Widowed"
)

// MaritalStatuses lists the accepted values in display order.
var MaritalStatuses = []MaritalStatus{MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed}

// Valid reports whether m is one of the four accepted values.
func (m MaritalStatus) Valid() bool {
	for _, v := range MaritalStatuses {
		if m == v {
			return true
		}
	}
	return false
}

// Text returns the Arabic label shown in the form.
func (m MaritalStatus) Text() string {
	switch m {
	case MaritalSingle:
		return "أعزب"
	case MaritalMarried:
		return "متزوج"
	case MaritalDivorced:
		return "مطلق"
	case MaritalWidowed:
		return "أرمل"
	default:
		return string(m)
	}
}

// WorkExperience is one optional entry of the applicant's work history.
type WorkExperience struct {
	Company  string `json:"expCompany,omitempty"`
	Position string `json:"expPosition,omitempty"`
	Duration string `json:"expDuration,omitempty"`
	Reason   string `json:"expReason,omitempty"`
}

// IsBlank reports whether no field of the entry was filled in.
func (w WorkExperience) IsBlank() bool {
	return w.Company == "" && w.Position == "" && w.Duration == "" && w.Reason == ""
}

// JobApplicationFormData is the form payload as echoed back by the backend.
type JobApplicationFormData struct {
	FullName      string `json:"fullName"`
	NationalID    string `json:"nationalId"`
	DateOfBirth   string `json:"dateOfBirth"`
	Nationality   string `json:"nationality"`
	MaritalStatus string `json:"maritalStatus"`

	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`

	Qualification  string `json:"qualification,omitempty"`
	Major          string `json:"major,omitempty"`
	GraduationYear string `json:"graduationYear,omitempty"`

	WorkExperiences WorkExperiences `json:"workExperiences,omitempty"`

	AppliedBefore      FlexBool `json:"appliedBefore"`
	AppliedBeforeWhen  string   `json:"appliedBeforeWhen,omitempty"`
	RelativesInCompany FlexBool `json:"relativesInCompany"`
	RelativesDetails   string   `json:"relativesDetails,omitempty"`

	ApplicantName string `json:"applicantName"`
	Signature     string `json:"signature,omitempty"`
}

// SubmitFormResponse is returned by the backend after a successful submit.
type SubmitFormResponse struct {
	SubmissionID  string `json:"submissionId"`
	ReferenceCode string `json:"referenceCode"`
	Message       string `json:"message"`
}

// PaginatedResult is one page of a server-side listing.
type PaginatedResult[T any] struct {
	Items           []T  `json:"items"`
	TotalCount      int  `json:"totalCount"`
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// ListItem is a submission as returned by the list endpoint.
type ListItem struct {
	ID            string                 `json:"id"`
	FormKey       string                 `json:"formKey"`
	CreatedAt     Timestamp              `json:"createdAt"`
	Status        Status                 `json:"status"`
	ReferenceCode string                 `json:"referenceCode"`
	FormData      JobApplicationFormData `json:"formData"`
	FilesCount    int                    `json:"filesCount"`
	HasSignature  bool                   `json:"hasSignature"`
}

// File describes an attachment stored by the backend.
type File struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	UploadedAt  Timestamp `json:"uploadedAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// SignatureRecord is a stored signature image.
type SignatureRecord struct {
	ID            string    `json:"id"`
	SignatureType string    `json:"signatureType"`
	CreatedAt     Timestamp `json:"createdAt"`
	SignatureData string    `json:"signatureData"`
}

// Detail is the full view of one submission.
type Detail struct {
	ListItem
	AdminNotes string            `json:"adminNotes,omitempty"`
	Files      []File            `json:"files"`
	Signatures []SignatureRecord `json:"signatures"`
}

// UpdateStatusRequest is the body of the status update call.
type UpdateStatusRequest struct {
	Status     Status `json:"status"`
	AdminNotes string `json:"adminNotes,omitempty"`
}

// LoginCredentials are posted to the login endpoint.
type LoginCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthUser is the identity of the logged in administrator.
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AuthResponse is returned by the login endpoint.
type AuthResponse struct {
	User         AuthUser  `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    Timestamp `json:"expiresAt"`
}
