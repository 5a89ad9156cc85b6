package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Receipt states.
const (
	ReceiptPending = "pending"
	ReceiptReady   = "ready"
	ReceiptFailed  = "failed"
)

// Receipt is the printable confirmation of one accepted application.
type Receipt struct {
	gorm.Model
	ReferenceCode string         `gorm:"uniqueIndex;size:64"`
	SubmissionID  string         `gorm:"size:64"`
	SessionID     string         `gorm:"index;size:64"`
	ApplicantName string         `gorm:"size:255"`
	Email         string         `gorm:"size:255"`
	Summary       datatypes.JSON `gorm:"type:jsonb"` // ReceiptSummary
	Status        string         `gorm:"size:32;default:pending"`
	ObjectKey     string         `gorm:"size:512"`
	FailureReason string         `gorm:"size:512"`
	SubmittedAt   time.Time
}

// ReceiptSummary is the application snapshot printed on the receipt.
type ReceiptSummary struct {
	FullName        string                  `json:"full_name"`
	NationalID      string                  `json:"national_id"`
	DateOfBirth     string                  `json:"date_of_birth"`
	Nationality     string                  `json:"nationality"`
	MaritalStatus   string                  `json:"marital_status"`
	Phone           string                  `json:"phone"`
	Email           string                  `json:"email"`
	Address         string                  `json:"address"`
	Qualification   string                  `json:"qualification,omitempty"`
	Major           string                  `json:"major,omitempty"`
	GraduationYear  string                  `json:"graduation_year,omitempty"`
	WorkExperiences []ReceiptWorkExperience `json:"work_experiences,omitempty"`
	AppliedBefore   bool                    `json:"applied_before"`
	HasRelatives    bool                    `json:"has_relatives"`
	ApplicantName   string                  `json:"applicant_name"`
	Signature       string                  `json:"signature,omitempty"`
}

// ReceiptWorkExperience is one work history line on the receipt.
type ReceiptWorkExperience struct {
	Company  string `json:"company"`
	Position string `json:"position"`
	Duration string `json:"duration"`
}
