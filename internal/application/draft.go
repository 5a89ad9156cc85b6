// Package application owns the in-progress job application of one browser
// session: its fields, the repeatable work history, the CV and the signature.
package application

import (
	"errors"
	"fmt"

	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

var (
	// ErrLastExperience is returned when removing the only work experience.
	ErrLastExperience = errors.New("at least one work experience entry is required")
	// ErrExperienceIndex is returned for an index outside the list.
	ErrExperienceIndex = errors.New("work experience index out of range")
)

// CV is the staged attachment of a draft.
type CV struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	ObjectKey   string `json:"objectKey"`
}

// Draft is everything typed into the form so far.
type Draft struct {
	Fields validation.ApplicationInput `json:"fields"`
	CV     *CV                         `json:"cv,omitempty"`
}

// NewDraft returns an empty draft with one blank work experience.
func NewDraft() *Draft {
	d := &Draft{}
	d.Reset()
	return d
}

// Reset clears every field, the CV reference and the signature.
func (d *Draft) Reset() {
	d.Fields = validation.ApplicationInput{
		WorkExperiences: []submission.WorkExperience{{}},
	}
	d.CV = nil
}

// ensureExperience restores the one-entry minimum after decoding.
func (d *Draft) ensureExperience() {
	if len(d.Fields.WorkExperiences) == 0 {
		d.Fields.WorkExperiences = []submission.WorkExperience{{}}
	}
}

// Experiences returns the work history in order.
func (d *Draft) Experiences() []submission.WorkExperience {
	d.ensureExperience()
	return d.Fields.WorkExperiences
}

// AppendExperience adds a blank entry at the end.
func (d *Draft) AppendExperience() {
	d.Fields.WorkExperiences = append(d.Experiences(), submission.WorkExperience{})
}

// RemoveExperience drops entry i. The last remaining entry cannot be removed.
func (d *Draft) RemoveExperience(i int) error {
	list := d.Experiences()
	if i < 0 || i >= len(list) {
		return fmt.Errorf("%w: %d", ErrExperienceIndex, i)
	}
	if len(list) == 1 {
		return ErrLastExperience
	}
	d.Fields.WorkExperiences = append(list[:i:i], list[i+1:]...)
	return nil
}

// SetExperience replaces entry i.
func (d *Draft) SetExperience(i int, exp submission.WorkExperience) error {
	list := d.Experiences()
	if i < 0 || i >= len(list) {
		return fmt.Errorf("%w: %d", ErrExperienceIndex, i)
	}
	list[i] = exp
	return nil
}

// ShowAppliedBeforeWhen reports whether the "when" field is revealed.
func (d *Draft) ShowAppliedBeforeWhen() bool {
	return d.Fields.AppliedBefore == "true"
}

// ShowRelativesDetails reports whether the relatives details field is revealed.
func (d *Draft) ShowRelativesDetails() bool {
	return d.Fields.RelativesInCompany == "true"
}

// SetSignature is the change callback target of the signature pad.
func (d *Draft) SetSignature(sig string) {
	d.Fields.Signature = sig
}

// HasSignature reports whether a signature has been captured.
func (d *Draft) HasSignature() bool {
	return d.Fields.Signature != ""
}
