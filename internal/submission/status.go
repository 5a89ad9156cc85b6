package submission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the review state of a submission. The numeric values are shared
// with the backend and must not be renumbered.
type Status int

const (
	StatusUnknown     Status = 0
	StatusReceived    Status = 1
	StatusUnderReview Status = 2
	StatusApproved    Status = 3
	StatusRejected    Status = 4
	StatusOnHold      Status = 5
	StatusProcessed   Status = 6
)

// Statuses lists every known status in ordinal order.
var Statuses = []Status{
	StatusReceived,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusOnHold,
	StatusProcessed,
}

type statusInfo struct {
	name string
	text string
	tag  string
}

var statusTable = map[Status]statusInfo{
	StatusReceived:    {name: "Received", text: "مستلم", tag: "status-received"},
	StatusUnderReview: {name: "UnderReview", text: "قيد المراجعة", tag: "status-underreview"},
	StatusApproved:    {name: "Approved", text: "مقبول", tag: "status-approved"},
	StatusRejected:    {name: "Rejected", text: "مرفوض", tag: "status-rejected"},
	StatusOnHold:      {name: "OnHold", text: "معلق", tag: "status-onhold"},
	StatusProcessed:   {name: "Processed", text: "تمت المعالجة", tag: "status-processed"},
}

var unknownStatus = statusInfo{name: "Unknown", text: "غير معروف", tag: "status-unknown"}

func (s Status) info() statusInfo {
	if info, ok := statusTable[s]; ok {
		return info
	}
	return unknownStatus
}

// Known reports whether s is one of the six backend states.
func (s Status) Known() bool {
	_, ok := statusTable[s]
	return ok
}

// Normalize maps any out-of-range value to StatusUnknown.
func (s Status) Normalize() Status {
	if s.Known() {
		return s
	}
	return StatusUnknown
}

func (s Status) String() string { return s.info().name }

// Text is the Arabic display label.
func (s Status) Text() string { return s.info().text }

// StyleTag is the CSS class used to colour the status badge.
func (s Status) StyleTag() string { return s.info().tag }

// ParseStatus accepts either the ordinal ("3") or the name ("Approved").
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusUnknown, fmt.Errorf("empty status")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		s := Status(n)
		if !s.Known() {
			return StatusUnknown, fmt.Errorf("unknown status %d", n)
		}
		return s, nil
	}
	for s, info := range statusTable {
		if strings.EqualFold(info.name, raw) {
			return s, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", raw)
}

// UnmarshalJSON accepts the ordinal or the enum name; anything else decodes
// to StatusUnknown rather than failing the whole payload.
func (s *Status) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Status(n).Normalize()
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = parsed
	return nil
}
