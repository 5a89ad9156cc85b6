package submission

import (
	"encoding/json"
	"strings"
)

// FlexBool decodes from a JSON boolean or from the strings "true"/"false".
// The multipart submit carries the yes/no answers as text, and the backend
// echoes whichever form it stored.
type FlexBool bool

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = FlexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

// WorkExperiences decodes from a JSON array or from a string holding a JSON
// array, which is how the submit endpoint receives it.
type WorkExperiences []WorkExperience

func (w *WorkExperiences) UnmarshalJSON(data []byte) error {
	var list []WorkExperience
	if err := json.Unmarshal(data, &list); err == nil {
		*w = list
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if strings.TrimSpace(encoded) == "" {
		*w = nil
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return err
	}
	*w = list
	return nil
}
