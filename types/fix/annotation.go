package fix

import (
	"encoding/json"
	"fmt"
)

// Status is the anomaly status of a fix.
// Normal and Suspected are computed; Marked and Confirmed come from a
// human reviewer and are never overwritten by recomputation.
type Status int

const (
	StatusNormal Status = iota
	StatusSuspected
	StatusMarked
	StatusConfirmed
)

var statusNames = map[Status]string{
	StatusNormal:    "normal",
	StatusSuspected: "suspected",
	StatusMarked:    "marked",
	StatusConfirmed: "confirmed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func StatusFromString(s string) (Status, error) {
	for k, v := range statusNames {
		if v == s {
			return k, nil
		}
	}
	return StatusNormal, fmt.Errorf("unknown anomaly status: %q", s)
}

// IsHuman reports whether the status was set by a human reviewer.
func (s Status) IsHuman() bool {
	return s == StatusMarked || s == StatusConfirmed
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := StatusFromString(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Annotation reasons. Reason is free-form; these are the ones the
// classifier and the review flow produce.
const (
	ReasonLowAccuracy     = "low_accuracy"
	ReasonImpossibleSpeed = "impossible_speed"
	ReasonUserMarked      = "user_marked"
)

// Annotation is the derived anomaly verdict attached to a fix.
type Annotation struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Annotated is a fix together with its anomaly annotation.
type Annotated struct {
	Fix
	Annotation Annotation `json:"annotation"`
}

// ExcludedFromTravel reports whether the fix must be skipped when
// accumulating distance and speed. Human verdicts win.
func (a *Annotated) ExcludedFromTravel() bool {
	return a.Annotation.Status.IsHuman()
}
