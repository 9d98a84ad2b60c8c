// Package analysis aggregates per-frame driver signals and fuses them into a
// risk assessment.
package analysis

import (
	"encoding/json"
	"fmt"
)

// Severity is the ordinal level of a warning.
type Severity int

// Severity levels, lowest first.
const (
	Low Severity = iota
	Medium
	High
	Critical
)

var severityNames = [...]string{"Low", "Medium", "High", "Critical"}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= Low && s <= Critical
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalJSON encodes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("severity must be a string: %w", err)
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity returns the severity with the given name.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return Low, fmt.Errorf("unknown severity %q", name)
}

// RollupRisk returns the highest severity among warnings, or Low when there
// are none.
func RollupRisk(warnings []Warning) Severity {
	risk := Low
	for _, w := range warnings {
		if w.Severity > risk {
			risk = w.Severity
		}
	}
	return risk
}
