package ledger

import (
	"fmt"
	"strings"
)

// Frequency enumerates the supported recurrence steps of a scheduled
// operation.
type Frequency int

const (
	FrequencyUnknown Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

// String returns the string representation of the frequency.
func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// ParseFrequency parses the string representation of a frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(s) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	case "yearly":
		return Yearly, nil
	default:
		return FrequencyUnknown, fmt.Errorf("unknown frequency %q", s)
	}
}

// Schedule describes when a scheduled operation recurs: starting from Anchor,
// every Every steps of Frequency. The pair (Frequency, Anchor) allows
// deterministic next-occurrence computation for any calendar date; how
// nonexistent days of month are resolved is documented in the recurrence
// package.
type Schedule struct {
	Frequency Frequency
	Every     int // interval multiplier, e.g. every 3 months
	Anchor    Date
}

// Validate checks that the schedule allows deterministic occurrence
// computation.
func (s Schedule) Validate() error {
	if s.Frequency == FrequencyUnknown {
		return NewValidationError("schedule", zeroID, "frequency", "frequency must be set")
	}
	if s.Every < 1 {
		return NewValidationError("schedule", zeroID, "every", "interval multiplier must be at least 1")
	}
	if s.Anchor.IsZero() {
		return NewValidationError("schedule", zeroID, "anchor", "anchor date must be set")
	}
	return nil
}
