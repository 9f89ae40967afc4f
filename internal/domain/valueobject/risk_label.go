package valueobject

import "fmt"

// AttendeeThreshold is the minimum attendance probability labelled as an
// attendee.
const AttendeeThreshold = 0.65

// RiskLabel is an immutable value object classifying a scored profile.
type RiskLabel struct {
	value string
}

var (
	RiskLabelAttendee     = RiskLabel{value: "attendee"}
	RiskLabelResellerRisk = RiskLabel{value: "reseller_risk"}
)

// RiskLabelFromString reconstructs a RiskLabel from its string representation.
func RiskLabelFromString(s string) (RiskLabel, error) {
	switch s {
	case "attendee":
		return RiskLabelAttendee, nil
	case "reseller_risk":
		return RiskLabelResellerRisk, nil
	default:
		return RiskLabel{}, fmt.Errorf("invalid risk label: %s", s)
	}
}

// RiskLabelFromProbability derives the label from an attendance probability.
func RiskLabelFromProbability(attendance float64) RiskLabel {
	if attendance >= AttendeeThreshold {
		return RiskLabelAttendee
	}
	return RiskLabelResellerRisk
}

// String returns the string representation.
func (r RiskLabel) String() string {
	return r.value
}

// IsZero returns true if the RiskLabel has not been set.
func (r RiskLabel) IsZero() bool {
	return r.value == ""
}

// Equal checks equality with another RiskLabel.
func (r RiskLabel) Equal(other RiskLabel) bool {
	return r.value == other.value
}
