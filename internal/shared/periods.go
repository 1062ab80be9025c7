package shared

import "errors"

// Reporting period statuses.
const (
	PeriodStatusOpen      = "OPEN"
	PeriodStatusAdjusting = "ADJUSTING"
	PeriodStatusClosed    = "CLOSED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = errors.New("period transition invalid")

// ValidatePeriodTransition allows only OPEN -> ADJUSTING -> CLOSED.
func ValidatePeriodTransition(current, target string) error {
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusAdjusting {
			return nil
		}
	case PeriodStatusAdjusting:
		if target == PeriodStatusClosed {
			return nil
		}
	}
	return ErrInvalidPeriodTransition
}
