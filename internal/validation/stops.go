package validation

import (
	"fmt"
	"math"

	apperrors "broker_mcp/internal/errors"
)

// Stops describes the stop and limit settings of a position request.
type Stops struct {
	GuaranteedStop bool
	TrailingStop   bool
	StopLevel      *float64
	StopDistance   *float64
	StopAmount     *float64
	ProfitLevel    *float64
	ProfitDistance *float64
	ProfitAmount   *float64
}

// ValidateStops enforces the combinations the broker accepts.
func ValidateStops(s Stops) error {
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"stop_level", s.StopLevel},
		{"stop_distance", s.StopDistance},
		{"stop_amount", s.StopAmount},
		{"profit_level", s.ProfitLevel},
		{"profit_distance", s.ProfitDistance},
		{"profit_amount", s.ProfitAmount},
	} {
		if err := Finite(f.name, f.value); err != nil {
			return err
		}
	}
	if s.GuaranteedStop && s.TrailingStop {
		return apperrors.Validation("Cannot set both guaranteedStop and trailingStop - they are mutually exclusive")
	}
	if s.TrailingStop && s.StopDistance == nil {
		return apperrors.ValidationField("stop_distance", "stopDistance is required when trailingStop is true")
	}
	if s.GuaranteedStop && s.StopLevel == nil && s.StopDistance == nil && s.StopAmount == nil {
		return apperrors.Validation("When guaranteedStop is true, must set stopLevel, stopDistance, or stopAmount")
	}
	return nil
}

// HasChanges reports whether any field of an update would modify the position.
func (s Stops) HasChanges() bool {
	return s.GuaranteedStop || s.TrailingStop ||
		s.StopLevel != nil || s.StopDistance != nil || s.StopAmount != nil ||
		s.ProfitLevel != nil || s.ProfitDistance != nil || s.ProfitAmount != nil
}

// RequireAny fails with message when every value is nil.
func RequireAny(message string, values ...any) error {
	for _, v := range values {
		if !IsNil(v) {
			return nil
		}
	}
	return apperrors.Validation(message)
}

// PositiveInt fails when n is not a positive integer.
func PositiveInt(field string, n int) error {
	if n <= 0 {
		return apperrors.ValidationField(field, field+" must be a positive integer")
	}
	return nil
}

// Finite fails when v is set to NaN or an infinity.
func Finite(field string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return apperrors.ValidationField(field, fmt.Sprintf("Parameter '%s' must be a number", field))
	}
	return nil
}

// NotEmpty fails when s is empty.
func NotEmpty(field, s string) error {
	if s == "" {
		return apperrors.ValidationField(field, field+" cannot be empty")
	}
	return nil
}
