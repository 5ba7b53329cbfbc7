// Package validation checks tool and client arguments before any request
// reaches a broker.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "broker_mcp/internal/errors"
)

// Size and range limits.
const (
	MinSize     = 0.01
	MaxSize     = 10.0
	MaxLeverage = 100.0
	MaxBars     = 1000.0
)

// ValidationError represents a single failed rule.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors in the order found.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	var msgs []string
	for _, e := range v.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors.
func (v ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add adds a validation error.
func (v *ValidationErrors) Add(field, message string) {
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

// Err returns nil when empty. Otherwise it returns an ErrValidation app
// error whose message is the first failure; all failures are in Details.
func (v ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	first := v.Errors[0]
	return apperrors.ValidationField(first.Field, first.Message).WithDetails(map[string]any{
		"field":  first.Field,
		"errors": v.Errors,
	})
}

// Param is a named argument. Order is preserved so the first reported
// failure is deterministic.
type Param struct {
	Name  string
	Value any
}

// P builds a Param.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

var (
	forbiddenChars = regexp.MustCompile(`[<>{}()\[\];]`)

	optionalParams = map[string]bool{
		"stop_level":   true,
		"profit_level": true,
		"from_date":    true,
		"to_date":      true,
		"leverage":     true,
	}

	checkedStrings = map[string]bool{
		"epic":       true,
		"direction":  true,
		"deal_id":    true,
		"resolution": true,
	}

	numericParams = map[string]bool{
		"size":         true,
		"leverage":     true,
		"stop_level":   true,
		"profit_level": true,
		"max_bars":     true,
	}

	// Resolutions lists the accepted price bar sizes.
	Resolutions = []string{
		"MINUTE", "MINUTE_5", "MINUTE_15", "MINUTE_30",
		"HOUR", "HOUR_4", "DAY", "WEEK", "MONTH",
	}
)

// ValidateInput applies the shared argument rules and returns the first
// failure as an ErrValidation error.
func ValidateInput(params ...Param) error {
	var errs ValidationErrors
	for _, p := range params {
		if msg := checkParam(p); msg != "" {
			errs.Add(p.Name, msg)
			break
		}
	}
	return errs.Err()
}

func checkParam(p Param) string {
	if IsNil(p.Value) {
		if optionalParams[p.Name] {
			return ""
		}
		return fmt.Sprintf("Parameter '%s' is required", p.Name)
	}

	if s, ok := deref(p.Value).(string); ok && checkedStrings[p.Name] {
		if forbiddenChars.MatchString(s) {
			return fmt.Sprintf("Invalid characters in parameter '%s'", p.Name)
		}
		switch p.Name {
		case "direction":
			if !IsDirection(s) {
				return fmt.Sprintf("Direction must be 'BUY' or 'SELL', got '%s'", s)
			}
		case "resolution":
			if !IsResolution(s) {
				return fmt.Sprintf("Invalid resolution: '%s'", s)
			}
		}
	}

	if numericParams[p.Name] {
		n, ok := ToFloat(p.Value)
		if !ok {
			return fmt.Sprintf("Parameter '%s' must be a number", p.Name)
		}
		switch p.Name {
		case "size":
			if n < MinSize {
				return "Position size too small, minimum is 0.01"
			}
			if n > MaxSize {
				return "Position size too large, maximum is 10.0"
			}
		case "leverage":
			if n <= 0 || n > MaxLeverage {
				return fmt.Sprintf("Leverage must be between 1 and 100, got %v", n)
			}
		case "max_bars":
			if n <= 0 || n > MaxBars {
				return fmt.Sprintf("Max bars must be between 1 and 1000, got %v", n)
			}
		}
	}
	return ""
}

// IsDirection reports whether s is exactly BUY or SELL.
func IsDirection(s string) bool {
	return s == "BUY" || s == "SELL"
}

// IsResolution reports whether s is an accepted bar size.
func IsResolution(s string) bool {
	for _, r := range Resolutions {
		if s == r {
			return true
		}
	}
	return false
}

// IsNil reports whether v is nil or a nil pointer of a supported type.
func IsNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *float64:
		return t == nil
	case *int:
		return t == nil
	case *string:
		return t == nil
	case *bool:
		return t == nil
	}
	return false
}

func deref(v any) any {
	switch t := v.(type) {
	case *float64:
		return *t
	case *int:
		return *t
	case *string:
		return *t
	case *bool:
		return *t
	}
	return v
}

// ToFloat converts numeric arguments, including numeric strings, to float64.
// NaN and infinities are not numbers here: no range check can hold for them.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch t := deref(v).(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// SafeString fails when s is empty or contains characters that could
// alter a request path or query.
func SafeString(field, s string) error {
	if err := NotEmpty(field, s); err != nil {
		return err
	}
	if forbiddenChars.MatchString(s) {
		return apperrors.ValidationField(field, fmt.Sprintf("Invalid characters in parameter '%s'", field))
	}
	return nil
}
