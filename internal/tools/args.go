package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// Args are the raw arguments of a tool call. Hosts do not always coerce
// types, so numbers may arrive as strings and lists as comma-separated text.
type Args map[string]any

// String returns the trimmed string argument, or "" when absent.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringOr returns the string argument or def when absent or blank.
func (a Args) StringOr(key, def string) string {
	if s := a.String(key); s != "" {
		return s
	}
	return def
}

// Float returns an optional numeric argument. Absent and null yield nil.
func (a Args) Float(key string) (*float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	f, ok := validation.ToFloat(v)
	if !ok {
		return nil, notANumber(key)
	}
	return &f, nil
}

// FloatOr returns the numeric argument or def when absent.
func (a Args) FloatOr(key string, def float64) (float64, error) {
	f, err := a.Float(key)
	if err != nil || f == nil {
		return def, err
	}
	return *f, nil
}

// IntOr returns the integer argument or def when absent.
func (a Args) IntOr(key string, def int) (int, error) {
	f, err := a.Float(key)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return def, nil
	}
	if *f != math.Trunc(*f) {
		return 0, apperrors.ValidationField(key, fmt.Sprintf("Parameter '%s' must be an integer", key))
	}
	return int(*f), nil
}

// Bool returns the boolean argument. Strings "true" and "1" count as true.
func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case float64:
		return v != 0
	}
	return false
}

// OptionalBool is Bool that distinguishes absent from false.
func (a Args) OptionalBool(key string) *bool {
	if v, ok := a[key]; !ok || v == nil {
		return nil
	}
	b := a.Bool(key)
	return &b
}

// Strings returns a list argument given either as an array or as
// comma-separated text. Blank entries are dropped.
func (a Args) Strings(key string) []string {
	var raw []string
	switch v := a[key].(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = v
	default:
		raw = strings.Split(fmt.Sprint(v), ",")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Ints parses a list of integer ids: a number, an array or comma-separated
// text. Any entry that is not an integer fails with message.
func (a Args) Ints(key, message string) ([]int, error) {
	var items []any
	switch v := a[key].(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case string:
		for _, s := range strings.Split(v, ",") {
			items = append(items, strings.TrimSpace(s))
		}
	default:
		items = []any{v}
	}

	out := make([]int, 0, len(items))
	for _, item := range items {
		f, ok := validation.ToFloat(item)
		if !ok || f != math.Trunc(f) {
			return nil, apperrors.ValidationField(key, message)
		}
		out = append(out, int(f))
	}
	return out, nil
}

func notANumber(key string) error {
	return apperrors.ValidationField(key, fmt.Sprintf("Parameter '%s' must be a number", key))
}

// parser reads several arguments and keeps the first conversion error.
type parser struct {
	args Args
	err  error
}

func (p *parser) float(key string) *float64 {
	if p.err != nil {
		return nil
	}
	f, err := p.args.Float(key)
	p.err = err
	return f
}

func (p *parser) floatOr(key string, def float64) float64 {
	if p.err != nil {
		return def
	}
	f, err := p.args.FloatOr(key, def)
	p.err = err
	return f
}

func (p *parser) intOr(key string, def int) int {
	if p.err != nil {
		return def
	}
	n, err := p.args.IntOr(key, def)
	p.err = err
	return n
}
