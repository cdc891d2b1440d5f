package listings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexNumber accepts a JSON number or a numeric string. Anything else leaves
// it unset instead of failing the whole record.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	*n = flexNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && isFinite(f) {
			*n = flexNumber{value: f, set: true}
		}
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil && isFinite(f) {
		*n = flexNumber{value: f, set: true}
	}
	return nil
}

// currencyAmount accepts a number or a formatted string such as "$1,250,000".
// Strings keep only digits and '.' before parsing.
type currencyAmount struct {
	value float64
	set   bool
}

func (c *currencyAmount) UnmarshalJSON(b []byte) error {
	*c = currencyAmount{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, ok := ParsePrice(s); ok {
			*c = currencyAmount{value: f, set: true}
		}
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil && isFinite(f) {
		*c = currencyAmount{value: f, set: true}
	}
	return nil
}

// flexString accepts a string or a number and keeps its textual form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return nil
	}
	*s = flexString(num.String())
	return nil
}

// ParsePrice strips every character except digits and '.' and parses what is
// left. ok is false when nothing numeric remains.
func ParsePrice(s string) (float64, bool) {
	var sb strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func firstNumber(candidates ...flexNumber) (float64, bool) {
	for _, c := range candidates {
		if c.set {
			return c.value, true
		}
	}
	return 0, false
}

func firstAmount(candidates ...currencyAmount) (float64, bool) {
	for _, c := range candidates {
		if c.set {
			return c.value, true
		}
	}
	return 0, false
}

func firstString(candidates ...flexString) string {
	for _, c := range candidates {
		if c != "" {
			return string(c)
		}
	}
	return ""
}
