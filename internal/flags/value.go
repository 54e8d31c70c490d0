package flags

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Key names a dictionary or boolean flag on a source.
type Key string

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]*$`)

// Validate reports whether the key is well formed.
func (k Key) Validate() error {
	if !keyPattern.MatchString(string(k)) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, string(k))
	}
	return nil
}

// Kind tags the payload of a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	}
	return "none"
}

// Value is a dictionary flag value: a number or a text. Text values are
// evaluated as formulas when a number is requested.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number builds a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Text builds a text value (plain string or formula).
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Kind returns the payload kind.
func (v Value) Kind() Kind { return v.kind }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.num }

// Str returns the text payload.
func (v Value) Str() string { return v.text }

// Truthy is false for absent values, 0 and the empty string.
// Feature modules rely on falsy values never counting as "has the flag".
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0
	case KindText:
		return v.text != ""
	}
	return false
}

// String renders the value the way it was authored.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	}
	return ""
}

// FromAny converts a decoded scalar (YAML/JSON) into a Value.
// Booleans map to 1/0 so that false stays falsy.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Value{}, fmt.Errorf("flag value %v is not a finite number", v)
		}
		return Number(v), nil
	case bool:
		if v {
			return Number(1), nil
		}
		return Number(0), nil
	case string:
		return Text(v), nil
	}
	return Value{}, fmt.Errorf("unsupported flag value type %T", raw)
}

// ParseValue reads a value typed on a command line: numbers become numbers,
// anything else text.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return Number(n)
	}
	return Text(s)
}
