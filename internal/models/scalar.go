package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ScalarKind tags the variant held by a Scalar.
type ScalarKind uint8

const (
	ScalarInvalid ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a closed variant over string, number and boolean values used for
// log context fields.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
}

// StringValue wraps a string.
func StringValue(v string) Scalar { return Scalar{kind: ScalarString, str: v} }

// NumberValue wraps a float64.
func NumberValue(v float64) Scalar { return Scalar{kind: ScalarNumber, num: v} }

// IntValue wraps an int as a number.
func IntValue(v int) Scalar { return Scalar{kind: ScalarNumber, num: float64(v)} }

// BoolValue wraps a bool.
func BoolValue(v bool) Scalar { return Scalar{kind: ScalarBool, b: v} }

// Kind reports the held variant.
func (s Scalar) Kind() ScalarKind { return s.kind }

// AsString returns the string variant.
func (s Scalar) AsString() (string, bool) { return s.str, s.kind == ScalarString }

// AsNumber returns the number variant.
func (s Scalar) AsNumber() (float64, bool) { return s.num, s.kind == ScalarNumber }

// AsBool returns the boolean variant.
func (s Scalar) AsBool() (bool, bool) { return s.b, s.kind == ScalarBool }

// Equal compares kind and value.
func (s Scalar) Equal(o Scalar) bool {
	return s == o
}

func (s Scalar) String() string {
	switch s.kind {
	case ScalarString:
		return s.str
	case ScalarNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the scalar as a bare JSON value.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case ScalarString:
		return json.Marshal(s.str)
	case ScalarNumber:
		return json.Marshal(s.num)
	case ScalarBool:
		return json.Marshal(s.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number or boolean.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*s = StringValue(v)
	case float64:
		*s = NumberValue(v)
	case bool:
		*s = BoolValue(v)
	case nil:
		*s = Scalar{}
	default:
		return fmt.Errorf("scalar: unsupported JSON value %s", string(data))
	}
	return nil
}
