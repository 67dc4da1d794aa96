package preferences

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the variant of a Scalar.
type Kind int

const (
	KindFloat Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Scalar is a preference value: a float, a bool or a string.
type Scalar struct {
	kind Kind
	f    float64
	b    bool
	s    string
}

func Float(v float64) Scalar { return Scalar{kind: KindFloat, f: v} }
func Bool(v bool) Scalar     { return Scalar{kind: KindBool, b: v} }
func String(v string) Scalar { return Scalar{kind: KindString, s: v} }

// Kind reports the variant.
func (s Scalar) Kind() Kind { return s.kind }

// AsFloat returns the value when s is a Float.
func (s Scalar) AsFloat() (float64, bool) { return s.f, s.kind == KindFloat }

// AsBool returns the value when s is a Bool.
func (s Scalar) AsBool() (bool, bool) { return s.b, s.kind == KindBool }

// String formats the value as a command argument: 24.0 is "24", true is
// "true" and strings are returned as-is.
func (s Scalar) String() string {
	switch s.kind {
	case KindFloat:
		return strconv.FormatFloat(s.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.b)
	default:
		return s.s
	}
}

// Coerce converts text into kind. Text that does not parse as a float or
// bool is kept as a String, never reported as an error.
func Coerce(text string, kind Kind) Scalar {
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Float(f)
		}
	case KindBool:
		switch text {
		case "true":
			return Bool(true)
		case "false":
			return Bool(false)
		}
	}
	return String(text)
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindFloat:
		return json.Marshal(s.f)
	case KindBool:
		return json.Marshal(s.b)
	default:
		return json.Marshal(s.s)
	}
}

// UnmarshalJSON sniffs the variant from the raw value. Settings decode
// their current value with decodeAs instead, keyed by the default's kind.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*s = Float(x)
	case bool:
		*s = Bool(x)
	case string:
		*s = String(x)
	case nil:
		*s = String("")
	default:
		return fmt.Errorf("preference value must be a number, bool or string, got %s", bytes.TrimSpace(data))
	}
	return nil
}

// decodeAs decodes data into the given kind. A JSON string holding a
// parseable value of that kind is accepted; anything else that does not
// fit downgrades to String.
func decodeAs(data []byte, kind Kind) (Scalar, error) {
	var sniffed Scalar
	if err := sniffed.UnmarshalJSON(data); err != nil {
		return Scalar{}, err
	}
	if sniffed.kind == kind {
		return sniffed, nil
	}
	if sniffed.kind == KindString {
		return Coerce(sniffed.s, kind), nil
	}
	return String(sniffed.String()), nil
}
