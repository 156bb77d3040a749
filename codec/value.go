package codec

import (
	"strconv"
)

// Kind tags the representation held by a Value.
type Kind uint8

const (
	KindRaw Kind = iota
	KindPhysical
	KindLogical
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindPhysical:
		return "physical"
	case KindLogical:
		return "logical"
	default:
		return "unknown"
	}
}

// Value is a signal value in one of three representations. Decoded values
// always carry Raw as well.
type Value struct {
	Kind     Kind
	Raw      uint64
	Physical float64
	Unit     string
	Label    string
}

// Raw returns an unscaled raw value.
func Raw(v uint64) Value { return Value{Kind: KindRaw, Raw: v} }

// Physical returns a scaled value that Encode converts back to raw.
func Physical(v float64) Value { return Value{Kind: KindPhysical, Physical: v} }

// Logical returns an enumerated value named by its label.
func Logical(label string) Value { return Value{Kind: KindLogical, Label: label} }

// String renders the display form: the label, the scaled value with its unit
// or the raw integer.
func (v Value) String() string {
	switch v.Kind {
	case KindLogical:
		return v.Label
	case KindPhysical:
		s := strconv.FormatFloat(v.Physical, 'f', -1, 64)
		if v.Unit != "" {
			s += " " + v.Unit
		}
		return s
	default:
		return strconv.FormatUint(v.Raw, 10)
	}
}

// Values maps signal names to values.
type Values map[string]Value

// RawValues returns the raw integers of vs.
func (vs Values) RawValues() map[string]uint64 {
	out := make(map[string]uint64, len(vs))
	for k, v := range vs {
		out[k] = v.Raw
	}
	return out
}
