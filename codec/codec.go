// Package codec translates between named signal values and LIN frame
// payloads.
//
// Signals are packed little-endian: bit j of a value occupies frame bit
// offset+j, and frame bit k is bit k%8 of byte k/8. All functions are pure
// over the read-only description and safe for concurrent use.
package codec

import (
	"errors"
	"fmt"
	"math"

	"github.com/notnil/linbus/ldf"
)

var (
	ErrTruncatedFrame    = errors.New("codec: truncated frame")
	ErrSignalOutOfBounds = errors.New("codec: signal out of bounds")
	ErrValueOutOfRange   = errors.New("codec: value out of range")
	ErrUnknownLabel      = errors.New("codec: unknown logical label")
)

// Encode packs values into a payload of exactly f.Length bytes. Signals of f
// absent from values are zero; names not in f are ignored.
func Encode(f *ldf.Frame, values Values) ([]byte, error) {
	buf := make([]byte, f.Length)
	for _, p := range f.Signals {
		v, ok := values[p.Signal.Name]
		if !ok {
			continue
		}
		raw, err := ToRaw(p.Signal, v)
		if err != nil {
			return nil, fmt.Errorf("frame %q: %w", f.Name, err)
		}
		if err := Insert(buf, p.Offset, p.Signal.Width, raw); err != nil {
			return nil, fmt.Errorf("frame %q signal %q: %w", f.Name, p.Signal.Name, err)
		}
	}
	return buf, nil
}

// EncodeInit packs the init value of every signal of f.
func EncodeInit(f *ldf.Frame) ([]byte, error) {
	buf := make([]byte, f.Length)
	for _, p := range f.Signals {
		if err := Insert(buf, p.Offset, p.Signal.Width, p.Signal.InitValue&p.Signal.MaxRaw()); err != nil {
			return nil, fmt.Errorf("frame %q signal %q: %w", f.Name, p.Signal.Name, err)
		}
	}
	return buf, nil
}

// Decode returns the display value of every signal of f.
func Decode(f *ldf.Frame, payload []byte) (Values, error) {
	vs, err := DecodeSignals(f, payload)
	if err != nil {
		return nil, err
	}
	out := make(Values, len(vs))
	for i, p := range f.Signals {
		out[p.Signal.Name] = vs[i]
	}
	return out, nil
}

// DecodeRaw returns the unscaled raw integer of every signal of f.
func DecodeRaw(f *ldf.Frame, payload []byte) (map[string]uint64, error) {
	if err := checkLength(f, payload); err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(f.Signals))
	for _, p := range f.Signals {
		raw, err := Extract(payload[:f.Length], p.Offset, p.Signal.Width)
		if err != nil {
			return nil, fmt.Errorf("frame %q signal %q: %w", f.Name, p.Signal.Name, err)
		}
		out[p.Signal.Name] = raw
	}
	return out, nil
}

// DecodeSignals returns the display values of f's signals in placement order.
func DecodeSignals(f *ldf.Frame, payload []byte) ([]Value, error) {
	if err := checkLength(f, payload); err != nil {
		return nil, err
	}
	out := make([]Value, len(f.Signals))
	for i, p := range f.Signals {
		raw, err := Extract(payload[:f.Length], p.Offset, p.Signal.Width)
		if err != nil {
			return nil, fmt.Errorf("frame %q signal %q: %w", f.Name, p.Signal.Name, err)
		}
		out[i] = Interpret(p.Signal, raw)
	}
	return out, nil
}

func checkLength(f *ldf.Frame, payload []byte) error {
	if len(payload) < f.Length {
		return fmt.Errorf("%w: frame %q needs %d bytes, got %d", ErrTruncatedFrame, f.Name, f.Length, len(payload))
	}
	return nil
}

// Interpret converts a raw value to its display value. The first converter
// accepting raw wins; a raw value outside every converter is scaled by the
// first physical range without range check, or returned as is.
func Interpret(s *ldf.Signal, raw uint64) Value {
	if s.Encoding == nil {
		return Raw(raw)
	}
	for _, c := range s.Encoding.Converters {
		if c.Contains(raw) {
			return convert(c, raw)
		}
	}
	if c, ok := s.Encoding.Physical(); ok {
		return convert(c, raw)
	}
	return Raw(raw)
}

func convert(c ldf.Converter, raw uint64) Value {
	switch c.Kind {
	case ldf.PhysicalRange:
		return Value{Kind: KindPhysical, Raw: raw, Physical: float64(raw)*c.Scale + c.Offset, Unit: c.Unit}
	case ldf.LogicalValue:
		return Value{Kind: KindLogical, Raw: raw, Label: c.Label}
	default:
		return Raw(raw)
	}
}

// ToRaw resolves v to the raw integer stored in the frame.
func ToRaw(s *ldf.Signal, v Value) (uint64, error) {
	var raw uint64
	switch v.Kind {
	case KindRaw:
		raw = v.Raw
	case KindLogical:
		found := false
		if s.Encoding != nil {
			for _, c := range s.Encoding.Converters {
				if c.Kind == ldf.LogicalValue && c.Label == v.Label {
					raw, found = c.Value, true
					break
				}
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: signal %q has no %q", ErrUnknownLabel, s.Name, v.Label)
		}
	case KindPhysical:
		r, err := physicalToRaw(s, v.Physical)
		if err != nil {
			return 0, err
		}
		raw = r
	default:
		return 0, fmt.Errorf("codec: signal %q: unknown value kind %d", s.Name, v.Kind)
	}
	if raw > s.MaxRaw() {
		return 0, fmt.Errorf("%w: signal %q value %d exceeds %d bits", ErrValueOutOfRange, s.Name, raw, s.Width)
	}
	return raw, nil
}

func physicalToRaw(s *ldf.Signal, phys float64) (uint64, error) {
	limit := math.Ldexp(1, s.Width)
	fit := func(r float64) bool { return !math.IsNaN(r) && r >= 0 && r < limit }

	var fallback *ldf.Converter
	if s.Encoding != nil {
		for i, c := range s.Encoding.Converters {
			if c.Kind != ldf.PhysicalRange || c.Scale == 0 {
				continue
			}
			r := math.Round((phys - c.Offset) / c.Scale)
			if fit(r) && c.Contains(uint64(r)) {
				return uint64(r), nil
			}
			if fallback == nil {
				fallback = &s.Encoding.Converters[i]
			}
		}
	}
	r := math.Trunc(phys)
	if fallback != nil {
		r = math.Round((phys - fallback.Offset) / fallback.Scale)
	}
	if !fit(r) {
		return 0, fmt.Errorf("%w: signal %q physical value %g", ErrValueOutOfRange, s.Name, phys)
	}
	return uint64(r), nil
}

// Insert writes the low width bits of raw at bit offset of buf.
func Insert(buf []byte, offset, width int, raw uint64) error {
	if err := checkBounds(len(buf), offset, width); err != nil {
		return err
	}
	for j := 0; j < width; j++ {
		bit := offset + j
		mask := byte(1) << uint(bit%8)
		if raw>>uint(j)&1 != 0 {
			buf[bit/8] |= mask
		} else {
			buf[bit/8] &^= mask
		}
	}
	return nil
}

// Extract reads width bits at bit offset of payload.
func Extract(payload []byte, offset, width int) (uint64, error) {
	if err := checkBounds(len(payload), offset, width); err != nil {
		return 0, err
	}
	var raw uint64
	for j := 0; j < width; j++ {
		bit := offset + j
		if payload[bit/8]>>uint(bit%8)&1 != 0 {
			raw |= 1 << uint(j)
		}
	}
	return raw, nil
}

func checkBounds(n, offset, width int) error {
	if offset < 0 || width < 1 || width > 64 || offset+width > 8*n {
		return fmt.Errorf("%w: bits [%d,%d) of %d bytes", ErrSignalOutOfBounds, offset, offset+width, n)
	}
	return nil
}
