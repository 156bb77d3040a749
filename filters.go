package linbus

import "fmt"

// IDFilter is the 64-bit acceptance mask of a device, one bit per identifier
// (bit id%8 of byte id/8).
type IDFilter [8]byte

// AllIDs accepts every identifier.
func AllIDs() IDFilter {
	return IDFilter{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

// FilterOf accepts exactly the given identifiers.
func FilterOf(ids ...uint8) (IDFilter, error) {
	var f IDFilter
	for _, id := range ids {
		if id > MaxID {
			return IDFilter{}, fmt.Errorf("%w: 0x%X", ErrInvalidID, id)
		}
		f[id/8] |= 1 << (id % 8)
	}
	return f, nil
}

// Allows reports whether id passes the filter.
func (f IDFilter) Allows(id uint8) bool {
	if id > MaxID {
		return false
	}
	return f[id/8]&(1<<(id%8)) != 0
}

// Typed and composable helpers for MessageFilter.

// ByID returns a filter that matches messages with the exact identifier.
func ByID(id uint8) MessageFilter {
	return func(m Message) bool { return m.ID == id }
}

// ByIDs returns a filter that matches any of the provided identifiers.
func ByIDs(ids ...uint8) MessageFilter {
	var set [MaxID + 1]bool
	for _, id := range ids {
		if id <= MaxID {
			set[id] = true
		}
	}
	return func(m Message) bool { return m.ID <= MaxID && set[m.ID] }
}

// ByRange matches messages whose ID is within [minID, maxID], inclusive.
func ByRange(minID, maxID uint8) MessageFilter {
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return func(m Message) bool { return m.ID >= minID && m.ID <= maxID }
}

// ByIDFilter matches what a device configured with f would deliver.
func ByIDFilter(f IDFilter) MessageFilter {
	return func(m Message) bool { return f.Allows(m.ID) }
}

// ValidOnly matches messages received without error flags.
func ValidOnly() MessageFilter {
	return func(m Message) bool { return m.Flags == 0 }
}

// ErrorsOnly matches messages carrying error flags.
func ErrorsOnly() MessageFilter {
	return func(m Message) bool { return m.Flags != 0 }
}

// And composes two filters; the result matches when both match.
func And(a, b MessageFilter) MessageFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(m Message) bool { return a(m) && b(m) }
	}
}

// Or composes two filters; the result matches when either matches.
func Or(a, b MessageFilter) MessageFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(m Message) bool { return a(m) || b(m) }
	}
}

// Not inverts a filter.
func Not(a MessageFilter) MessageFilter {
	if a == nil {
		return func(Message) bool { return false }
	}
	return func(m Message) bool { return !a(m) }
}
