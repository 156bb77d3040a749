// Package schedule turns the schedule tables of a description into device
// schedule slots and arms them on a LIN master.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/notnil/linbus/ldf"
)

var ErrUnknownTable = errors.New("schedule: unknown schedule table")

// Direction of a scheduled frame seen from the local master.
type Direction uint8

const (
	Published Direction = iota
	Subscribed
)

func (d Direction) String() string {
	if d == Published {
		return "published"
	}
	return "subscribed"
}

// Letter is the one-letter form used in listings: M for frames the master
// publishes, S for slave responses.
func (d Direction) Letter() string {
	if d == Published {
		return "M"
	}
	return "S"
}

// DirectionOf classifies f against the local master node.
func DirectionOf(f *ldf.Frame) Direction {
	if f.Publisher.IsMaster() {
		return Published
	}
	return Subscribed
}

// Entry is one frame slot of one schedule table.
type Entry struct {
	Table     int
	TableName string
	FrameID   uint8
	DelayMS   uint32
	Direction Direction
}

// IDSet is a set of frame identifiers.
type IDSet map[uint8]struct{}

// Add inserts id.
func (s IDSet) Add(id uint8) { s[id] = struct{}{} }

// Contains reports whether id is in the set.
func (s IDSet) Contains(id uint8) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in ascending order.
func (s IDSet) Sorted() []uint8 {
	out := make([]uint8, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build enumerates the frame slots of every schedule table in table then
// entry order, and collects the frames published by the master. Command slots
// are skipped.
func Build(d *ldf.Description) ([]Entry, IDSet, error) {
	var entries []Entry
	published := make(IDSet)
	for ti, t := range d.ScheduleTables {
		for _, se := range t.Entries {
			if se.Command != "" {
				continue
			}
			f, err := d.Frame(se.FrameID)
			if err != nil {
				return nil, nil, fmt.Errorf("schedule: table %q: %w", t.Name, err)
			}
			dir := DirectionOf(f)
			entries = append(entries, Entry{
				Table:     ti,
				TableName: t.Name,
				FrameID:   f.ID,
				DelayMS:   DelayMS(se.Delay),
				Direction: dir,
			})
			if dir == Published {
				published.Add(f.ID)
			}
		}
	}
	return entries, published, nil
}

// DelayMS truncates a delay in seconds to whole milliseconds. A tolerance of
// 1e-9 ms keeps values such as 0.029 s from truncating to 28.
func DelayMS(seconds float64) uint32 {
	if seconds <= 0 {
		return 0
	}
	ms := math.Floor(seconds*1000 + 1e-9)
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

// FindTable returns the index of the table named name, ignoring case.
func FindTable(d *ldf.Description, name string) (int, error) {
	if i, ok := d.Table(name); ok {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// ForTable returns the entries of table index table.
func ForTable(entries []Entry, table int) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// PublishedIn returns the frames published by the master within entries.
func PublishedIn(entries []Entry) IDSet {
	out := make(IDSet)
	for _, e := range entries {
		if e.Direction == Published {
			out.Add(e.FrameID)
		}
	}
	return out
}
