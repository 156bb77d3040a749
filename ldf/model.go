package ldf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownFrame    = errors.New("ldf: unknown frame")
	ErrUnknownNode     = errors.New("ldf: unknown node")
	ErrUnknownSignal   = errors.New("ldf: unknown signal")
	ErrUnknownEncoding = errors.New("ldf: unknown encoding")
	ErrInvalid         = errors.New("ldf: invalid description")
)

// Limits of a LIN 2.x network.
const (
	MaxFrameID     = 0x3F
	MaxFrameLength = 8
	MaxSignalWidth = 64
)

// Role of a node on the bus.
type Role uint8

const (
	Slave Role = iota
	Master
)

func (r Role) String() string {
	if r == Master {
		return "master"
	}
	return "slave"
}

// Node is a publisher or subscriber on the network.
type Node struct {
	Name string
	Role Role
}

// IsMaster reports whether n is the network's master node. A nil node is not.
func (n *Node) IsMaster() bool { return n != nil && n.Role == Master }

// ConverterKind tags the variant held by a Converter.
type ConverterKind uint8

const (
	PhysicalRange ConverterKind = iota + 1
	LogicalValue
)

func (k ConverterKind) String() string {
	switch k {
	case PhysicalRange:
		return "physical"
	case LogicalValue:
		return "logical"
	default:
		return "unknown"
	}
}

// Converter is one entry of a signal encoding type.
//
// PhysicalRange uses Min, Max (inclusive raw bounds), Scale, Offset and Unit.
// LogicalValue uses Value (raw) and Label.
type Converter struct {
	Kind ConverterKind

	Min    uint64
	Max    uint64
	Scale  float64
	Offset float64
	Unit   string

	Value uint64
	Label string
}

// Contains reports whether raw is accepted by the converter.
func (c Converter) Contains(raw uint64) bool {
	switch c.Kind {
	case PhysicalRange:
		return raw >= c.Min && raw <= c.Max
	case LogicalValue:
		return raw == c.Value
	default:
		return false
	}
}

// Encoding is a named, ordered list of converters. Order matters when decoding.
type Encoding struct {
	Name       string
	Converters []Converter
}

// Physical returns the first physical range converter.
func (e *Encoding) Physical() (Converter, bool) {
	if e == nil {
		return Converter{}, false
	}
	for _, c := range e.Converters {
		if c.Kind == PhysicalRange {
			return c, true
		}
	}
	return Converter{}, false
}

// LogicalValues returns the distinct raw values of the logical converters in
// declaration order.
func (e *Encoding) LogicalValues() []uint64 {
	if e == nil {
		return nil
	}
	var out []uint64
	seen := make(map[uint64]struct{})
	for _, c := range e.Converters {
		if c.Kind != LogicalValue {
			continue
		}
		if _, ok := seen[c.Value]; ok {
			continue
		}
		seen[c.Value] = struct{}{}
		out = append(out, c.Value)
	}
	return out
}

// Signal is a named bit-field. Its position is given by the frame placement.
type Signal struct {
	Name      string
	Width     int
	InitValue uint64
	Publisher *Node
	Encoding  *Encoding
}

// MaxRaw returns the largest raw value representable in the signal width.
func (s *Signal) MaxRaw() uint64 {
	if s.Width >= 64 {
		return ^uint64(0)
	}
	if s.Width <= 0 {
		return 0
	}
	return 1<<uint(s.Width) - 1
}

// Placement locates a signal inside a frame.
type Placement struct {
	Offset int
	Signal *Signal
}

// Frame is an unconditional LIN frame.
type Frame struct {
	ID        uint8
	Name      string
	Length    int
	Publisher *Node
	Signals   []Placement
}

// Placement returns the placement of the named signal.
func (f *Frame) Placement(name string) (Placement, bool) {
	for _, p := range f.Signals {
		if p.Signal.Name == name {
			return p, true
		}
	}
	return Placement{}, false
}

// ScheduleEntry is one slot of a schedule table. Entries with a Command are
// diagnostic or configuration slots (MasterReq, SlaveResp, AssignNAD ...) and
// carry no frame.
type ScheduleEntry struct {
	FrameID uint8
	Delay   float64 // seconds
	Command string
}

// ScheduleTable is a named ordered sequence of slots.
type ScheduleTable struct {
	Name    string
	Entries []ScheduleEntry
}

// Description is the read-only network model.
type Description struct {
	ProtocolVersion string
	Baudrate        int
	Master          *Node
	Slaves          []*Node
	Encodings       []*Encoding
	Signals         []*Signal
	Frames          []*Frame
	ScheduleTables  []*ScheduleTable

	once sync.Once
	byID map[uint8]*Frame
}

// Frame returns the frame with the given identifier.
func (d *Description) Frame(id uint8) (*Frame, error) {
	d.once.Do(d.index)
	f, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownFrame, id)
	}
	return f, nil
}

// FrameByName returns the frame with the given name.
func (d *Description) FrameByName(name string) (*Frame, error) {
	for _, f := range d.Frames {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, name)
}

// Node returns the master or slave node with the given name.
func (d *Description) Node(name string) (*Node, error) {
	if d.Master != nil && d.Master.Name == name {
		return d.Master, nil
	}
	for _, n := range d.Slaves {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
}

// Table returns the index of the schedule table named name, ignoring case.
func (d *Description) Table(name string) (int, bool) {
	for i, t := range d.ScheduleTables {
		if strings.EqualFold(t.Name, name) {
			return i, true
		}
	}
	return 0, false
}

func (d *Description) index() {
	d.byID = make(map[uint8]*Frame, len(d.Frames))
	for _, f := range d.Frames {
		d.byID[f.ID] = f
	}
}
