package linbus

import (
	"context"
	"errors"
)

// Mode is the operating mode of a LIN device.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeSlave
	ModeMaster
)

func (m Mode) String() string {
	switch m {
	case ModeSlave:
		return "slave"
	case ModeMaster:
		return "master"
	default:
		return "none"
	}
}

// Baudrate limits of a LIN bus.
const (
	MinBaudrate = 1000
	MaxBaudrate = 20000
)

// Number of schedule tables a device holds.
const MaxScheduleTables = 8

var (
	// ErrClosed indicates the transport has been closed.
	ErrClosed          = errors.New("linbus: closed")
	ErrNotStarted      = errors.New("linbus: device not started")
	ErrNotMaster       = errors.New("linbus: device not in master mode")
	ErrInvalidBaudrate = errors.New("linbus: invalid baudrate")
	ErrInvalidSchedule = errors.New("linbus: invalid schedule table")
	ErrReadOnly        = errors.New("linbus: transport is read-only")
)

// Transport is the capability interface of a LIN device.
//
// Configuration calls do not block. Read blocks until a frame arrives, the
// context is done or the transport is closed. Implementations should be safe
// for concurrent use by one reader and any number of configuring goroutines.
type Transport interface {
	// Start initializes the device in the given mode and baudrate.
	Start(mode Mode, baudrate int) error

	// SetIDFilter selects the identifiers delivered by Read.
	SetIDFilter(filter IDFilter) error

	// SetFrameEntry programs direction, checksum type and payload of one id.
	SetFrameEntry(entry FrameEntry) error

	// SetFrameData replaces the payload of an entry without touching its
	// direction or checksum type.
	SetFrameData(id uint8, data []byte) error

	// AddScheduleSlot appends a slot to schedule table table.
	AddScheduleSlot(table int, slot Slot) error

	// StartSchedule activates schedule table table. Master mode only.
	StartSchedule(table int) error

	// Read returns the next received frame. Frames with reception errors are
	// returned with nonzero Flags and a nil error.
	Read(ctx context.Context) (Message, error)

	// Close releases the device and unblocks a pending Read.
	Close() error
}
