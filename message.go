package linbus

import (
	"errors"
	"fmt"
	"strings"
)

// Limits of a LIN 2.x frame.
const (
	MaxID  = 0x3F
	MaxLen = 8
)

var (
	ErrInvalidID  = errors.New("linbus: invalid identifier")
	ErrInvalidLen = errors.New("linbus: invalid data length")
)

// Direction of a frame entry in the device frame table.
type Direction uint8

const (
	DirDisabled Direction = iota
	DirPublisher
	DirSubscriber
	DirSubscriberAutoLen
)

func (d Direction) String() string {
	switch d {
	case DirDisabled:
		return "disabled"
	case DirPublisher:
		return "publisher"
	case DirSubscriber:
		return "subscriber"
	case DirSubscriberAutoLen:
		return "subscriber-auto-len"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ChecksumType selects the LIN checksum model computed by the device.
type ChecksumType uint8

const (
	ChecksumCustom ChecksumType = iota
	ChecksumClassic
	ChecksumEnhanced
	ChecksumAuto
)

func (c ChecksumType) String() string {
	switch c {
	case ChecksumCustom:
		return "custom"
	case ChecksumClassic:
		return "classic"
	case ChecksumEnhanced:
		return "enhanced"
	case ChecksumAuto:
		return "auto"
	default:
		return fmt.Sprintf("checksum(%d)", uint8(c))
	}
}

// ErrorFlag is the reception error bitfield reported with a frame.
// A zero value means the frame was received without error.
type ErrorFlag uint16

const (
	ErrInconsistentSync ErrorFlag = 1 << iota
	ErrIDParityBit0
	ErrIDParityBit1
	ErrSlaveNotResponding
	ErrTimeout
	ErrChecksum
	ErrGroundShort
	ErrVBatShort
	ErrSlotDelayTooSmall
	ErrOtherResponse
)

var errorFlagNames = []string{
	"INCONSISTENT_SYNC",
	"ID_PARITY_BIT_0",
	"ID_PARITY_BIT_1",
	"SLAVE_NOT_RESPONDING",
	"TIMEOUT",
	"CHECKSUM",
	"GROUND_SHORT",
	"VBAT_SHORT",
	"SLOT_DELAY_TOO_SMALL",
	"OTHER_RESPONSE",
}

// String lists the set flags joined by "|".
func (e ErrorFlag) String() string {
	if e == 0 {
		return "OK"
	}
	var parts []string
	for i, name := range errorFlagNames {
		if e&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	if rest := e &^ (1<<uint(len(errorFlagNames)) - 1); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// ReceptionError reports a frame received with a nonzero error bitfield.
// It describes bus data, not a failure of the reader.
type ReceptionError struct {
	ID    uint8
	Flags ErrorFlag
}

func (e *ReceptionError) Error() string {
	return fmt.Sprintf("linbus: frame 0x%02X reception error: %s", e.ID, e.Flags)
}

// Message is a frame as seen on the bus.
type Message struct {
	ID          uint8
	Len         uint8
	Data        [MaxLen]byte
	Direction   Direction
	Checksum    ChecksumType
	TimestampUS uint64
	Flags       ErrorFlag
}

// Validate returns an error if the message is not valid.
func (m Message) Validate() error {
	if m.ID > MaxID {
		return ErrInvalidID
	}
	if m.Len > MaxLen {
		return ErrInvalidLen
	}
	return nil
}

// Payload returns the valid data bytes.
func (m Message) Payload() []byte {
	n := m.Len
	if n > MaxLen {
		n = MaxLen
	}
	return m.Data[:n]
}

// Err returns a *ReceptionError when the message carries error flags.
func (m Message) Err() error {
	if m.Flags == 0 {
		return nil
	}
	return &ReceptionError{ID: m.ID, Flags: m.Flags}
}

// String renders "1A [2] DE AD", with the error flags appended when set.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X [%d]", m.ID, m.Len)
	for _, c := range m.Payload() {
		fmt.Fprintf(&b, " %02X", c)
	}
	if m.Flags != 0 {
		fmt.Fprintf(&b, " ERR %s", m.Flags)
	}
	return b.String()
}

// MustMessage constructs a Message and panics if invalid. Convenience for
// tests and examples.
func MustMessage(id uint8, data []byte) Message {
	if len(data) > MaxLen {
		panic(ErrInvalidLen)
	}
	m := Message{ID: id, Len: uint8(len(data))}
	copy(m.Data[:], data)
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// FrameEntry programs one identifier of the device frame table.
type FrameEntry struct {
	ID        uint8
	Direction Direction
	Checksum  ChecksumType
	Len       uint8
	Data      [MaxLen]byte
}

// NewFrameEntry builds a validated frame entry carrying data.
func NewFrameEntry(id uint8, dir Direction, cs ChecksumType, data []byte) (FrameEntry, error) {
	if len(data) > MaxLen {
		return FrameEntry{}, ErrInvalidLen
	}
	e := FrameEntry{ID: id, Direction: dir, Checksum: cs, Len: uint8(len(data))}
	copy(e.Data[:], data)
	return e, e.Validate()
}

// Validate returns an error if the entry is not valid.
func (e FrameEntry) Validate() error {
	if e.ID > MaxID {
		return ErrInvalidID
	}
	if e.Len > MaxLen {
		return ErrInvalidLen
	}
	return nil
}

// Slot is one (delay, frame) step of a device schedule table.
type Slot struct {
	DelayMS uint32
	ID      uint8
}
