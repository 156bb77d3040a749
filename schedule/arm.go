package schedule

import (
	"fmt"
	"strings"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/codec"
	"github.com/notnil/linbus/ldf"
)

// Diagnostic frame identifiers, always protected by the classic checksum.
const (
	MasterRequestID = 0x3C
	SlaveResponseID = 0x3D
)

// PayloadFunc returns the initial payload of a frame published by the master.
type PayloadFunc func(f *ldf.Frame) ([]byte, error)

// ChecksumFor returns the checksum model of frame id: classic for LIN 1.x
// networks and diagnostic frames, enhanced otherwise.
func ChecksumFor(d *ldf.Description, id uint8) linbus.ChecksumType {
	if id == MasterRequestID || id == SlaveResponseID || strings.HasPrefix(d.ProtocolVersion, "1.") {
		return linbus.ChecksumClassic
	}
	return linbus.ChecksumEnhanced
}

// Arm programs the device frame table and schedule slots for entries.
// Every distinct frame is programmed once: published frames with payload(f)
// (signal init values when payload is nil), subscribed frames as
// subscriber-auto-length with a zero payload. One slot is appended per entry.
// Arm does not activate a table.
func Arm(t linbus.Transport, d *ldf.Description, entries []Entry, payload PayloadFunc) error {
	if payload == nil {
		payload = codec.EncodeInit
	}
	programmed := make(IDSet)
	for _, e := range entries {
		if !programmed.Contains(e.FrameID) {
			if err := program(t, d, e, payload); err != nil {
				return err
			}
			programmed.Add(e.FrameID)
		}
		if err := t.AddScheduleSlot(e.Table, linbus.Slot{DelayMS: e.DelayMS, ID: e.FrameID}); err != nil {
			return fmt.Errorf("schedule: table %q slot 0x%02X: %w", e.TableName, e.FrameID, err)
		}
	}
	return nil
}

func program(t linbus.Transport, d *ldf.Description, e Entry, payload PayloadFunc) error {
	f, err := d.Frame(e.FrameID)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	dir := linbus.DirSubscriberAutoLen
	data := make([]byte, f.Length)
	if e.Direction == Published {
		dir = linbus.DirPublisher
		if data, err = payload(f); err != nil {
			return fmt.Errorf("schedule: frame %q payload: %w", f.Name, err)
		}
	}
	entry, err := linbus.NewFrameEntry(f.ID, dir, ChecksumFor(d, f.ID), data)
	if err != nil {
		return fmt.Errorf("schedule: frame %q: %w", f.Name, err)
	}
	if err := t.SetFrameEntry(entry); err != nil {
		return fmt.Errorf("schedule: frame %q: %w", f.Name, err)
	}
	return nil
}

// Activate starts schedule table table on the device.
func Activate(t linbus.Transport, table int) error {
	if err := t.StartSchedule(table); err != nil {
		return fmt.Errorf("schedule: activate table %d: %w", table, err)
	}
	return nil
}
