package linbus

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type recordSink struct {
	records []slog.Record
}

func (s *recordSink) Enabled(context.Context, slog.Level) bool { return true }

func (s *recordSink) Handle(_ context.Context, r slog.Record) error {
	// slog reuses the record, copy the attributes.
	nr := slog.Record{Time: r.Time, Level: r.Level, PC: r.PC, Message: r.Message}
	r.Attrs(func(a slog.Attr) bool { nr.AddAttrs(a); return true })
	s.records = append(s.records, nr)
	return nil
}

func (s *recordSink) WithAttrs([]slog.Attr) slog.Handler { return s }
func (s *recordSink) WithGroup(string) slog.Handler      { return s }

func hasSlogMsg(records []slog.Record, level slog.Level, msg string) bool {
	for _, r := range records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

func TestLoggedTransport_WriteAndReadLogging(t *testing.T) {
	bus := NewLoopback()
	defer bus.Close()

	sink := &recordSink{}
	logger := slog.New(sink)

	master := NewLoggedTransport(bus.Open(), logger, slog.LevelInfo, LogWrite)
	listener := NewLoggedTransport(bus.Open(), logger, slog.LevelInfo, LogRead)
	defer master.Close()
	defer listener.Close()

	if err := listener.Start(ModeSlave, 19200); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	if err := master.Start(ModeMaster, 19200); err != nil {
		t.Fatalf("start master: %v", err)
	}
	e, _ := NewFrameEntry(0x10, DirPublisher, ChecksumEnhanced, []byte{1, 2, 3})
	if err := master.SetFrameEntry(e); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if err := master.AddScheduleSlot(0, Slot{DelayMS: 5, ID: 0x10}); err != nil {
		t.Fatalf("slot: %v", err)
	}
	if err := master.StartSchedule(0); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := listener.Read(ctx); err != nil {
		t.Fatalf("read: %v", err)
	}

	for _, msg := range []string{"linbus start", "linbus set frame entry", "linbus add schedule slot", "linbus start schedule", "linbus read"} {
		if !hasSlogMsg(sink.records, slog.LevelInfo, msg) {
			t.Fatalf("expected %q log entry", msg)
		}
	}
}

func TestLoggedTransport_ErrorLogging(t *testing.T) {
	bus := NewLoopback()
	// A closed endpoint fails every call.
	rx := bus.Open()
	_ = rx.Close()

	sink := &recordSink{}
	logger := slog.New(sink)
	wrapped := NewLoggedTransport(rx, logger, slog.LevelInfo, LogAll)
	_, _ = wrapped.Read(context.Background())
	if err := wrapped.SetFrameData(0x10, []byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v want ErrClosed", err)
	}

	if !hasSlogMsg(sink.records, slog.LevelError, "linbus read error") {
		t.Fatalf("expected read error log entry")
	}
	if !hasSlogMsg(sink.records, slog.LevelError, "linbus set frame data error") {
		t.Fatalf("expected write error log entry")
	}
}

func TestLoggedTransport_Filter(t *testing.T) {
	bus := NewLoopback()
	defer bus.Close()

	sink := &recordSink{}
	dev := NewLoggedTransportWithFilter(bus.Open(), slog.New(sink), slog.LevelDebug, LogWrite, ByID(0x20))
	if err := dev.Start(ModeSlave, 19200); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = dev.SetFrameData(0x10, []byte{1})
	if hasSlogMsg(sink.records, slog.LevelDebug, "linbus set frame data") {
		t.Fatalf("filtered id should not be logged")
	}
	_ = dev.SetFrameData(0x20, []byte{1})
	if !hasSlogMsg(sink.records, slog.LevelDebug, "linbus set frame data") {
		t.Fatalf("expected log entry for 0x20")
	}
}
