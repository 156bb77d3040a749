package linbus

import (
	"context"
	"io"
	"log/slog"
)

// LoggedTransport is a Transport decorator that logs device configuration
// and Read operations using a slog.Logger.

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone LogOption = 0
	LogRead LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedTransport wraps the given Transport and logs selected operations at
// the given level. A nil logger discards.
func NewLoggedTransport(inner Transport, logger *slog.Logger, level slog.Level, opts LogOption) Transport {
	return NewLoggedTransportWithFilter(inner, logger, level, opts, nil)
}

// NewLoggedTransportWithFilter wraps the given Transport and logs selected
// operations, but only for frames that satisfy the provided filter. If filter
// is nil, all frames are considered for logging.
func NewLoggedTransportWithFilter(inner Transport, logger *slog.Logger, level slog.Level, opts LogOption, filter MessageFilter) Transport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &loggedTransport{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedTransport struct {
	inner  Transport
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
	filter MessageFilter
}

func (l *loggedTransport) wants(id uint8) bool {
	return l.opts&LogWrite != 0 && (l.filter == nil || l.filter(Message{ID: id}))
}

func (l *loggedTransport) logWrite(op string, err error, args ...any) {
	if err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "linbus "+op+" error",
			append(args, "error", err)...,
		)
		return
	}
	l.logger.Log(context.Background(), l.level, "linbus "+op, args...)
}

func (l *loggedTransport) Start(mode Mode, baudrate int) error {
	err := l.inner.Start(mode, baudrate)
	if l.opts&LogWrite != 0 {
		l.logWrite("start", err, "mode", mode.String(), "baudrate", baudrate)
	}
	return err
}

func (l *loggedTransport) SetIDFilter(filter IDFilter) error {
	err := l.inner.SetIDFilter(filter)
	if l.opts&LogWrite != 0 {
		l.logWrite("set filter", err, "filter", filter[:])
	}
	return err
}

func (l *loggedTransport) SetFrameEntry(entry FrameEntry) error {
	err := l.inner.SetFrameEntry(entry)
	if l.wants(entry.ID) {
		l.logWrite("set frame entry", err,
			"id", entry.ID,
			"direction", entry.Direction.String(),
			"checksum", entry.Checksum.String(),
			"len", int(entry.Len),
			"data", entry.Data[:entry.Len],
		)
	}
	return err
}

func (l *loggedTransport) SetFrameData(id uint8, data []byte) error {
	err := l.inner.SetFrameData(id, data)
	if l.wants(id) {
		l.logWrite("set frame data", err, "id", id, "len", len(data), "data", data)
	}
	return err
}

func (l *loggedTransport) AddScheduleSlot(table int, slot Slot) error {
	err := l.inner.AddScheduleSlot(table, slot)
	if l.wants(slot.ID) {
		l.logWrite("add schedule slot", err, "table", table, "delay_ms", slot.DelayMS, "id", slot.ID)
	}
	return err
}

func (l *loggedTransport) StartSchedule(table int) error {
	err := l.inner.StartSchedule(table)
	if l.opts&LogWrite != 0 {
		l.logWrite("start schedule", err, "table", table)
	}
	return err
}

// Read logs the received message or error when read logging is enabled.
func (l *loggedTransport) Read(ctx context.Context) (Message, error) {
	m, err := l.inner.Read(ctx)
	if l.opts&LogRead != 0 {
		if err != nil {
			l.logger.Log(ctx, slog.LevelError, "linbus read error",
				"error", err,
			)
		} else if l.filter == nil || l.filter(m) {
			l.logger.Log(ctx, l.level, "linbus read",
				"id", m.ID,
				"len", int(m.Len),
				"data", m.Payload(),
				"flags", m.Flags.String(),
				"string", m.String(),
			)
		}
	}
	return m, err
}

// Close forwards to the inner Transport without logging.
func (l *loggedTransport) Close() error {
	return l.inner.Close()
}
