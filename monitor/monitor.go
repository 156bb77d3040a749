// Package monitor decodes received LIN traffic against a description and
// reports which signals changed since they were last seen.
package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/codec"
	"github.com/notnil/linbus/diff"
	"github.com/notnil/linbus/internal/metrics"
	"github.com/notnil/linbus/ldf"
)

// Signal is one decoded signal row of an update.
type Signal struct {
	Index   int
	Name    string
	Value   codec.Value
	Changed bool
}

// Update is the decoded form of one received message. Err is a
// *linbus.ReceptionError for frames received with error flags, or the codec
// error of a payload that does not match its frame; Signals is empty then.
type Update struct {
	Frame   *ldf.Frame
	Message linbus.Message
	Signals []Signal
	Err     error
}

// Changed reports whether any signal of u changed.
func (u Update) Changed() bool {
	for _, s := range u.Signals {
		if s.Changed {
			return true
		}
	}
	return false
}

// Raw returns the raw value of every signal of u by name.
func (u Update) Raw() map[string]uint64 {
	out := make(map[string]uint64, len(u.Signals))
	for _, s := range u.Signals {
		out[s.Name] = s.Value.Raw
	}
	return out
}

// Handler consumes updates. An error stops Run.
type Handler interface {
	HandleUpdate(Update) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(Update) error

func (f HandlerFunc) HandleUpdate(u Update) error { return f(u) }

// Handlers fans an update out to every handler in order.
type Handlers []Handler

func (hs Handlers) HandleUpdate(u Update) error {
	for _, h := range hs {
		if err := h.HandleUpdate(u); err != nil {
			return err
		}
	}
	return nil
}

// Monitor owns the diff cache of one receive loop.
type Monitor struct {
	desc  *ldf.Description
	cache *diff.Cache
	log   *slog.Logger
}

// New returns a Monitor for desc. A nil cache gets a fresh one; a nil logger
// discards.
func New(desc *ldf.Description, cache *diff.Cache, logger *slog.Logger) *Monitor {
	if cache == nil {
		cache = diff.New()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Monitor{desc: desc, cache: cache, log: logger}
}

// Cache returns the diff cache.
func (m *Monitor) Cache() *diff.Cache { return m.cache }

// Process decodes msg. It returns false for identifiers the description does
// not know.
func (m *Monitor) Process(msg linbus.Message) (Update, bool) {
	f, err := m.desc.Frame(msg.ID)
	if err != nil {
		metrics.UnknownFrames.Inc()
		m.log.Debug("monitor: unknown frame", "id", msg.ID)
		return Update{}, false
	}
	u := Update{Frame: f, Message: msg}
	if err := msg.Err(); err != nil {
		metrics.ReceptionErrors.WithLabelValues(f.Name).Inc()
		u.Err = err
		return u, true
	}
	metrics.FramesReceived.WithLabelValues(f.Name).Inc()
	values, err := codec.DecodeSignals(f, msg.Payload())
	if err != nil {
		metrics.DecodeErrors.Inc()
		m.log.Debug("monitor: decode failed", "frame", f.Name, "err", err)
		u.Err = err
		return u, true
	}
	u.Signals = make([]Signal, len(values))
	for i, v := range values {
		changed := m.cache.Observe(f.ID, i, v.Raw)
		if changed {
			metrics.SignalChanges.Inc()
		}
		u.Signals[i] = Signal{Index: i, Name: f.Signals[i].Signal.Name, Value: v, Changed: changed}
	}
	return u, true
}

// Run processes messages until ctx is done or msgs is closed and hands each
// known frame to h. Reception and decode errors are delivered as updates; only
// an error from h ends the loop early.
func (m *Monitor) Run(ctx context.Context, msgs <-chan linbus.Message, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			u, ok := m.Process(msg)
			if !ok {
				continue
			}
			if err := h.HandleUpdate(u); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
