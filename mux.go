package linbus

import (
	"context"
	"sync"
)

// MessageFilter decides whether a message should be delivered to a subscriber.
type MessageFilter func(Message) bool

// Mux multiplexes messages from a Transport to any number of subscribers via
// filters.
//
// It owns the Transport for reading and runs a single background goroutine to
// Read and fan-out messages to subscribers, so a live view, a recorder and a
// sample streamer can consume the same device. Configuration calls are not
// proxied; callers keep using the Transport for those.
type Mux struct {
	tr     Transport
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.RWMutex
	subs map[uint64]*subscriber
	next uint64
	err  error
}

type subscriber struct {
	filter MessageFilter
	ch     chan Message
}

// NewMux creates and starts a multiplexer bound to the given Transport.
func NewMux(tr Transport) *Mux {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mux{
		tr:     tr,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[uint64]*subscriber),
	}
	go m.run()
	return m
}

// Close stops the background reader and closes all subscriber channels. It
// does not close the Transport.
func (m *Mux) Close() error {
	m.cancel()
	<-m.done
	return nil
}

// Done is closed once the reader has stopped.
func (m *Mux) Done() <-chan struct{} { return m.done }

// Err returns the error that stopped the reader, if any.
func (m *Mux) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Subscribe registers a new subscriber with the provided filter and channel buffer.
// The returned channel receives messages that match the filter. The cancel
// function should be called when no longer needed; it will close the channel.
// Messages are dropped for a subscriber whose buffer is full.
func (m *Mux) Subscribe(filter MessageFilter, buffer int) (<-chan Message, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{filter: filter, ch: make(chan Message, buffer)}
	m.mu.Lock()
	select {
	case <-m.done:
		// Reader already gone.
		m.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	default:
	}
	id := m.next
	m.next++
	m.subs[id] = s
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if cur, ok := m.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(m.subs, id)
		}
		m.mu.Unlock()
	}
	return s.ch, cancel
}

func (m *Mux) run() {
	defer func() {
		m.mu.Lock()
		for id, s := range m.subs {
			close(s.ch)
			delete(m.subs, id)
		}
		close(m.done)
		m.mu.Unlock()
	}()
	for {
		msg, err := m.tr.Read(m.ctx)
		if err != nil {
			if m.ctx.Err() == nil {
				m.mu.Lock()
				m.err = err
				m.mu.Unlock()
			}
			return
		}
		m.mu.RLock()
		for _, s := range m.subs {
			if s.filter == nil || s.filter(msg) {
				select {
				case s.ch <- msg:
				default:
					// Drop if subscriber is slow and channel is full.
				}
			}
		}
		m.mu.RUnlock()
	}
}
