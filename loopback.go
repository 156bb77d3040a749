package linbus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Loopback is an in-memory LIN bus for tests and simulations.
//
// Every endpoint opened from the same bus behaves like a LIN device. A master
// endpoint runs its active schedule table: publisher slots are broadcast with
// the master's payload, subscriber slots are answered by a started slave
// endpoint holding a publisher entry for the identifier, or reported with
// ErrSlaveNotResponding. Each endpoint receives every frame on the bus,
// including its own, subject to its ID filter.
type Loopback struct {
	epoch time.Time

	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopDevice]struct{}
}

// NewLoopback creates a new loopback bus.
func NewLoopback() *Loopback {
	return &Loopback{epoch: time.Now(), endpoints: make(map[*loopDevice]struct{})}
}

// Open creates a new endpoint attached to the bus.
func (b *Loopback) Open() Transport {
	ep := &loopDevice{
		bus:    b,
		ch:     make(chan Message, 64),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ep.dead = true
		close(ep.closed)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *Loopback) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.closeNoLock()
	}
	b.endpoints = nil
	b.mu.Unlock()
	return nil
}

func (b *Loopback) now() uint64 {
	return uint64(time.Since(b.epoch).Microseconds())
}

// transmit runs one slot of a master schedule.
func (b *Loopback) transmit(master *loopDevice, id uint8) {
	master.mu.Lock()
	entry := master.frames[id]
	master.mu.Unlock()

	msg := Message{ID: id, Direction: entry.Direction, Checksum: entry.Checksum}
	switch entry.Direction {
	case DirPublisher:
		msg.Len = entry.Len
		msg.Data = entry.Data
	case DirSubscriber, DirSubscriberAutoLen:
		resp, ok := b.response(master, id)
		switch {
		case !ok:
			msg.Flags = ErrSlaveNotResponding
		case entry.Direction == DirSubscriber && resp.Len != entry.Len:
			msg.Flags = ErrTimeout
		default:
			msg.Len = resp.Len
			msg.Data = resp.Data
		}
	default:
		return
	}
	msg.TimestampUS = b.now()
	b.deliver(msg)
}

// response finds a slave endpoint publishing id.
func (b *Loopback) response(master *loopDevice, id uint8) (FrameEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ep := range b.endpoints {
		if ep == master {
			continue
		}
		ep.mu.Lock()
		e := ep.frames[id]
		ok := !ep.dead && ep.mode == ModeSlave && e.Direction == DirPublisher
		ep.mu.Unlock()
		if ok {
			return e, true
		}
	}
	return FrameEntry{}, false
}

func (b *Loopback) deliver(msg Message) {
	b.mu.RLock()
	targets := make([]*loopDevice, 0, len(b.endpoints))
	for ep := range b.endpoints {
		targets = append(targets, ep)
	}
	b.mu.RUnlock()

	for _, t := range targets {
		t.mu.Lock()
		ok := !t.dead && t.mode != ModeNone && t.filter.Allows(msg.ID)
		t.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case t.ch <- msg:
		default:
			// Drop if the reader is slow and its queue is full.
		}
	}
}

type loopDevice struct {
	bus    *Loopback
	ch     chan Message
	closed chan struct{}

	mu       sync.Mutex
	dead     bool
	mode     Mode
	baudrate int
	filter   IDFilter
	frames   [MaxID + 1]FrameEntry
	tables   [MaxScheduleTables][]Slot
	stop     chan struct{}
}

// Start sets mode and baudrate and accepts every identifier. A running
// schedule is stopped.
func (e *loopDevice) Start(mode Mode, baudrate int) error {
	if mode != ModeMaster && mode != ModeSlave {
		return fmt.Errorf("linbus: invalid mode %s", mode)
	}
	if baudrate < MinBaudrate || baudrate > MaxBaudrate {
		return fmt.Errorf("%w: %d", ErrInvalidBaudrate, baudrate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return ErrClosed
	}
	e.stopScheduleLocked()
	e.mode = mode
	e.baudrate = baudrate
	e.filter = AllIDs()
	return nil
}

func (e *loopDevice) SetIDFilter(filter IDFilter) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return err
	}
	e.filter = filter
	return nil
}

func (e *loopDevice) SetFrameEntry(entry FrameEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return err
	}
	e.frames[entry.ID] = entry
	return nil
}

func (e *loopDevice) SetFrameData(id uint8, data []byte) error {
	if id > MaxID {
		return ErrInvalidID
	}
	if len(data) > MaxLen {
		return ErrInvalidLen
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return err
	}
	f := &e.frames[id]
	f.ID = id
	f.Len = uint8(len(data))
	f.Data = [MaxLen]byte{}
	copy(f.Data[:], data)
	return nil
}

func (e *loopDevice) AddScheduleSlot(table int, slot Slot) error {
	if table < 0 || table >= MaxScheduleTables {
		return fmt.Errorf("%w: %d", ErrInvalidSchedule, table)
	}
	if slot.ID > MaxID {
		return ErrInvalidID
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return err
	}
	e.tables[table] = append(e.tables[table], slot)
	return nil
}

func (e *loopDevice) StartSchedule(table int) error {
	if table < 0 || table >= MaxScheduleTables {
		return fmt.Errorf("%w: %d", ErrInvalidSchedule, table)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return err
	}
	if e.mode != ModeMaster {
		return ErrNotMaster
	}
	if len(e.tables[table]) == 0 {
		return fmt.Errorf("%w: table %d is empty", ErrInvalidSchedule, table)
	}
	e.stopScheduleLocked()
	slots := append([]Slot(nil), e.tables[table]...)
	stop := make(chan struct{})
	e.stop = stop
	go e.runSchedule(slots, stop)
	return nil
}

func (e *loopDevice) runSchedule(slots []Slot, stop chan struct{}) {
	for {
		for _, s := range slots {
			select {
			case <-stop:
				return
			default:
			}
			e.bus.transmit(e, s.ID)
			delay := time.Duration(s.DelayMS) * time.Millisecond
			if delay < time.Millisecond {
				delay = time.Millisecond
			}
			t := time.NewTimer(delay)
			select {
			case <-stop:
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// Read waits for the next message.
func (e *loopDevice) Read(ctx context.Context) (Message, error) {
	select {
	case m := <-e.ch:
		return m, nil
	case <-e.closed:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close detaches the endpoint from the bus and stops its schedule.
func (e *loopDevice) Close() error {
	e.bus.mu.Lock()
	e.closeNoLock()
	e.bus.mu.Unlock()
	return nil
}

func (e *loopDevice) closeNoLock() {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	e.stopScheduleLocked()
	close(e.closed)
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.mu.Unlock()
}

func (e *loopDevice) readyLocked() error {
	if e.dead {
		return ErrClosed
	}
	if e.mode == ModeNone {
		return ErrNotStarted
	}
	return nil
}

func (e *loopDevice) stopScheduleLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}
