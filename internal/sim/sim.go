// Package sim populates a loopback bus with simulated slave nodes so the
// tools can run without hardware.
package sim

import (
	"context"
	"fmt"
	"time"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/codec"
	"github.com/notnil/linbus/fuzz"
	"github.com/notnil/linbus/ldf"
	"github.com/notnil/linbus/schedule"
)

// Slave answers the frames one slave node publishes.
type Slave struct {
	Node      *ldf.Node
	Transport linbus.Transport

	frames []*ldf.Frame
	gen    *fuzz.Generator
}

// NewSlave starts t in slave mode and programs every frame node publishes
// with its signal init values.
func NewSlave(t linbus.Transport, d *ldf.Description, node *ldf.Node, baudrate int, gen *fuzz.Generator) (*Slave, error) {
	if err := t.Start(linbus.ModeSlave, baudrate); err != nil {
		return nil, err
	}
	// Slaves do not consume traffic.
	if err := t.SetIDFilter(linbus.IDFilter{}); err != nil {
		return nil, err
	}
	s := &Slave{Node: node, Transport: t, gen: gen}
	for _, f := range d.Frames {
		if f.Publisher != node {
			continue
		}
		data, err := codec.EncodeInit(f)
		if err != nil {
			return nil, err
		}
		entry, err := linbus.NewFrameEntry(f.ID, linbus.DirPublisher, schedule.ChecksumFor(d, f.ID), data)
		if err != nil {
			return nil, fmt.Errorf("sim: slave %s frame %q: %w", node.Name, f.Name, err)
		}
		if err := t.SetFrameEntry(entry); err != nil {
			return nil, err
		}
		s.frames = append(s.frames, f)
	}
	return s, nil
}

// Frames returns the frames the slave answers.
func (s *Slave) Frames() []*ldf.Frame { return s.frames }

// Step replaces the response of one random frame with fresh values.
func (s *Slave) Step() error {
	if len(s.frames) == 0 {
		return nil
	}
	ids := make([]uint8, len(s.frames))
	for i, f := range s.frames {
		ids[i] = f.ID
	}
	id := s.gen.Pick(ids)
	for _, f := range s.frames {
		if f.ID != id {
			continue
		}
		vs, err := s.gen.ValuesFor(f, s.Node)
		if err != nil {
			return err
		}
		data, err := codec.Encode(f, vs)
		if err != nil {
			return err
		}
		return s.Transport.SetFrameData(id, data)
	}
	return nil
}

// Run calls Step every interval until ctx is done.
func (s *Slave) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = fuzz.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Step(); err != nil {
				return err
			}
		}
	}
}

// Slaves opens one endpoint of bus per slave node of d.
func Slaves(bus *linbus.Loopback, d *ldf.Description, baudrate int, gen *fuzz.Generator) ([]*Slave, error) {
	var out []*Slave
	for _, n := range d.Slaves {
		s, err := NewSlave(bus.Open(), d, n, baudrate, gen)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
