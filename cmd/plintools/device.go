package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/fuzz"
	"github.com/notnil/linbus/internal/sim"
	"github.com/notnil/linbus/schedule"
	"github.com/notnil/linbus/trace"
)

// device is an opened transport plus the simulated peers feeding it.
type device struct {
	linbus.Transport
	bus    *linbus.Loopback
	log    *logrus.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// openDevice opens name. On a loopback bus the description's slaves are
// simulated; with simulateMaster a fuzzing master also runs the configured
// schedule table so listeners have traffic to show.
func (e *env) openDevice(ctx context.Context, name string, simulateMaster bool) (*device, error) {
	switch {
	case name == "loopback":
		return e.openLoopback(ctx, simulateMaster)
	case strings.HasPrefix(name, "trace+follow:"):
		return e.openTrace(strings.TrimPrefix(name, "trace+follow:"), true)
	case strings.HasPrefix(name, "trace:"):
		return e.openTrace(strings.TrimPrefix(name, "trace:"), false)
	}
	return nil, fmt.Errorf("unsupported device %q", name)
}

func (e *env) openTrace(path string, follow bool) (*device, error) {
	t, err := trace.Open(path, trace.Options{Follow: follow, Realtime: true, Logger: e.slog})
	if err != nil {
		return nil, err
	}
	return &device{Transport: e.logged(t), cancel: func() {}}, nil
}

func (e *env) openLoopback(ctx context.Context, simulateMaster bool) (*device, error) {
	ctx, cancel := context.WithCancel(ctx)
	d := &device{bus: linbus.NewLoopback(), log: e.log, cancel: cancel}
	gen := e.generator()

	slaves, err := sim.Slaves(d.bus, e.desc, e.baud, gen)
	if err != nil {
		d.Close()
		return nil, err
	}
	for _, s := range slaves {
		s := s
		d.goRun(func() error { return s.Run(ctx, 4*e.cfg.Gen.Interval) })
	}

	if simulateMaster {
		table, err := e.table()
		if err != nil {
			d.Close()
			return nil, err
		}
		m, err := fuzz.StartMaster(d.bus.Open(), e.desc, e.baud, table, gen, e.cfg.Gen.Interval, e.slog)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.goRun(func() error { return m.Loop.Run(ctx) })
	}

	d.Transport = e.logged(d.bus.Open())
	return d, nil
}

func (d *device) goRun(fn func() error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(); err != nil {
			d.log.Errorf("simulated node stopped: %v", err)
		}
	}()
}

func (d *device) Close() error {
	d.cancel()
	var err error
	if d.Transport != nil {
		err = d.Transport.Close()
	}
	if d.bus != nil {
		d.bus.Close()
	}
	d.wg.Wait()
	return err
}

func (e *env) logged(t linbus.Transport) linbus.Transport {
	return linbus.NewLoggedTransport(t, e.slog, slog.LevelDebug, linbus.LogAll)
}

func (e *env) generator() *fuzz.Generator {
	if e.cfg.Gen.Seed != 0 {
		return fuzz.NewSeeded(e.cfg.Gen.Seed)
	}
	return fuzz.NewGenerator(nil)
}

// table resolves the configured schedule table; the first one by default.
func (e *env) table() (int, error) {
	if e.cfg.Gen.ScheduleTable == "" {
		return 0, nil
	}
	return schedule.FindTable(e.desc, e.cfg.Gen.ScheduleTable)
}
