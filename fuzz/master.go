package fuzz

import (
	"log/slog"
	"time"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/ldf"
	"github.com/notnil/linbus/schedule"
)

// Master is a started master device with every schedule table armed.
type Master struct {
	Transport linbus.Transport
	Entries   []schedule.Entry
	Table     int
	Loop      *Loop
}

// StartMaster starts t in master mode, arms every schedule table of d with
// payloads drawn from gen and activates table. The returned Loop re-randomizes
// every frame the master publishes in any table once run.
func StartMaster(t linbus.Transport, d *ldf.Description, baudrate, table int, gen *Generator, interval time.Duration, logger *slog.Logger) (*Master, error) {
	entries, published, err := schedule.Build(d)
	if err != nil {
		return nil, err
	}
	if err := t.Start(linbus.ModeMaster, baudrate); err != nil {
		return nil, err
	}
	if err := schedule.Arm(t, d, entries, gen.Payload); err != nil {
		return nil, err
	}
	if err := schedule.Activate(t, table); err != nil {
		return nil, err
	}
	return &Master{
		Transport: t,
		Entries:   entries,
		Table:     table,
		Loop: &Loop{
			Writer:      t,
			Description: d,
			Generator:   gen,
			Frames:      published.Sorted(),
			Interval:    interval,
			Logger:      logger,
		},
	}, nil
}
