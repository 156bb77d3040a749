package fuzz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/notnil/linbus/internal/metrics"
	"github.com/notnil/linbus/ldf"
)

// DefaultInterval is the pause between two payload updates.
const DefaultInterval = 100 * time.Millisecond

// FrameWriter replaces the payload of a programmed frame entry.
// linbus.Transport satisfies it.
type FrameWriter interface {
	SetFrameData(id uint8, data []byte) error
}

// Loop keeps re-randomizing the frames a master publishes. Every Interval it
// picks one of Frames, draws new values and pushes the payload to Writer.
type Loop struct {
	Writer      FrameWriter
	Description *ldf.Description
	Generator   *Generator
	Frames      []uint8
	Interval    time.Duration
	Logger      *slog.Logger
}

// Step performs one update and returns the frame id and payload pushed.
func (l *Loop) Step() (uint8, []byte, error) {
	id := l.Generator.Pick(l.Frames)
	f, err := l.Description.Frame(id)
	if err != nil {
		return id, nil, err
	}
	data, err := l.Generator.Payload(f)
	if err != nil {
		return id, nil, err
	}
	if err := l.Writer.SetFrameData(id, data); err != nil {
		return id, nil, fmt.Errorf("fuzz: update frame 0x%02X: %w", id, err)
	}
	metrics.FuzzUpdates.WithLabelValues(f.Name).Inc()
	return id, data, nil
}

// Run updates frames until ctx is done. It returns nil on cancellation and
// the first error of a Step otherwise. With no frames to update it only
// waits for ctx.
func (l *Loop) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(l.Frames) == 0 {
		log.Info("fuzz: master publishes no scheduled frame")
		<-ctx.Done()
		return nil
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		id, data, err := l.Step()
		if err != nil {
			return err
		}
		log.Debug("fuzz: frame updated", "id", id, "data", data)
	}
}
