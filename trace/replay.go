package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"

	linbus "github.com/notnil/linbus"
)

// Options configure a replay transport.
type Options struct {
	// Follow keeps reading lines appended to the file, like tail -f.
	Follow bool
	// Realtime paces frames by the gaps between their timestamps.
	Realtime bool
	// Logger receives malformed line reports. Nil discards.
	Logger *slog.Logger
}

type replay struct {
	t   *tail.Tail
	log *slog.Logger

	realtime bool
	lastTS   uint64
	lastAt   time.Time

	mu     sync.Mutex
	filter linbus.IDFilter
	closed chan struct{}
	once   sync.Once
}

// Open replays the trace file at path as a read-only transport. Read returns
// io.EOF at the end of the file unless opts.Follow is set. Blank lines and
// lines starting with # are ignored; malformed lines are logged and skipped.
func Open(path string, opts Options) (linbus.Transport, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    opts.Follow,
		ReOpen:    opts.Follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &replay{
		t:        t,
		log:      log,
		realtime: opts.Realtime,
		filter:   linbus.AllIDs(),
		closed:   make(chan struct{}),
	}, nil
}

// Start accepts slave mode only; a replayed trace cannot transmit.
func (r *replay) Start(mode linbus.Mode, baudrate int) error {
	if mode == linbus.ModeMaster {
		return linbus.ErrReadOnly
	}
	return nil
}

func (r *replay) SetIDFilter(filter linbus.IDFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = filter
	return nil
}

func (r *replay) SetFrameEntry(linbus.FrameEntry) error { return linbus.ErrReadOnly }

func (r *replay) SetFrameData(uint8, []byte) error { return linbus.ErrReadOnly }

func (r *replay) AddScheduleSlot(int, linbus.Slot) error { return linbus.ErrReadOnly }

func (r *replay) StartSchedule(int) error { return linbus.ErrReadOnly }

func (r *replay) Read(ctx context.Context) (linbus.Message, error) {
	for {
		select {
		case <-r.closed:
			return linbus.Message{}, linbus.ErrClosed
		case <-ctx.Done():
			return linbus.Message{}, ctx.Err()
		case line, ok := <-r.t.Lines:
			if !ok {
				if err := r.t.Wait(); err != nil {
					return linbus.Message{}, err
				}
				return linbus.Message{}, io.EOF
			}
			if line.Err != nil {
				return linbus.Message{}, fmt.Errorf("trace: %w", line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			m, err := ParseLine(text)
			if err != nil {
				r.log.Warn("trace: skipping line", "line", text, "err", err)
				continue
			}
			r.mu.Lock()
			allowed := r.filter.Allows(m.ID)
			r.mu.Unlock()
			if !allowed {
				continue
			}
			if err := r.pace(ctx, m.TimestampUS); err != nil {
				return linbus.Message{}, err
			}
			return m, nil
		}
	}
}

func (r *replay) pace(ctx context.Context, ts uint64) error {
	if !r.realtime {
		return nil
	}
	now := time.Now()
	if !r.lastAt.IsZero() && ts > r.lastTS {
		due := r.lastAt.Add(time.Duration(ts-r.lastTS) * time.Microsecond)
		if wait := due.Sub(now); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-r.closed:
				return linbus.ErrClosed
			case <-ctx.Done():
				return ctx.Err()
			}
			now = due
		}
	}
	r.lastTS, r.lastAt = ts, now
	return nil
}

func (r *replay) Close() error {
	var err error
	r.once.Do(func() {
		close(r.closed)
		err = r.t.Stop()
		r.t.Cleanup()
	})
	return err
}
