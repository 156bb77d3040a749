package monitor

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/notnil/linbus/ldf"
)

var (
	payloadColor = color.New(color.FgBlue)
	nameColor    = color.New(color.FgYellow)
	signalColor  = color.New(color.FgCyan)
	valueColor   = color.New(color.FgMagenta)
	rawColor     = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

// Printer renders updates as text: a header line per frame followed by one
// row per signal. With ChangedOnly set, rows whose value did not change are
// omitted and frames without changes are not printed at all.
type Printer struct {
	Out         io.Writer
	ChangedOnly bool

	mu       sync.Mutex
	started  bool
	offsetUS uint64
	pubW     int
	sigW     int
	valW     int
}

// NewPrinter sizes the columns for desc.
func NewPrinter(out io.Writer, desc *ldf.Description) *Printer {
	p := &Printer{Out: out, valW: 10}
	if desc.Master != nil {
		p.pubW = len(desc.Master.Name)
	}
	for _, n := range desc.Slaves {
		p.pubW = max(p.pubW, len(n.Name))
	}
	for _, f := range desc.Frames {
		for _, pl := range f.Signals {
			p.sigW = max(p.sigW, len(pl.Signal.Name))
		}
	}
	for _, e := range desc.Encodings {
		for _, c := range e.Converters {
			if c.Kind == ldf.LogicalValue {
				p.valW = max(p.valW, len(c.Label))
			}
		}
	}
	return p
}

// HandleUpdate prints u.
func (p *Printer) HandleUpdate(u Update) error {
	if p.ChangedOnly && u.Err == nil && !u.Changed() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		p.offsetUS = u.Message.TimestampUS
	}
	var rel uint64
	if u.Message.TimestampUS > p.offsetUS {
		rel = (u.Message.TimestampUS - p.offsetUS) / 1000
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%8d 0x%02x %s %-*s %s\n",
		rel,
		u.Frame.ID,
		payloadColor.Sprint(hexBytes(u.Message.Payload())),
		p.pubW, publisherName(u.Frame),
		nameColor.Sprint(u.Frame.Name),
	)
	if u.Err != nil {
		b.WriteString(errorColor.Sprint(u.Err.Error()))
		b.WriteByte('\n')
	} else {
		for _, s := range u.Signals {
			if p.ChangedOnly && !s.Changed {
				continue
			}
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				signalColor.Sprintf("%-*s", p.sigW, s.Name),
				valueColor.Sprintf("%*s", p.valW, s.Value.String()),
				rawColor.Sprintf("%10d", s.Value.Raw),
				rawColor.Sprintf("%10s", fmt.Sprintf("0x%x", s.Value.Raw)),
			)
		}
	}
	_, err := io.WriteString(p.Out, b.String())
	return err
}

// PrintError renders a loop-level error the way frame errors are shown.
func (p *Printer) PrintError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.Out, errorColor.Sprintf("Error: %v", err))
}

func publisherName(f *ldf.Frame) string {
	if f.Publisher == nil {
		return "?"
	}
	return f.Publisher.Name
}

func hexBytes(b []byte) string {
	var s strings.Builder
	for i, c := range b {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", c)
	}
	return s.String()
}
