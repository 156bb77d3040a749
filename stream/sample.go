// Package stream forwards decoded LIN frames to live plotting and message
// bus consumers.
//
// A sample carries a timestamp and the raw signal values of one frame keyed
// by the frame publisher, the layout the PlotJuggler UDP server expects:
//
//	{"ts": 1700000000.25, "DoorLeft": {"DoorState": 1, "DoorTemp": 100}}
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/notnil/linbus/monitor"
)

var ErrUnknownFormat = errors.New("stream: unknown sample format")

// Format selects the sample encoding.
type Format uint8

const (
	FormatJSON Format = iota
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseFormat accepts "json" or "cbor", ignoring case. An empty string is JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Sample is the streamed form of one decoded frame.
type Sample struct {
	Time      time.Time
	Frame     string
	Publisher string
	Signals   map[string]uint64
}

// NewSample builds the sample of u stamped with now.
func NewSample(u monitor.Update, now time.Time) Sample {
	pub := ""
	if u.Frame.Publisher != nil {
		pub = u.Frame.Publisher.Name
	}
	return Sample{Time: now, Frame: u.Frame.Name, Publisher: pub, Signals: u.Raw()}
}

// Seconds is the Unix time of s with sub-second precision.
func (s Sample) Seconds() float64 {
	return float64(s.Time.Unix()) + float64(s.Time.Nanosecond())/1e9
}

func (s Sample) fields() map[string]any {
	return map[string]any{
		"ts":        s.Seconds(),
		s.Publisher: s.Signals,
	}
}

// Marshal encodes s in format f.
func (s Sample) Marshal(f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(s.fields())
	case FormatCBOR:
		return cbor.Marshal(s.fields())
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
}
