// Package trace records LIN traffic as text and replays recorded traces as a
// read-only transport.
//
// One frame per line, candump style:
//
//	(12.000345) 1A#DEAD0001
//	(12.010377) 21#05 !0008
//
// The timestamp is the device timestamp in seconds with microsecond
// precision, the identifier and payload are hexadecimal, and a trailing
// !XXXX field holds the reception error flags of a frame received with errors.
package trace

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	linbus "github.com/notnil/linbus"
)

var ErrMalformed = errors.New("trace: malformed line")

// FormatLine renders m as one trace line without the newline.
func FormatLine(m linbus.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%d.%06d) %02X#%X", m.TimestampUS/1e6, m.TimestampUS%1e6, m.ID, m.Payload())
	if m.Flags != 0 {
		fmt.Fprintf(&b, " !%04X", uint16(m.Flags))
	}
	return b.String()
}

// ParseLine parses a line produced by FormatLine. A device name between the
// timestamp and the frame is tolerated.
func ParseLine(line string) (linbus.Message, error) {
	var m linbus.Message
	line = strings.TrimSpace(line)

	if !strings.HasPrefix(line, "(") {
		return m, fmt.Errorf("%w: no timestamp", ErrMalformed)
	}
	end := strings.Index(line, ")")
	if end == -1 {
		return m, fmt.Errorf("%w: unterminated timestamp", ErrMalformed)
	}
	ts, err := parseTimestamp(line[1:end])
	if err != nil {
		return m, err
	}
	m.TimestampUS = ts

	var frame, flags string
	for _, f := range strings.Fields(line[end+1:]) {
		switch {
		case strings.Contains(f, "#"):
			frame = f
		case strings.HasPrefix(f, "!"):
			flags = f[1:]
		}
	}
	if frame == "" {
		return m, fmt.Errorf("%w: no # separator found", ErrMalformed)
	}

	idPart, dataPart, _ := strings.Cut(frame, "#")
	id, err := strconv.ParseUint(idPart, 16, 8)
	if err != nil || id > linbus.MaxID {
		return m, fmt.Errorf("%w: identifier %q", ErrMalformed, idPart)
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return m, fmt.Errorf("%w: payload %q: %v", ErrMalformed, dataPart, err)
	}
	if len(data) > linbus.MaxLen {
		return m, fmt.Errorf("%w: payload of %d bytes", ErrMalformed, len(data))
	}
	m.ID = uint8(id)
	m.Len = uint8(len(data))
	copy(m.Data[:], data)

	if flags != "" {
		v, err := strconv.ParseUint(flags, 16, 16)
		if err != nil {
			return m, fmt.Errorf("%w: flags %q", ErrMalformed, flags)
		}
		m.Flags = linbus.ErrorFlag(v)
	}
	return m, nil
}

func parseTimestamp(s string) (uint64, error) {
	secPart, fracPart, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseUint(secPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
	}
	if len(fracPart) > 6 {
		fracPart = fracPart[:6]
	}
	var usec uint64
	if fracPart != "" {
		usec, err = strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
		}
		for i := len(fracPart); i < 6; i++ {
			usec *= 10
		}
	}
	return sec*1e6 + usec, nil
}
