package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/ldf"
	"github.com/notnil/linbus/monitor"
)

func doorUpdate(t *testing.T) monitor.Update {
	t.Helper()
	d, err := ldf.Load("../ldf/testdata/body.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u, ok := monitor.New(d, nil, nil).Process(linbus.MustMessage(0x20, []byte{0x01, 100}))
	if !ok {
		t.Fatalf("frame skipped")
	}
	return u
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"CBOR", FormatCBOR, false},
		{"xml", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.err {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Fatalf("%q: expected ErrUnknownFormat, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v,%v want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestSampleJSON(t *testing.T) {
	s := NewSample(doorUpdate(t), time.Unix(1700000000, 250_000_000))
	b, err := s.Marshal(FormatJSON)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		TS   float64           `json:"ts"`
		Door map[string]uint64 `json:"DoorLeft"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	if got.TS != 1700000000.25 {
		t.Fatalf("ts: got %v", got.TS)
	}
	if got.Door["DoorState"] != 1 || got.Door["DoorTemp"] != 100 {
		t.Fatalf("signals: got %v", got.Door)
	}
}

func TestSampleCBOR(t *testing.T) {
	s := NewSample(doorUpdate(t), time.Unix(10, 0))
	b, err := s.Marshal(FormatCBOR)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := cbor.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["ts"] != float64(10) {
		t.Fatalf("ts: got %#v", got["ts"])
	}
	if _, ok := got["DoorLeft"]; !ok {
		t.Fatalf("publisher key missing: %v", got)
	}
}

func TestUDPSink(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	sink, err := DialUDP(pc.LocalAddr().String(), FormatJSON)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sink.Close()

	u := doorUpdate(t)
	bad := u
	bad.Err = &linbus.ReceptionError{ID: 0x20, Flags: linbus.ErrTimeout}
	if err := sink.HandleUpdate(bad); err != nil {
		t.Fatalf("errored update: %v", err)
	}
	if err := sink.HandleUpdate(u); err != nil {
		t.Fatalf("send: %v", err)
	}

	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(buf[:n], &got); err != nil {
		t.Fatalf("datagram %s: %v", buf[:n], err)
	}
	if _, ok := got["DoorLeft"]; !ok {
		t.Fatalf("first datagram should be the valid sample: %s", buf[:n])
	}
}

func TestRedisSinkUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisSink(ctx, RedisOptions{Addr: "127.0.0.1:1", Channel: "lin"}, FormatJSON); err == nil {
		t.Fatalf("expected connection error")
	}
}
