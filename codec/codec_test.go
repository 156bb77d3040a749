package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/notnil/linbus/ldf"
)

var (
	master = &ldf.Node{Name: "M", Role: ldf.Master}
	slave  = &ldf.Node{Name: "S", Role: ldf.Slave}
)

func nibbleFrame() *ldf.Frame {
	enc := &ldf.Encoding{Name: "E", Converters: []ldf.Converter{
		{Kind: ldf.PhysicalRange, Min: 0, Max: 10, Scale: 1},
	}}
	sig := &ldf.Signal{Name: "Nibble", Width: 4, Publisher: master, Encoding: enc}
	return &ldf.Frame{ID: 1, Name: "F", Length: 1, Publisher: master, Signals: []ldf.Placement{{Offset: 0, Signal: sig}}}
}

func loadBody(t *testing.T) *ldf.Description {
	t.Helper()
	d, err := ldf.Load("../ldf/testdata/body.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func TestNibbleScenario(t *testing.T) {
	f := nibbleFrame()
	b, err := Encode(f, Values{"Nibble": Raw(7)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{0x07}) {
		t.Fatalf("encode: got % X want 07", b)
	}

	// Decoding does not range check: 15 is outside [0, 10] but still decodes.
	raw, err := DecodeRaw(f, []byte{0x0F})
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if raw["Nibble"] != 15 {
		t.Fatalf("raw: got %d want 15", raw["Nibble"])
	}
	vs, err := Decode(f, []byte{0x0F})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := vs["Nibble"]; v.Raw != 15 || v.Kind != KindPhysical || v.Physical != 15 {
		t.Fatalf("decode: got %+v", v)
	}
}

func TestEncodePacking(t *testing.T) {
	d := loadBody(t)
	f, _ := d.Frame(0x10)
	b, err := Encode(f, Values{
		"Lamp":    Raw(0xAB),
		"Mode":    Raw(0x5),
		"Counter": Raw(0xC),
		"Other":   Raw(1), // ignored
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{0xAB, 0xC5}) {
		t.Fatalf("got % X want AB C5", b)
	}

	// Absent signals are zero.
	b, err = Encode(f, Values{"Counter": Raw(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{0x00, 0x10}) {
		t.Fatalf("got % X want 00 10", b)
	}
}

func TestEncodeCrossesByteBoundary(t *testing.T) {
	sig := &ldf.Signal{Name: "W", Width: 12, Publisher: master}
	f := &ldf.Frame{ID: 2, Name: "F", Length: 3, Signals: []ldf.Placement{{Offset: 6, Signal: sig}}}
	b, err := Encode(f, Values{"W": Raw(0xABC)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// 0xABC << 6 = 0x2AF00 -> 00 AF 02
	if !bytes.Equal(b, []byte{0x00, 0xAF, 0x02}) {
		t.Fatalf("got % X", b)
	}
	raw, err := DecodeRaw(f, b)
	if err != nil || raw["W"] != 0xABC {
		t.Fatalf("decode: got %X, %v", raw["W"], err)
	}
}

func TestPhysicalAndLogicalValues(t *testing.T) {
	d := loadBody(t)
	lamp, _ := d.Frame(0x10)
	door, _ := d.Frame(0x20)

	cases := []struct {
		name    string
		frame   *ldf.Frame
		signal  string
		value   Value
		wantRaw uint64
		display string
	}{
		{"logical label", lamp, "Lamp", Logical("off"), 0, "off"},
		{"physical percent", lamp, "Lamp", Physical(50), 100, "50 %"},
		{"physical offset", door, "DoorTemp", Physical(0), 80, "0 C"},
		{"enumeration", door, "DoorState", Logical("ajar"), 2, "ajar"},
		{"raw on encoded signal", door, "DoorTemp", Raw(1), 1, "-39.5 C"},
	}
	for _, tc := range cases {
		b, err := Encode(tc.frame, Values{tc.signal: tc.value})
		if err != nil {
			t.Fatalf("%s: encode: %v", tc.name, err)
		}
		raw, _ := DecodeRaw(tc.frame, b)
		if raw[tc.signal] != tc.wantRaw {
			t.Fatalf("%s: raw %d want %d", tc.name, raw[tc.signal], tc.wantRaw)
		}
		vs, _ := Decode(tc.frame, b)
		if got := vs[tc.signal].String(); got != tc.display {
			t.Fatalf("%s: display %q want %q", tc.name, got, tc.display)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	d := loadBody(t)
	lamp, _ := d.Frame(0x10)
	if _, err := Encode(lamp, Values{"Mode": Raw(16)}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("raw too wide: got %v", err)
	}
	if _, err := Encode(lamp, Values{"Lamp": Logical("dim")}); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("unknown label: got %v", err)
	}
	if _, err := Encode(lamp, Values{"Mode": Physical(-1)}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("negative physical: got %v", err)
	}
	if _, err := Encode(lamp, Values{"Lamp": Physical(1000)}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("physical beyond width: got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	d := loadBody(t)
	lamp, _ := d.Frame(0x10)
	if _, err := Decode(lamp, []byte{0x01}); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("truncated: got %v", err)
	}
	if _, err := DecodeRaw(lamp, nil); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("truncated raw: got %v", err)
	}

	sig := &ldf.Signal{Name: "X", Width: 8, Publisher: slave}
	bad := &ldf.Frame{ID: 3, Name: "Bad", Length: 1, Signals: []ldf.Placement{{Offset: 4, Signal: sig}}}
	if _, err := DecodeRaw(bad, []byte{0xFF}); !errors.Is(err, ErrSignalOutOfBounds) {
		t.Fatalf("out of bounds: got %v", err)
	}
	if _, err := Encode(bad, Values{"X": Raw(1)}); !errors.Is(err, ErrSignalOutOfBounds) {
		t.Fatalf("encode out of bounds: got %v", err)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	f := nibbleFrame()
	raw, err := DecodeRaw(f, []byte{0x03, 0xFF})
	if err != nil || raw["Nibble"] != 3 {
		t.Fatalf("got %d, %v", raw["Nibble"], err)
	}
}

func TestEncodeInit(t *testing.T) {
	d := loadBody(t)
	lamp, _ := d.Frame(0x10)
	b, err := EncodeInit(lamp)
	if err != nil {
		t.Fatalf("encode init: %v", err)
	}
	// Mode init 3 at offset 8.
	if !bytes.Equal(b, []byte{0x00, 0x03}) {
		t.Fatalf("got % X want 00 03", b)
	}
}

func TestInterpretFallback(t *testing.T) {
	d := loadBody(t)
	lamp, _ := d.Frame(0x10)
	s := lamp.Signals[0].Signal
	// 250 is outside both converters: scaled by the physical one anyway.
	if v := Interpret(s, 250); v.Kind != KindPhysical || v.Physical != 125 {
		t.Fatalf("got %+v", v)
	}
	mode := lamp.Signals[1].Signal
	if v := Interpret(mode, 9); v.Kind != KindRaw || v.String() != "9" {
		t.Fatalf("got %+v", v)
	}
}

func TestInsertExtract64(t *testing.T) {
	buf := make([]byte, 8)
	want := uint64(0xDEADBEEFCAFEF00D)
	if err := Insert(buf, 0, 64, want); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := Extract(buf, 0, 64)
	if err != nil || got != want {
		t.Fatalf("got %X, %v", got, err)
	}
	if _, err := Extract(buf, 1, 64); !errors.Is(err, ErrSignalOutOfBounds) {
		t.Fatalf("got %v", err)
	}
}
