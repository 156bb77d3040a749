package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/ldf"
)

func loadBody(t *testing.T) *ldf.Description {
	t.Helper()
	d, err := ldf.Load("../ldf/testdata/body.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func twoEntryDescription() *ldf.Description {
	m := &ldf.Node{Name: "M", Role: ldf.Master}
	s := &ldf.Node{Name: "S", Role: ldf.Slave}
	return &ldf.Description{
		Master: m,
		Slaves: []*ldf.Node{s},
		Frames: []*ldf.Frame{
			{ID: 0x01, Name: "Cmd", Length: 1, Publisher: m},
			{ID: 0x02, Name: "Status", Length: 1, Publisher: s},
		},
		ScheduleTables: []*ldf.ScheduleTable{{
			Name: "T",
			Entries: []ldf.ScheduleEntry{
				{FrameID: 0x01, Delay: 0.01},
				{FrameID: 0x02, Delay: 0.02},
			},
		}},
	}
}

func TestBuildTwoEntries(t *testing.T) {
	entries, published, err := Build(twoEntryDescription())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []Entry{
		{Table: 0, TableName: "T", FrameID: 0x01, DelayMS: 10, Direction: Published},
		{Table: 0, TableName: "T", FrameID: 0x02, DelayMS: 20, Direction: Subscribed},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries: got %d want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, entries[i], want[i])
		}
	}
	if len(published) != 1 || !published.Contains(0x01) {
		t.Fatalf("published: got %v want {1}", published.Sorted())
	}
}

func TestBuildCompleteness(t *testing.T) {
	d := loadBody(t)
	entries, published, err := Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Normal has three frame slots and one command, Diag one slot, Empty none.
	want := []struct {
		table int
		id    uint8
		ms    uint32
	}{
		{0, 0x10, 10}, {0, 0x20, 20}, {0, 0x21, 12},
		{1, 0x10, 5},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries: got %d want %d", len(entries), len(want))
	}
	for i, w := range want {
		e := entries[i]
		if e.Table != w.table || e.FrameID != w.id || e.DelayMS != w.ms {
			t.Fatalf("entry %d: got %+v want %+v", i, e, w)
		}
	}
	if got := published.Sorted(); len(got) != 1 || got[0] != 0x10 {
		t.Fatalf("published: got %v", got)
	}
	if len(ForTable(entries, 2)) != 0 {
		t.Fatalf("empty table produced entries")
	}
	if got := PublishedIn(ForTable(entries, 0)).Sorted(); len(got) != 1 || got[0] != 0x10 {
		t.Fatalf("published in Normal: got %v", got)
	}
}

func TestBuildUnknownFrame(t *testing.T) {
	d := twoEntryDescription()
	d.ScheduleTables[0].Entries = append(d.ScheduleTables[0].Entries, ldf.ScheduleEntry{FrameID: 0x30, Delay: 0.01})
	if _, _, err := Build(d); !errors.Is(err, ldf.ErrUnknownFrame) {
		t.Fatalf("got %v want ErrUnknownFrame", err)
	}
}

func TestDelayMS(t *testing.T) {
	cases := []struct {
		seconds float64
		want    uint32
	}{
		{0, 0},
		{-1, 0},
		{0.0125, 12},
		{0.01, 10},
		{0.029, 29},
		{0.0999, 99},
		{1.5, 1500},
	}
	for _, tc := range cases {
		if got := DelayMS(tc.seconds); got != tc.want {
			t.Fatalf("DelayMS(%v) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func TestFindTable(t *testing.T) {
	d := loadBody(t)
	if i, err := FindTable(d, "NORMAL"); err != nil || i != 0 {
		t.Fatalf("got %d, %v", i, err)
	}
	if _, err := FindTable(d, "missing"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("got %v want ErrUnknownTable", err)
	}
}

func TestDirection(t *testing.T) {
	if Published.Letter() != "M" || Subscribed.Letter() != "S" {
		t.Fatalf("letters: %s %s", Published.Letter(), Subscribed.Letter())
	}
	if Subscribed.String() != "subscribed" {
		t.Fatalf("string: %s", Subscribed)
	}
}

func TestChecksumFor(t *testing.T) {
	d := &ldf.Description{ProtocolVersion: "2.1"}
	if ChecksumFor(d, 0x10) != linbus.ChecksumEnhanced {
		t.Fatalf("LIN 2.x frames use the enhanced checksum")
	}
	if ChecksumFor(d, MasterRequestID) != linbus.ChecksumClassic {
		t.Fatalf("diagnostic frames use the classic checksum")
	}
	d.ProtocolVersion = "1.3"
	if ChecksumFor(d, 0x10) != linbus.ChecksumClassic {
		t.Fatalf("LIN 1.x frames use the classic checksum")
	}
}

func TestArmAndActivate(t *testing.T) {
	d := loadBody(t)
	entries, _, err := Build(d)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	bus := linbus.NewLoopback()
	defer bus.Close()
	dev := bus.Open()
	listener := bus.Open()
	if err := listener.Start(linbus.ModeSlave, d.Baudrate); err != nil {
		t.Fatalf("listener: %v", err)
	}

	if err := Arm(dev, d, entries, nil); !errors.Is(err, linbus.ErrNotStarted) {
		t.Fatalf("arming a stopped device: got %v", err)
	}
	if err := dev.Start(linbus.ModeMaster, d.Baudrate); err != nil {
		t.Fatalf("start: %v", err)
	}
	payload := func(f *ldf.Frame) ([]byte, error) { return []byte{0xAA, 0x55}, nil }
	if err := Arm(dev, d, entries, payload); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := Activate(dev, 2); !errors.Is(err, linbus.ErrInvalidSchedule) {
		t.Fatalf("empty table: got %v", err)
	}
	if err := Activate(dev, 0); err != nil {
		t.Fatalf("activate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := map[uint8]linbus.Message{}
	for len(got) < 3 {
		msg, err := listener.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got[msg.ID] = msg
	}
	if m := got[0x10]; m.Flags != 0 || m.Data[0] != 0xAA || m.Direction != linbus.DirPublisher {
		t.Fatalf("published slot: got %v", m)
	}
	// Nobody answers the slave frames.
	if m := got[0x20]; m.Flags != linbus.ErrSlaveNotResponding || m.Direction != linbus.DirSubscriberAutoLen {
		t.Fatalf("subscribed slot: got %v", m)
	}
}
