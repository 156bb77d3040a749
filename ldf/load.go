package ldf

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// The description is read from a YAML rendering of an LDF file:
//
//	protocol_version: "2.1"
//	speed: 19200
//	master: {name: BCM}
//	slaves: [DoorLeft]
//	encodings:
//	  - name: LampEncoding
//	    converters:
//	      - logical: {value: 0, label: "off"}
//	      - physical: {min: 1, max: 200, scale: 0.5, offset: 0, unit: "%"}
//	signals:
//	  - {name: Lamp, width: 8, init: 0, publisher: BCM, encoding: LampEncoding}
//	frames:
//	  - name: LampCtrl
//	    id: 0x10
//	    length: 2
//	    publisher: BCM
//	    signals: [{name: Lamp, offset: 0}]
//	schedule_tables:
//	  - name: Normal
//	    entries:
//	      - {frame: LampCtrl, delay: 0.01}
//	      - {command: MasterReq, delay: 0.01}

type fileDescription struct {
	ProtocolVersion string         `yaml:"protocol_version"`
	Speed           int            `yaml:"speed"`
	Master          fileNode       `yaml:"master"`
	Slaves          []string       `yaml:"slaves"`
	Encodings       []fileEncoding `yaml:"encodings"`
	Signals         []fileSignal   `yaml:"signals"`
	Frames          []fileFrame    `yaml:"frames"`
	ScheduleTables  []fileSchedule `yaml:"schedule_tables"`
}

type fileNode struct {
	Name string `yaml:"name"`
}

type fileEncoding struct {
	Name       string          `yaml:"name"`
	Converters []fileConverter `yaml:"converters"`
}

type fileConverter struct {
	Physical *struct {
		Min    uint64   `yaml:"min"`
		Max    uint64   `yaml:"max"`
		Scale  *float64 `yaml:"scale"`
		Offset float64  `yaml:"offset"`
		Unit   string   `yaml:"unit"`
	} `yaml:"physical"`
	Logical *struct {
		Value uint64 `yaml:"value"`
		Label string `yaml:"label"`
	} `yaml:"logical"`
}

type fileSignal struct {
	Name      string `yaml:"name"`
	Width     int    `yaml:"width"`
	Init      uint64 `yaml:"init"`
	Publisher string `yaml:"publisher"`
	Encoding  string `yaml:"encoding"`
}

type fileFrame struct {
	Name      string `yaml:"name"`
	ID        int    `yaml:"id"`
	Length    int    `yaml:"length"`
	Publisher string `yaml:"publisher"`
	Signals   []struct {
		Name   string `yaml:"name"`
		Offset int    `yaml:"offset"`
	} `yaml:"signals"`
}

type fileSchedule struct {
	Name    string `yaml:"name"`
	Entries []struct {
		Frame   string  `yaml:"frame"`
		Command string  `yaml:"command"`
		Delay   float64 `yaml:"delay"`
	} `yaml:"entries"`
}

// Load reads a description file. A leading ~ is expanded to the home directory.
func Load(path string) (*Description, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ldf: read %s: %w", path, err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse builds a Description from its YAML rendering and checks its
// references and LIN limits.
func Parse(raw []byte) (*Description, error) {
	var fd fileDescription
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if fd.Master.Name == "" {
		return nil, fmt.Errorf("%w: no master node", ErrInvalid)
	}

	d := &Description{
		ProtocolVersion: fd.ProtocolVersion,
		Baudrate:        fd.Speed,
		Master:          &Node{Name: fd.Master.Name, Role: Master},
	}
	for _, name := range fd.Slaves {
		if _, err := d.Node(name); err == nil {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrInvalid, name)
		}
		d.Slaves = append(d.Slaves, &Node{Name: name, Role: Slave})
	}

	encodings := make(map[string]*Encoding, len(fd.Encodings))
	for _, fe := range fd.Encodings {
		e := &Encoding{Name: fe.Name}
		for i, fc := range fe.Converters {
			switch {
			case fc.Physical != nil && fc.Logical == nil:
				scale := 1.0
				if fc.Physical.Scale != nil {
					scale = *fc.Physical.Scale
				}
				if fc.Physical.Min > fc.Physical.Max {
					return nil, fmt.Errorf("%w: encoding %q converter %d: min > max", ErrInvalid, fe.Name, i)
				}
				e.Converters = append(e.Converters, Converter{
					Kind:   PhysicalRange,
					Min:    fc.Physical.Min,
					Max:    fc.Physical.Max,
					Scale:  scale,
					Offset: fc.Physical.Offset,
					Unit:   fc.Physical.Unit,
				})
			case fc.Logical != nil && fc.Physical == nil:
				e.Converters = append(e.Converters, Converter{
					Kind:  LogicalValue,
					Value: fc.Logical.Value,
					Label: fc.Logical.Label,
				})
			default:
				return nil, fmt.Errorf("%w: encoding %q converter %d must be physical or logical", ErrInvalid, fe.Name, i)
			}
		}
		encodings[e.Name] = e
		d.Encodings = append(d.Encodings, e)
	}

	signals := make(map[string]*Signal, len(fd.Signals))
	for _, fs := range fd.Signals {
		if fs.Width < 1 || fs.Width > MaxSignalWidth {
			return nil, fmt.Errorf("%w: signal %q width %d", ErrInvalid, fs.Name, fs.Width)
		}
		pub, err := d.Node(fs.Publisher)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", fs.Name, err)
		}
		s := &Signal{Name: fs.Name, Width: fs.Width, InitValue: fs.Init, Publisher: pub}
		if fs.Encoding != "" {
			e, ok := encodings[fs.Encoding]
			if !ok {
				return nil, fmt.Errorf("signal %q: %w: %q", fs.Name, ErrUnknownEncoding, fs.Encoding)
			}
			s.Encoding = e
		}
		signals[s.Name] = s
		d.Signals = append(d.Signals, s)
	}

	seen := make(map[int]string, len(fd.Frames))
	for _, ff := range fd.Frames {
		if ff.ID < 0 || ff.ID > MaxFrameID {
			return nil, fmt.Errorf("%w: frame %q id 0x%X", ErrInvalid, ff.Name, ff.ID)
		}
		if other, dup := seen[ff.ID]; dup {
			return nil, fmt.Errorf("%w: frames %q and %q share id 0x%02X", ErrInvalid, other, ff.Name, ff.ID)
		}
		seen[ff.ID] = ff.Name
		if ff.Length < 1 || ff.Length > MaxFrameLength {
			return nil, fmt.Errorf("%w: frame %q length %d", ErrInvalid, ff.Name, ff.Length)
		}
		pub, err := d.Node(ff.Publisher)
		if err != nil {
			return nil, fmt.Errorf("frame %q: %w", ff.Name, err)
		}
		f := &Frame{ID: uint8(ff.ID), Name: ff.Name, Length: ff.Length, Publisher: pub}
		for _, fp := range ff.Signals {
			s, ok := signals[fp.Name]
			if !ok {
				return nil, fmt.Errorf("frame %q: %w: %q", ff.Name, ErrUnknownSignal, fp.Name)
			}
			if fp.Offset < 0 || fp.Offset+s.Width > 8*f.Length {
				return nil, fmt.Errorf("%w: frame %q signal %q exceeds %d bytes", ErrInvalid, ff.Name, s.Name, f.Length)
			}
			f.Signals = append(f.Signals, Placement{Offset: fp.Offset, Signal: s})
		}
		d.Frames = append(d.Frames, f)
	}

	for _, fsch := range fd.ScheduleTables {
		t := &ScheduleTable{Name: fsch.Name}
		for _, fe := range fsch.Entries {
			if fe.Delay < 0 {
				return nil, fmt.Errorf("%w: table %q negative delay", ErrInvalid, fsch.Name)
			}
			if fe.Command != "" {
				t.Entries = append(t.Entries, ScheduleEntry{Command: fe.Command, Delay: fe.Delay})
				continue
			}
			f, err := d.FrameByName(fe.Frame)
			if err != nil {
				return nil, fmt.Errorf("table %q: %w", fsch.Name, err)
			}
			t.Entries = append(t.Entries, ScheduleEntry{FrameID: f.ID, Delay: fe.Delay})
		}
		d.ScheduleTables = append(d.ScheduleTables, t)
	}
	return d, nil
}
