package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"

	"github.com/notnil/linbus/fuzz"
	"github.com/notnil/linbus/ldf"
	"github.com/notnil/linbus/schedule"
)

func runGen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	common := addCommonFlags(fs)
	var table string
	fs.StringVar(&table, "s", "", "schedule table to activate (default: first)")
	fs.StringVar(&table, "schedule-table", "", "schedule table to activate (default: first)")
	sel := fs.Bool("select", false, "choose the schedule table interactively")
	interval := fs.Duration("interval", 0, "pause between payload updates")
	seed := fs.Uint64("seed", 0, "seed for a reproducible value sequence")
	fs.Parse(args)

	e, err := setup(fs, common)
	if err != nil {
		return err
	}
	if table != "" {
		e.cfg.Gen.ScheduleTable = table
	}
	if *interval > 0 {
		e.cfg.Gen.Interval = *interval
	}
	if *seed != 0 {
		e.cfg.Gen.Seed = *seed
	}
	if *sel {
		name, err := selectTable(e.desc)
		if err != nil {
			return err
		}
		e.cfg.Gen.ScheduleTable = name
	}
	idx, err := e.table()
	if err != nil {
		return err
	}

	dev, err := e.openDevice(ctx, e.device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	m, err := fuzz.StartMaster(dev, e.desc, e.baud, idx, e.generator(), e.cfg.Gen.Interval, e.slog)
	if err != nil {
		return err
	}
	printTables(e.desc, m.Entries)
	e.log.Infof("schedule table %q running, fuzzing %d frames every %s",
		e.desc.ScheduleTables[idx].Name, len(m.Loop.Frames), e.cfg.Gen.Interval)

	// The master reads back its own traffic; drain it so reception errors
	// show up in the log.
	go func() {
		for {
			msg, err := dev.Read(ctx)
			if err != nil {
				return
			}
			if err := msg.Err(); err != nil {
				e.log.Warn(err)
			}
		}
	}()
	return m.Loop.Run(ctx)
}

func printTables(d *ldf.Description, entries []schedule.Entry) {
	for i, t := range d.ScheduleTables {
		fmt.Fprintln(os.Stdout, t.Name)
		for _, en := range schedule.ForTable(entries, i) {
			f, err := d.Frame(en.FrameID)
			if err != nil {
				continue
			}
			fmt.Fprintf(os.Stdout, "  %02X %s %s\n", en.FrameID, en.Direction.Letter(), f.Name)
		}
	}
}

func selectTable(d *ldf.Description) (string, error) {
	if len(d.ScheduleTables) == 0 {
		return "", fmt.Errorf("description has no schedule table")
	}
	names := make([]string, len(d.ScheduleTables))
	for i, t := range d.ScheduleTables {
		names[i] = t.Name
	}
	prompt := promptui.Select{
		Label: "Select schedule table",
		Items: names,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %s", err)
	}
	return names[i], nil
}
