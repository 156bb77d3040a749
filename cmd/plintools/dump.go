package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"

	linbus "github.com/notnil/linbus"
	"github.com/notnil/linbus/monitor"
	"github.com/notnil/linbus/trace"
)

func runDump(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	common := addCommonFlags(fs)
	record := fs.String("record", "", "also write the traffic to this trace file")
	fs.Parse(args)
	return listen(ctx, fs, common, *record, false)
}

func runMonitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	common := addCommonFlags(fs)
	record := fs.String("record", "", "also write the traffic to this trace file")
	all := fs.Bool("all", false, "print unchanged signals too")
	fs.Parse(args)
	return listen(ctx, fs, common, *record, !*all)
}

func listen(ctx context.Context, fs *flag.FlagSet, common *commonFlags, record string, changedOnly bool) error {
	e, err := setup(fs, common)
	if err != nil {
		return err
	}
	printer := monitor.NewPrinter(os.Stdout, e.desc)
	printer.ChangedOnly = changedOnly && e.cfg.Monitor.ChangedOnly
	return e.receive(ctx, record, printer)
}

// receive starts the device in slave mode and feeds every frame to h until
// ctx is done or the device runs dry.
func (e *env) receive(ctx context.Context, record string, h monitor.Handler) error {
	dev, err := e.openDevice(ctx, e.device, true)
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := dev.Start(linbus.ModeSlave, e.baud); err != nil {
		return err
	}
	if err := dev.SetIDFilter(linbus.AllIDs()); err != nil {
		return err
	}

	mux := linbus.NewMux(dev)
	defer mux.Close()

	var wg sync.WaitGroup
	if record != "" {
		f, err := os.Create(record)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		defer f.Close()
		rec, cancel := mux.Subscribe(nil, 256)
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := trace.Record(ctx, rec, f); err != nil {
				e.log.Errorf("record: %v", err)
			}
		}()
	}

	msgs, cancel := mux.Subscribe(nil, 256)
	defer cancel()
	err = monitor.New(e.desc, nil, e.slog).Run(ctx, msgs, h)
	mux.Close()
	wg.Wait()
	if err != nil {
		return err
	}
	if err := mux.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
