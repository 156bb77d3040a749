// Command plintools drives and inspects a LIN bus described by a network
// description.
//
//	plintools gen [-s table] [--select] description.yaml loopback
//	plintools dump description.yaml trace:bench.trace
//	plintools monitor --record out.trace description.yaml loopback
//	plintools plotjuggler --dst 127.0.0.1 --port 9870 description.yaml loopback
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/notnil/linbus/internal/config"
	"github.com/notnil/linbus/internal/metrics"
	"github.com/notnil/linbus/ldf"
)

var Version = "dev"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"gen", "run a fuzzing master on the selected schedule table", runGen},
	{"dump", "print every received frame with all its signals", runDump},
	{"monitor", "print signals whenever their value changes", runMonitor},
	{"plotjuggler", "stream decoded frames to PlotJuggler", runPlotJuggler},
}

func usage() {
	fmt.Fprintf(os.Stderr, "plintools %s\n\nusage: plintools <command> [flags] <description.yaml> <device>\n\n", Version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\ndevices: loopback, trace:<file>, trace+follow:<file>\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(ctx, os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "plintools %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}
	usage()
	os.Exit(2)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	config  string
	debug   bool
	metrics string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.config, "config", config.DefaultPath, "configuration file")
	fs.BoolVar(&c.debug, "debug", false, "log device operations")
	fs.StringVar(&c.metrics, "metrics", "", "serve prometheus metrics on this address")
	return c
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	log    *logrus.Logger
	slog   *slog.Logger
	desc   *ldf.Description
	device string
	baud   int
}

func setup(fs *flag.FlagSet, common *commonFlags) (*env, error) {
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("expected <description.yaml> <device>, got %d arguments", fs.NArg())
	}
	cfg, err := config.Load(common.config)
	if err != nil {
		return nil, err
	}
	if common.debug {
		cfg.Log.Level = "debug"
	}
	if common.metrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = common.metrics
	}

	log := setupLogger(cfg.Log)
	desc, err := ldf.Load(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	baud := desc.Baudrate
	if cfg.Baudrate != 0 {
		baud = cfg.Baudrate
	}
	log.Debugf("loaded %s: %d frames, %d schedule tables, %d baud", fs.Arg(0), len(desc.Frames), len(desc.ScheduleTables), baud)

	if cfg.Metrics.Enabled {
		if err := metrics.Serve(cfg.Metrics.Addr, log); err != nil {
			return nil, err
		}
	}
	return &env{
		cfg:    cfg,
		log:    log,
		slog:   bridgeLogger(log),
		desc:   desc,
		device: fs.Arg(1),
		baud:   baud,
	}, nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch {
	case cfg.Output == "file" && cfg.FilePath != "":
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file: %v, using stderr", err)
		}
	case cfg.Output == "stdout":
		log.SetOutput(os.Stdout)
	default:
		log.SetOutput(os.Stderr)
	}
	return log
}

// bridgeLogger routes the slog output of the library packages into log.
func bridgeLogger(log *logrus.Logger) *slog.Logger {
	level, writerLevel := slog.LevelInfo, logrus.InfoLevel
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level, writerLevel = slog.LevelDebug, logrus.DebugLevel
	}
	return slog.New(slog.NewTextHandler(log.WriterLevel(writerLevel), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// logrus stamps the line itself.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
