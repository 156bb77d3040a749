package main

import (
	"context"
	"flag"
	"net"
	"strconv"

	"github.com/notnil/linbus/monitor"
	"github.com/notnil/linbus/stream"
)

func runPlotJuggler(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plotjuggler", flag.ExitOnError)
	common := addCommonFlags(fs)
	dst := fs.String("dst", "", "UDP destination host for samples")
	port := fs.Int("port", 0, "UDP destination port for samples")
	format := fs.String("format", "", "sample encoding: json or cbor")
	redisAddr := fs.String("redis", "", "also publish samples to this Redis server")
	fs.Parse(args)

	e, err := setup(fs, common)
	if err != nil {
		return err
	}
	host, portStr, err := net.SplitHostPort(e.cfg.PlotJuggler.Addr)
	if err != nil {
		host, portStr = "127.0.0.1", strconv.Itoa(stream.DefaultPort)
	}
	if *dst != "" {
		host = *dst
	}
	if *port != 0 {
		portStr = strconv.Itoa(*port)
	}
	if *format != "" {
		e.cfg.PlotJuggler.Format = *format
	}
	if *redisAddr != "" {
		e.cfg.Redis.Addr = *redisAddr
	}
	f, err := stream.ParseFormat(e.cfg.PlotJuggler.Format)
	if err != nil {
		return err
	}

	udp, err := stream.DialUDP(net.JoinHostPort(host, portStr), f)
	if err != nil {
		return err
	}
	defer udp.Close()
	handlers := monitor.Handlers{udp}
	e.log.Infof("streaming %s samples to %s:%s", f, host, portStr)

	if e.cfg.Redis.Addr != "" {
		rs, err := stream.NewRedisSink(ctx, stream.RedisOptions{
			Addr:     e.cfg.Redis.Addr,
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
			Channel:  e.cfg.Redis.Channel,
			History:  e.cfg.Redis.History,
		}, f)
		if err != nil {
			return err
		}
		defer rs.Close()
		handlers = append(handlers, rs)
		e.log.Infof("publishing samples on redis %s channel %q", e.cfg.Redis.Addr, e.cfg.Redis.Channel)
	}

	// A lost sample must not stop the stream.
	h := monitor.HandlerFunc(func(u monitor.Update) error {
		if err := handlers.HandleUpdate(u); err != nil {
			e.log.Warnf("sample %s: %v", u.Frame.Name, err)
		}
		return nil
	})
	return e.receive(ctx, "", h)
}
