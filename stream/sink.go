package stream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notnil/linbus/monitor"
)

// DefaultPort is the PlotJuggler UDP server port.
const DefaultPort = 9870

// UDPSink sends one datagram per decoded frame.
type UDPSink struct {
	conn   net.Conn
	format Format
	now    func() time.Time
}

// DialUDP connects a sink to addr ("host:port").
func DialUDP(addr string, format Format) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream: dial %s: %w", addr, err)
	}
	return &UDPSink{conn: conn, format: format, now: time.Now}, nil
}

// HandleUpdate sends the sample of u. Frames received with errors are skipped.
func (s *UDPSink) HandleUpdate(u monitor.Update) error {
	if u.Err != nil {
		return nil
	}
	b, err := NewSample(u, s.now()).Marshal(s.format)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("stream: send: %w", err)
	}
	return nil
}

func (s *UDPSink) Close() error { return s.conn.Close() }

// RedisOptions configure a RedisSink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// History keeps the last History samples of every frame in a list
	// "<Channel>:<frame>"; zero disables it.
	History int64
}

// RedisSink publishes samples on a Redis Pub/Sub channel.
type RedisSink struct {
	client *redis.Client
	opts   RedisOptions
	format Format
	now    func() time.Time
}

// NewRedisSink connects to Redis and checks the connection.
func NewRedisSink(ctx context.Context, opts RedisOptions, format Format) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("stream: connect redis %s: %w", opts.Addr, err)
	}
	return &RedisSink{client: client, opts: opts, format: format, now: time.Now}, nil
}

// HandleUpdate publishes the sample of u. Frames received with errors are
// skipped.
func (s *RedisSink) HandleUpdate(u monitor.Update) error {
	if u.Err != nil {
		return nil
	}
	b, err := NewSample(u, s.now()).Marshal(s.format)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if s.opts.History <= 0 {
		if err := s.client.Publish(ctx, s.opts.Channel, b).Err(); err != nil {
			return fmt.Errorf("stream: publish: %w", err)
		}
		return nil
	}
	key := s.opts.Channel + ":" + u.Frame.Name
	pipe := s.client.Pipeline()
	pipe.Publish(ctx, s.opts.Channel, b)
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, s.opts.History-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stream: publish: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }
