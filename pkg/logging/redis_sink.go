package logging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/diode"
)

const (
	// DefaultStream is the Redis stream log lines are appended to.
	DefaultStream = "rabit:logs"

	// DefaultMaxLen caps the stream length (approximate trimming).
	DefaultMaxLen = 100000

	// DefaultBufferSize is the number of lines an async sink holds while
	// Redis is slow or down.
	DefaultBufferSize = 1000

	sinkWriteTimeout  = 2 * time.Second
	asyncPollInterval = 10 * time.Millisecond
)

var droppedLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rabit_log_lines_dropped_total",
	Help: "Log lines dropped because the async sink buffer was full",
})

// NewAsyncWriter puts w behind a ring buffer of size lines drained by a
// background goroutine, so log calls never wait on w. When the buffer is
// full the oldest lines are overwritten and counted as dropped. Close
// the returned writer to drain it and close w.
func NewAsyncWriter(w io.Writer, size int) diode.Writer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return diode.NewWriter(w, size, asyncPollInterval, func(missed int) {
		droppedLinesTotal.Add(float64(missed))
	})
}

// RedisSink is an append-only log sink that writes every log line to a
// Redis stream with XADD. It is safe for concurrent use. Write blocks for
// up to sinkWriteTimeout; use Async on logging paths.
type RedisSink struct {
	redis  *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink parses redisURL, verifies connectivity and returns a sink
// appending to stream. An empty stream selects DefaultStream.
func NewRedisSink(ctx context.Context, redisURL, stream string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisSinkFromClient(client, stream), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *redis.Client, stream string) *RedisSink {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{
		redis:  client,
		stream: stream,
		maxLen: DefaultMaxLen,
	}
}

// Write implements io.Writer. zerolog reuses p after Write returns, so the
// line is copied before it is handed to the client.
func (s *RedisSink) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{"line": string(p)},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("redis xadd: %w", err)
	}
	return len(p), nil
}

// Async returns the sink behind NewAsyncWriter. Closing the returned
// writer also closes the sink.
func (s *RedisSink) Async(size int) diode.Writer {
	return NewAsyncWriter(s, size)
}

// Stream returns the stream name.
func (s *RedisSink) Stream() string {
	return s.stream
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	return s.redis.Close()
}
