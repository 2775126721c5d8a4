// Package sink mirrors published snapshots into Redis.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/doridoridoriand/wifiwatch/internal/bus"
	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/log"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

// HistoryLength is how many tick summaries are kept under <key>:history.
const HistoryLength = 1000

// Client is the subset of *redis.Client the sink uses.
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// TickSummary is the compact record appended to the history list.
type TickSummary struct {
	Seq       uint64             `json:"seq"`
	RunID     string             `json:"run_id"`
	Time      time.Time          `json:"time"`
	Unit      string             `json:"unit"`
	Connected string             `json:"connected,omitempty"`
	Levels    map[string]float64 `json:"levels"`
}

// RedisSink writes the latest snapshot to a key, appends a summary to a
// bounded list, and republishes it on a channel.
type RedisSink struct {
	client  Client
	key     string
	channel string
	ttl     time.Duration
	logger  *log.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, opts config.RedisOptions, logger *log.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewSinkWithClient(client, opts, logger), nil
}

// NewSinkWithClient wraps an existing client.
func NewSinkWithClient(client Client, opts config.RedisOptions, logger *log.Logger) *RedisSink {
	if logger == nil {
		logger = log.Discard()
	}
	return &RedisSink{
		client:  client,
		key:     opts.Key,
		channel: opts.Channel,
		ttl:     opts.TTL,
		logger:  logger.With("sink"),
	}
}

// HistoryKey is the list holding tick summaries.
func (s *RedisSink) HistoryKey() string {
	return s.key + ":history"
}

// Write stores one snapshot.
func (s *RedisSink) Write(ctx context.Context, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	summary, err := json.Marshal(summarize(snap))
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if err := s.client.LPush(ctx, s.HistoryKey(), summary).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	if err := s.client.LTrim(ctx, s.HistoryKey(), 0, HistoryLength-1).Err(); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	if s.channel != "" {
		if err := s.client.Publish(ctx, s.channel, summary).Err(); err != nil {
			return fmt.Errorf("failed to publish snapshot: %w", err)
		}
	}
	return nil
}

// Run writes every snapshot received on sub until ctx is done or the
// subscription closes. Write failures are logged and do not stop the sink.
func (s *RedisSink) Run(ctx context.Context, sub bus.Subscription) error {
	return bus.Consume(ctx, sub, func(snap state.Snapshot) {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Write(writeCtx, snap); err != nil {
			s.logger.LogError("redis", err, map[string]interface{}{"seq": snap.Seq})
		}
	})
}

// Close releases the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func summarize(snap state.Snapshot) TickSummary {
	levels := make(map[string]float64, len(snap.Networks))
	for _, series := range snap.Networks {
		if latest, ok := series.Latest(); ok && !latest.Time.Before(snap.Time) {
			levels[series.Identifier] = latest.Level
		}
	}
	return TickSummary{
		Seq:       snap.Seq,
		RunID:     snap.RunID,
		Time:      snap.Time,
		Unit:      string(snap.Unit),
		Connected: snap.Connection.Identifier,
		Levels:    levels,
	}
}
