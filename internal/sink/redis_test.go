package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doridoridoriand/wifiwatch/internal/bus"
	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

type fakeClient struct {
	mu        sync.Mutex
	sets      map[string][]byte
	ttls      map[string]time.Duration
	lists     map[string][][]byte
	published map[string][][]byte
	trims     int
	setErr    error
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sets:      make(map[string][]byte),
		ttls:      make(map[string]time.Duration),
		lists:     make(map[string][][]byte),
		published: make(map[string][][]byte),
	}
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.sets[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([][]byte{v.([]byte)}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeClient) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trims++
	if int64(len(f.lists[key])) > stop+1 {
		f.lists[key] = f.lists[key][start : stop+1]
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) historyLen(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[key])
}

func testOptions() config.RedisOptions {
	return config.RedisOptions{Addr: "fake:6379", Key: "wifiwatch:latest", Channel: "wifiwatch:snapshots", TTL: time.Minute}
}

func testSnapshot(seq uint64) state.Snapshot {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second)
	return state.Snapshot{
		Seq:  seq,
		Time: now,
		Unit: signal.UnitPercent,
		Networks: []state.NetworkSeries{
			{Identifier: "Home", Samples: []signal.Sample{{Time: now, Level: 80}}},
			{Identifier: "Gone", Samples: []signal.Sample{{Time: now.Add(-time.Minute), Level: 20}}},
		},
		Connection: signal.ConnectionState{Identifier: "Home"},
	}
}

func TestWriteStoresPublishesAndTrims(t *testing.T) {
	client := newFakeClient()
	s := NewSinkWithClient(client, testOptions(), nil)

	require.NoError(t, s.Write(context.Background(), testSnapshot(1)))

	var stored state.Snapshot
	require.NoError(t, json.Unmarshal(client.sets["wifiwatch:latest"], &stored))
	assert.Equal(t, uint64(1), stored.Seq)
	assert.Len(t, stored.Networks, 2)
	assert.Equal(t, time.Minute, client.ttls["wifiwatch:latest"])

	require.Len(t, client.lists["wifiwatch:latest:history"], 1)
	var summary TickSummary
	require.NoError(t, json.Unmarshal(client.lists["wifiwatch:latest:history"][0], &summary))
	assert.Equal(t, map[string]float64{"Home": 80}, summary.Levels)
	assert.Equal(t, "Home", summary.Connected)
	assert.Equal(t, 1, client.trims)

	require.Len(t, client.published["wifiwatch:snapshots"], 1)
}

func TestWriteSkipsPublishWithoutChannel(t *testing.T) {
	client := newFakeClient()
	opts := testOptions()
	opts.Channel = ""
	s := NewSinkWithClient(client, opts, nil)

	require.NoError(t, s.Write(context.Background(), testSnapshot(1)))
	assert.Empty(t, client.published)
}

func TestWriteReturnsClientError(t *testing.T) {
	client := newFakeClient()
	client.setErr = errors.New("READONLY")
	s := NewSinkWithClient(client, testOptions(), nil)

	err := s.Write(context.Background(), testSnapshot(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	assert.Empty(t, client.lists)
}

func TestHistoryIsBounded(t *testing.T) {
	client := newFakeClient()
	s := NewSinkWithClient(client, testOptions(), nil)

	for i := 1; i <= HistoryLength+5; i++ {
		require.NoError(t, s.Write(context.Background(), testSnapshot(uint64(i))))
	}
	assert.Equal(t, HistoryLength, client.historyLen(s.HistoryKey()))
}

func TestRunConsumesBus(t *testing.T) {
	client := newFakeClient()
	s := NewSinkWithClient(client, testOptions(), nil)
	b := bus.New(nil)
	sub := b.Subscribe()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), sub) }()

	b.Publish(testSnapshot(1))
	b.Publish(testSnapshot(2))

	require.Eventually(t, func() bool {
		return client.historyLen(s.HistoryKey()) == 2
	}, time.Second, 10*time.Millisecond)

	b.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after bus close")
	}
	require.NoError(t, s.Close())
	assert.True(t, client.closed)
}

func TestRunKeepsGoingAfterWriteError(t *testing.T) {
	client := newFakeClient()
	client.setErr = errors.New("boom")
	s := NewSinkWithClient(client, testOptions(), nil)

	sub := make(bus.Subscription, 2)
	sub <- testSnapshot(1)
	sub <- testSnapshot(2)
	close(sub)

	require.NoError(t, s.Run(context.Background(), sub))
	assert.Empty(t, client.sets)
}
