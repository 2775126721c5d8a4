package api

import (
	"context"
	"encoding/json"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/metrics"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
)

type staticSource struct {
	snap state.Snapshot
	ok   bool
}

func (s staticSource) Latest() (state.Snapshot, bool) {
	return s.snap, s.ok
}

func testSnapshot() state.Snapshot {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	level := 75.0
	var home, cafe []signal.Sample
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 5 * time.Second)
		home = append(home, signal.Sample{Time: at, Level: float64(72 + i)})
		cafe = append(cafe, signal.Sample{Time: at, Level: float64(30 + i)})
	}
	return state.Snapshot{
		Seq:   4,
		RunID: "run-1",
		Time:  base.Add(15 * time.Second),
		Unit:  signal.UnitPercent,
		Networks: []state.NetworkSeries{
			{Identifier: "Home", Channel: 6, Samples: home, LastSeen: home[3].Time, Estimate: stats.Gaussian{Mean: 73.5, StdDev: 1.1}, Estimated: true},
			{Identifier: "Cafe", Channel: 11, Samples: cafe, LastSeen: cafe[3].Time, Estimate: stats.Gaussian{Mean: 31.5, StdDev: 1.1}, Estimated: true},
		},
		Connection:      signal.ConnectionState{Identifier: "Home", Level: &level},
		Found:           2,
		ListStatus:      "ok",
		InterfaceStatus: "ok",
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestEndpointsBeforeFirstSnapshot(t *testing.T) {
	router := NewHandler(staticSource{}, nil, nil).Router()

	for _, path := range []string{"/api/snapshot", "/api/networks", "/api/connection", "/chart.png"} {
		rec := get(t, router, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "no snapshot yet", path)
	}

	rec := get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "starting", body["status"])
}

func TestNetworksEndpoint(t *testing.T) {
	router := NewHandler(staticSource{snap: testSnapshot(), ok: true}, nil, nil).Router()

	rec := get(t, router, "/api/networks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var views []NetworkView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "Home", views[0].Identifier)
	assert.Equal(t, 75.0, views[0].Level)
	assert.Equal(t, signal.QualityVeryGood, views[0].Quality)
	assert.True(t, views[0].Connected)
	require.NotNil(t, views[0].Mean)
	assert.InDelta(t, 73.5, *views[0].Mean, 1e-9)
	assert.Equal(t, signal.QualityWeak, views[1].Quality)
	assert.False(t, views[1].Connected)
}

func TestNetworkEndpoint(t *testing.T) {
	router := NewHandler(staticSource{snap: testSnapshot(), ok: true}, nil, nil).Router()

	rec := get(t, router, "/api/networks/Cafe")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Identifier string          `json:"identifier"`
		History    []signal.Sample `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Cafe", body.Identifier)
	assert.Len(t, body.History, 4)

	rec = get(t, router, "/api/networks/Nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionEndpoint(t *testing.T) {
	snap := testSnapshot()
	router := NewHandler(staticSource{snap: snap, ok: true}, nil, nil).Router()

	rec := get(t, router, "/api/connection")
	require.Equal(t, http.StatusOK, rec.Code)
	var view ConnectionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Connected)
	assert.Equal(t, "Home", view.Identifier)
	require.NotNil(t, view.Level)
	assert.Equal(t, 75.0, *view.Level)
	assert.Equal(t, "ok", view.Status)

	snap.Connection = signal.ConnectionState{}
	snap.InterfaceStatus = "unavailable"
	router = NewHandler(staticSource{snap: snap, ok: true}, nil, nil).Router()
	rec = get(t, router, "/api/connection")
	view = ConnectionView{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.False(t, view.Connected)
	assert.Nil(t, view.Level)
	assert.Equal(t, "unavailable", view.Status)
}

func TestChartEndpoint(t *testing.T) {
	router := NewHandler(staticSource{snap: testSnapshot(), ok: true}, nil, nil).Router()

	for _, kind := range []string{"series", "gaussian"} {
		rec := get(t, router, "/chart.png?kind="+kind+"&width=400&height=200")
		require.Equal(t, http.StatusOK, rec.Code, kind)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, 400, img.Bounds().Dx())
		assert.Equal(t, 200, img.Bounds().Dy())
	}

	rec := get(t, router, "/chart.png?kind=pie")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(config.MetricsModeBoth, reg)
	collector.ObserveTick(testSnapshot(), 20*time.Millisecond)

	router := NewHandler(collector, reg, nil).Router()
	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `wifiwatch_network_signal{channel="6",network="Home",unit="percent"} 75`)
	assert.Contains(t, body, "wifiwatch_ticks_total 1")

	rec = get(t, NewHandler(collector, nil, nil).Router(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectsOtherMethods(t *testing.T) {
	router := NewHandler(staticSource{snap: testSnapshot(), ok: true}, nil, nil).Router()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/snapshot", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQueryInt(t *testing.T) {
	assert.Equal(t, 7, queryInt("", 7, 10))
	assert.Equal(t, 7, queryInt("abc", 7, 10))
	assert.Equal(t, 7, queryInt("-3", 7, 10))
	assert.Equal(t, 5, queryInt("5", 7, 10))
	assert.Equal(t, 10, queryInt("500", 7, 10))
}

func TestServeShutdownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, NewHandler(staticSource{snap: testSnapshot(), ok: true}, nil, nil).Router())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
