package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
)

func styledRunesToString(parts []styledRune) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(string(part.r))
	}
	return b.String()
}

func testSnapshot() state.Snapshot {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	level := 80.0
	return state.Snapshot{
		Seq:  7,
		Time: now,
		Unit: signal.UnitPercent,
		Networks: []state.NetworkSeries{
			{
				Identifier: "Home",
				Channel:    6,
				Samples: []signal.Sample{
					{Time: now.Add(-10 * time.Second), Level: 60},
					{Time: now.Add(-5 * time.Second), Level: 70},
					{Time: now, Level: 80},
				},
				Estimate:  stats.Gaussian{Mean: 70, StdDev: 8.16},
				Estimated: true,
			},
			{
				Identifier: "Old",
				Samples:    []signal.Sample{{Time: now.Add(-time.Minute), Level: 10}},
			},
		},
		Connection:      signal.ConnectionState{Identifier: "Home", Level: &level},
		Found:           1,
		ListStatus:      "ok",
		InterfaceStatus: "ok",
	}
}

func TestFormatNetworkLineShowsLevelSpreadAndQuality(t *testing.T) {
	snap := testSnapshot()
	line := styledRunesToString(formatNetworkLine(120, snap.Networks[0], snap))

	if !strings.HasPrefix(line, "*Home") {
		t.Fatalf("expected connected marker before the name, got %q", line)
	}
	for _, want := range []string{"ch 6", "80%", "70±8.2", "Very Good", "#"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Index(line, "80%") > strings.Index(line, "70±8.2") {
		t.Fatalf("expected latest level before the estimate, got %q", line)
	}
	if len([]rune(line)) != 120 {
		t.Fatalf("expected line to fill width, got %d runes", len([]rune(line)))
	}
}

func TestFormatNetworkLineWithoutEstimate(t *testing.T) {
	snap := testSnapshot()
	line := styledRunesToString(formatNetworkLine(100, snap.Networks[1], snap))
	if !strings.HasPrefix(line, " Old") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "ch -") || !strings.Contains(line, "Very Weak") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestFormatConnection(t *testing.T) {
	snap := testSnapshot()
	line := styledRunesToString(formatConnection(80, snap))
	if !strings.Contains(line, "Home") || !strings.Contains(line, "80%") || !strings.Contains(line, "Very Good") {
		t.Fatalf("unexpected connection line: %q", line)
	}

	snap.Connection.Level = nil
	if line := styledRunesToString(formatConnection(80, snap)); !strings.Contains(line, "level unknown") {
		t.Fatalf("expected unknown level, got %q", line)
	}

	snap.Connection = signal.ConnectionState{}
	if line := styledRunesToString(formatConnection(80, snap)); line != "not connected" {
		t.Fatalf("expected not connected, got %q", line)
	}
}

func TestFormatStatusLine(t *testing.T) {
	snap := testSnapshot()
	snap.ListStatus = "timeout"
	snap.Malformed = 2
	line := styledRunesToString(formatStatusLine(200, snap, snap.Time.Add(1500*time.Millisecond)))
	for _, want := range []string{"#7", "1.5s ago", "found=1", "list:timeout", "status:ok", "malformed=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestFormatLevelDBm(t *testing.T) {
	if got := formatLevel(-64.25, signal.UnitDBm); got != "-64.3 dBm" {
		t.Fatalf("unexpected dBm label: %q", got)
	}
	if got := formatLevel(72, signal.UnitPercent); got != "72%" {
		t.Fatalf("unexpected percent label: %q", got)
	}
}

func TestSparklineScalesToUnitRange(t *testing.T) {
	got := sparkline([]float64{0, 50, 100}, signal.UnitPercent, 5)
	if got != "  ▁▅█" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	got = sparkline([]float64{-100, -50, 0}, signal.UnitDBm, 3)
	if got != "▁▅█" {
		t.Fatalf("unexpected dBm sparkline %q", got)
	}
	if got := sparkline([]float64{1, 2, 3, 4}, signal.UnitPercent, 2); len([]rune(got)) != 2 {
		t.Fatalf("expected sparkline to keep the newest points only, got %q", got)
	}
}

func TestFormatConfigInfo(t *testing.T) {
	info := formatConfigInfo(config.GlobalOptions{
		Interval:    5 * time.Second,
		ListTimeout: 15 * time.Second,
		Unit:        signal.UnitDBm,
		WindowCap:   50,
	})
	if info != " interval=5.0s  list_timeout=15.0s  unit=dbm  window=50" {
		t.Fatalf("unexpected config info: %q", info)
	}
}

func TestVisibleNetworks(t *testing.T) {
	networks := testSnapshot().Networks
	if got := visibleNetworks(networks, 1); len(got) != 1 || got[0].Identifier != "Home" {
		t.Fatalf("expected strongest network only, got %+v", got)
	}
	if got := visibleNetworks(networks, 0); len(got) != 2 {
		t.Fatalf("zero limit should show everything")
	}
}
