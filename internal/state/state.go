package state

import (
	"time"

	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
)

// NetworkSeries is the rolling history kept for one identifier.
type NetworkSeries struct {
	Identifier string          `json:"identifier"`
	Channel    int             `json:"channel,omitempty"`
	FirstSeen  time.Time       `json:"first_seen"`
	LastSeen   time.Time       `json:"last_seen"`
	Samples    []signal.Sample `json:"samples"`
	Estimate   stats.Gaussian  `json:"estimate"`
	Estimated  bool            `json:"estimated"`
}

// Latest returns the most recent sample.
func (s NetworkSeries) Latest() (signal.Sample, bool) {
	if len(s.Samples) == 0 {
		return signal.Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Levels returns the sample levels in insertion order.
func (s NetworkSeries) Levels() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Level
	}
	return out
}

// Snapshot is the immutable view handed to presentation consumers once per
// tick.
type Snapshot struct {
	Seq             uint64                 `json:"seq"`
	RunID           string                 `json:"run_id"`
	Time            time.Time              `json:"time"`
	Unit            signal.Unit            `json:"unit"`
	Networks        []NetworkSeries        `json:"networks"`
	Connection      signal.ConnectionState `json:"connection"`
	Found           int                    `json:"found"`
	Malformed       int                    `json:"malformed"`
	ListStatus      string                 `json:"list_status"`
	InterfaceStatus string                 `json:"interface_status"`
}

// Connected returns the series of the associated network, if tracked.
func (s Snapshot) Connected() (NetworkSeries, bool) {
	if !s.Connection.Connected() {
		return NetworkSeries{}, false
	}
	return s.Series(s.Connection.Identifier)
}

// Series looks up a network by identifier.
func (s Snapshot) Series(identifier string) (NetworkSeries, bool) {
	for _, series := range s.Networks {
		if series.Identifier == identifier {
			return series, true
		}
	}
	return NetworkSeries{}, false
}

// Store defines operations for tracking per-network history.
type Store interface {
	Append(at time.Time, result signal.ScanResult) []string
	Recompute(identifiers []string)
	SeriesFor(identifier string) (NetworkSeries, bool)
	AllSeries() []NetworkSeries
	PruneStale(now time.Time, maxAge time.Duration) []string
	SetWindowCap(n int)
	WindowCap() int
}
