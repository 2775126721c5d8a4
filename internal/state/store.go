package state

import (
	"sort"
	"sync"
	"time"

	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
)

const DefaultWindowCap = 50

// StoreImpl is an in-memory history store. Series are created on first
// observation and never removed unless PruneStale is called.
type StoreImpl struct {
	mu        sync.RWMutex
	series    map[string]*NetworkSeries
	windowCap int
	estimator stats.Estimator
}

// NewStore creates an empty store.
func NewStore(windowCap int, estimator stats.Estimator) *StoreImpl {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &StoreImpl{
		series:    make(map[string]*NetworkSeries),
		windowCap: windowCap,
		estimator: estimator,
	}
}

// Append pushes one sample per identifier in result and returns the
// identifiers that were updated, sorted.
func (s *StoreImpl) Append(at time.Time, result signal.ScanResult) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]string, 0, len(result.Networks))
	for id, obs := range result.Networks {
		series, ok := s.series[id]
		if !ok {
			series = &NetworkSeries{Identifier: id, FirstSeen: at}
			s.series[id] = series
		}

		ts := at
		if last, ok := series.Latest(); ok && ts.Before(last.Time) {
			ts = last.Time
		}
		s.appendSample(series, signal.Sample{Time: ts, Level: obs.Level})
		series.LastSeen = ts
		if obs.Channel > 0 {
			series.Channel = obs.Channel
		}
		updated = append(updated, id)
	}
	sort.Strings(updated)
	return updated
}

// Recompute refreshes the cached estimate of each identifier from its full
// current window.
func (s *StoreImpl) Recompute(identifiers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range identifiers {
		series, ok := s.series[id]
		if !ok || len(series.Samples) == 0 {
			continue
		}
		series.Estimate, series.Estimated = s.estimator.Estimate(series.Levels())
	}
}

// SeriesFor returns a copy of one series.
func (s *StoreImpl) SeriesFor(identifier string) (NetworkSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[identifier]
	if !ok {
		return NetworkSeries{}, false
	}
	return copySeries(series), true
}

// AllSeries returns copies of every series, strongest latest reading first,
// ties broken by identifier.
func (s *StoreImpl) AllSeries() []NetworkSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]NetworkSeries, 0, len(s.series))
	for _, series := range s.series {
		result = append(result, copySeries(series))
	}
	SortSeries(result)
	return result
}

// PruneStale removes series whose last sample is older than maxAge.
// A non-positive maxAge disables pruning.
func (s *StoreImpl) PruneStale(now time.Time, maxAge time.Duration) []string {
	if maxAge <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, series := range s.series {
		if now.Sub(series.LastSeen) > maxAge {
			delete(s.series, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// SetWindowCap changes the cap and trims existing series from the front.
func (s *StoreImpl) SetWindowCap(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windowCap = n
	for _, series := range s.series {
		if over := len(series.Samples) - n; over > 0 {
			series.Samples = append([]signal.Sample(nil), series.Samples[over:]...)
			series.Estimate, series.Estimated = s.estimator.Estimate(series.Levels())
		}
	}
}

// WindowCap returns the current cap.
func (s *StoreImpl) WindowCap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowCap
}

func (s *StoreImpl) appendSample(series *NetworkSeries, sample signal.Sample) {
	if len(series.Samples) < s.windowCap {
		series.Samples = append(series.Samples, sample)
		return
	}
	copy(series.Samples, series.Samples[len(series.Samples)-s.windowCap+1:])
	series.Samples = series.Samples[:s.windowCap]
	series.Samples[s.windowCap-1] = sample
}

// SortSeries orders series by latest level descending, then identifier.
func SortSeries(series []NetworkSeries) {
	sort.SliceStable(series, func(i, j int) bool {
		li, iok := series[i].Latest()
		lj, jok := series[j].Latest()
		if iok != jok {
			return iok
		}
		if li.Level != lj.Level {
			return li.Level > lj.Level
		}
		return series[i].Identifier < series[j].Identifier
	})
}

func copySeries(source *NetworkSeries) NetworkSeries {
	clone := *source
	if len(source.Samples) > 0 {
		clone.Samples = append([]signal.Sample(nil), source.Samples...)
	}
	return clone
}
