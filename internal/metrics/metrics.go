package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/scan"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

const namespace = "wifiwatch"

var (
	networkLabels = []string{"network", "channel", "unit"}

	descSignal = prometheus.NewDesc(
		namespace+"_network_signal",
		"Most recent signal level per network",
		networkLabels, nil,
	)
	descMean = prometheus.NewDesc(
		namespace+"_network_signal_mean",
		"Mean signal level over the retained window",
		networkLabels, nil,
	)
	descStdDev = prometheus.NewDesc(
		namespace+"_network_signal_stddev",
		"Floored standard deviation over the retained window",
		networkLabels, nil,
	)
	descSamples = prometheus.NewDesc(
		namespace+"_network_samples",
		"Samples retained per network",
		networkLabels, nil,
	)
	descConnected = prometheus.NewDesc(
		namespace+"_network_connected",
		"1 for the associated network",
		networkLabels, nil,
	)

	descTracked = prometheus.NewDesc(
		namespace+"_networks_tracked",
		"Networks with a retained series",
		nil, nil,
	)
	descFound = prometheus.NewDesc(
		namespace+"_networks_found",
		"Networks reported by the latest scan",
		nil, nil,
	)
	descBest = prometheus.NewDesc(
		namespace+"_signal_best",
		"Strongest most recent level across networks",
		[]string{"unit"}, nil,
	)
	descConnectedSignal = prometheus.NewDesc(
		namespace+"_connected_signal",
		"Signal level of the associated network",
		[]string{"network", "unit"}, nil,
	)
)

// Collector exports the latest snapshot plus per-tick counters.
type Collector struct {
	mode   config.MetricsMode
	latest atomic.Pointer[state.Snapshot]

	ticks        prometheus.Counter
	failures     *prometheus.CounterVec
	tickDuration prometheus.Histogram
}

// NewCollector registers a collector with reg.
func NewCollector(mode config.MetricsMode, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		mode: mode,
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Poll ticks completed",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_failures_total",
			Help:      "Scanner calls that did not return usable output",
		}, []string{"call", "status"}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one poll tick",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
	if reg != nil {
		reg.MustRegister(c)
	}
	return c
}

// ObserveTick records a finished tick.
func (c *Collector) ObserveTick(snap state.Snapshot, elapsed time.Duration) {
	c.latest.Store(&snap)
	c.ticks.Inc()
	c.tickDuration.Observe(elapsed.Seconds())
	if snap.ListStatus != "" && snap.ListStatus != scan.StatusOK {
		c.failures.WithLabelValues("list", snap.ListStatus).Inc()
	}
	if snap.InterfaceStatus != "" && snap.InterfaceStatus != scan.StatusOK {
		c.failures.WithLabelValues("status", snap.InterfaceStatus).Inc()
	}
}

// Latest returns the last observed snapshot.
func (c *Collector) Latest() (state.Snapshot, bool) {
	snap := c.latest.Load()
	if snap == nil {
		return state.Snapshot{}, false
	}
	return *snap, true
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	if c.perNetwork() {
		ch <- descSignal
		ch <- descMean
		ch <- descStdDev
		ch <- descSamples
		ch <- descConnected
	}
	if c.aggregated() {
		ch <- descTracked
		ch <- descFound
		ch <- descBest
		ch <- descConnectedSignal
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.Latest()
	if !ok {
		return
	}
	if c.aggregated() {
		collectAggregated(ch, snap)
	}
	if c.perNetwork() {
		collectPerNetwork(ch, snap)
	}
}

func (c *Collector) perNetwork() bool {
	return c.mode == config.MetricsModePerNetwork || c.mode == config.MetricsModeBoth
}

func (c *Collector) aggregated() bool {
	return c.mode == config.MetricsModeAggregated || c.mode == config.MetricsModeBoth
}

func collectAggregated(ch chan<- prometheus.Metric, snap state.Snapshot) {
	unit := string(snap.Unit)
	ch <- prometheus.MustNewConstMetric(descTracked, prometheus.GaugeValue, float64(len(snap.Networks)))
	ch <- prometheus.MustNewConstMetric(descFound, prometheus.GaugeValue, float64(snap.Found))

	best, found := 0.0, false
	for _, series := range snap.Networks {
		latest, ok := series.Latest()
		if !ok {
			continue
		}
		if !found || latest.Level > best {
			best, found = latest.Level, true
		}
	}
	if found {
		ch <- prometheus.MustNewConstMetric(descBest, prometheus.GaugeValue, best, unit)
	}
	if snap.Connection.Connected() && snap.Connection.Level != nil {
		ch <- prometheus.MustNewConstMetric(descConnectedSignal, prometheus.GaugeValue, *snap.Connection.Level, snap.Connection.Identifier, unit)
	}
}

func collectPerNetwork(ch chan<- prometheus.Metric, snap state.Snapshot) {
	for _, series := range snap.Networks {
		latest, ok := series.Latest()
		if !ok {
			continue
		}
		labels := []string{series.Identifier, channelLabel(series.Channel), string(snap.Unit)}
		ch <- prometheus.MustNewConstMetric(descSignal, prometheus.GaugeValue, latest.Level, labels...)
		ch <- prometheus.MustNewConstMetric(descSamples, prometheus.GaugeValue, float64(len(series.Samples)), labels...)
		if series.Estimated {
			ch <- prometheus.MustNewConstMetric(descMean, prometheus.GaugeValue, series.Estimate.Mean, labels...)
			ch <- prometheus.MustNewConstMetric(descStdDev, prometheus.GaugeValue, series.Estimate.StdDev, labels...)
		}
		connected := 0.0
		if snap.Connection.Identifier == series.Identifier {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(descConnected, prometheus.GaugeValue, connected, labels...)
	}
}

func channelLabel(channel int) string {
	if channel <= 0 {
		return ""
	}
	return strconv.Itoa(channel)
}

