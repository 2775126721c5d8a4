package plot

import (
	"errors"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/doridoridoriand/wifiwatch/internal/state"
)

// ErrNoData is returned when no series has enough samples to draw.
var ErrNoData = errors.New("not enough samples to plot")

// Options controls the rendered image.
type Options struct {
	Width  int
	Height int
	// Limit caps the number of networks drawn, strongest first.
	Limit int
}

// DefaultOptions returns a medium sized chart of the eight strongest networks.
func DefaultOptions() Options {
	return Options{Width: 960, Height: 480, Limit: 8}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	return o
}

// Render writes a PNG line chart of the retained samples of each network.
// Series with fewer than two samples are left out.
func Render(w io.Writer, snap state.Snapshot, opts Options) error {
	opts = opts.normalized()

	var (
		series     []chart.Series
		first, end time.Time
	)
	for _, s := range limit(snap.Networks, opts.Limit) {
		if len(s.Samples) < 2 {
			continue
		}
		xs := make([]time.Time, len(s.Samples))
		ys := make([]float64, len(s.Samples))
		for i, sample := range s.Samples {
			xs[i] = sample.Time
			ys[i] = sample.Level
		}
		if first.IsZero() || xs[0].Before(first) {
			first = xs[0]
		}
		if xs[len(xs)-1].After(end) {
			end = xs[len(xs)-1]
		}
		series = append(series, chart.TimeSeries{
			Name:    label(s, snap),
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(len(series), s.Identifier == snap.Connection.Identifier),
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}
	if !end.After(first) {
		end = first.Add(time.Second)
	}

	lo, hi := snap.Unit.Range()
	ch := chart.Chart{
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(first),
				Max: chart.TimeToFloat64(end),
			},
		},
		YAxis: chart.YAxis{
			Name:  "signal (" + snap.Unit.Suffix() + ")",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// RenderGaussians writes a PNG of the estimated distribution of each network.
func RenderGaussians(w io.Writer, snap state.Snapshot, opts Options) error {
	opts = opts.normalized()
	lo, hi := snap.Unit.Range()

	var series []chart.Series
	for _, s := range limit(snap.Networks, opts.Limit) {
		if !s.Estimated {
			continue
		}
		xs, ys := s.Estimate.Curve(lo, hi, 200)
		series = append(series, chart.ContinuousSeries{
			Name:    label(s, snap),
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(len(series), s.Identifier == snap.Connection.Identifier),
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "signal (" + snap.Unit.Suffix() + ")",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		YAxis:  chart.YAxis{Name: "density"},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

func limit(networks []state.NetworkSeries, n int) []state.NetworkSeries {
	if len(networks) > n {
		return networks[:n]
	}
	return networks
}

func label(s state.NetworkSeries, snap state.Snapshot) string {
	if s.Identifier == snap.Connection.Identifier {
		return s.Identifier + " *"
	}
	return s.Identifier
}

func lineStyle(index int, connected bool) chart.Style {
	style := chart.Style{
		StrokeColor: chart.GetDefaultColor(index),
		StrokeWidth: 1.5,
	}
	if connected {
		style.StrokeWidth = 3
	}
	return style
}
