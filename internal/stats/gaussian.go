// Package stats models a network's recent readings as a normal distribution.
package stats

import "math"

const (
	// DefaultSingleSampleStdDev is used when only one reading exists.
	DefaultSingleSampleStdDev = 10.0
	// DefaultMinStdDev keeps constant series from collapsing to zero width.
	DefaultMinStdDev = 5.0
)

// Gaussian is a (mean, stddev) pair.
type Gaussian struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Estimator derives a Gaussian from a window of levels.
type Estimator struct {
	SingleSampleStdDev float64
	MinStdDev          float64
}

// DefaultEstimator uses the default floor constants.
func DefaultEstimator() Estimator {
	return Estimator{
		SingleSampleStdDev: DefaultSingleSampleStdDev,
		MinStdDev:          DefaultMinStdDev,
	}
}

// Estimate returns the mean and floored population standard deviation of
// levels. ok is false for an empty window; callers are expected to guard.
func (e Estimator) Estimate(levels []float64) (g Gaussian, ok bool) {
	switch len(levels) {
	case 0:
		return Gaussian{}, false
	case 1:
		return Gaussian{Mean: levels[0], StdDev: e.SingleSampleStdDev}, true
	}

	var sum float64
	for _, v := range levels {
		sum += v
	}
	mean := sum / float64(len(levels))

	var sq float64
	for _, v := range levels {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(levels)))
	if std < e.MinStdDev {
		std = e.MinStdDev
	}
	return Gaussian{Mean: mean, StdDev: std}, true
}

// Estimate uses DefaultEstimator.
func Estimate(levels []float64) (Gaussian, bool) {
	return DefaultEstimator().Estimate(levels)
}

// PDF evaluates the probability density at x.
func (g Gaussian) PDF(x float64) float64 {
	if g.StdDev <= 0 {
		return 0
	}
	z := (x - g.Mean) / g.StdDev
	return math.Exp(-0.5*z*z) / (g.StdDev * math.Sqrt(2*math.Pi))
}

// Curve samples the PDF at n evenly spaced points across [lo, hi].
func (g Gaussian) Curve(lo, hi float64, n int) (xs, ys []float64) {
	if n < 2 {
		n = 2
	}
	xs = make([]float64, n)
	ys = make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := 0; i < n; i++ {
		x := lo + step*float64(i)
		xs[i] = x
		ys[i] = g.PDF(x)
	}
	return xs, ys
}
