// Package stats provides the descriptive statistics shared by the agents.
package stats

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrDegenerate is returned when a fit has no unique solution.
	ErrDegenerate = errors.New("degenerate input")
)

// Sum calculates the sum of a slice of float64.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// StdDev calculates the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// CoefficientOfVariation is StdDev/Mean, 0 when the mean is not positive.
func CoefficientOfVariation(values []float64) float64 {
	m := Mean(values)
	if m <= 0 {
		return 0
	}
	return StdDev(values) / m
}

// Regression is a fitted line y = Slope*x + Intercept.
type Regression struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at x.
func (r Regression) At(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearTrend fits ordinary least squares over the index 0..n-1.
func LinearTrend(values []float64) (Regression, error) {
	n := len(values)
	if n < 2 {
		return Regression{}, ErrInsufficientData
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	fn := float64(n)
	denom := fn*sumX2 - sumX*sumX
	if denom == 0 {
		return Regression{}, ErrDegenerate
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	return Regression{Slope: slope, Intercept: intercept}, nil
}

// Detrend subtracts the least-squares line from values.
func Detrend(values []float64) []float64 {
	reg, err := LinearTrend(values)
	if err != nil {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - reg.At(float64(i))
	}
	return out
}

// Autocorrelation returns acf(lag)/acf(0) of values around their mean.
// It is 0 when the series is constant or shorter than lag+1.
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if lag <= 0 || lag >= n {
		return 0
	}
	m := Mean(values)
	var c0, ck float64
	for i := 0; i < n; i++ {
		d := values[i] - m
		c0 += d * d
		if i+lag < n {
			ck += d * (values[i+lag] - m)
		}
	}
	if c0 == 0 {
		return 0
	}
	return ck / c0
}

// Quantile returns the p-quantile of values using linear interpolation
// between closest ranks. values need not be sorted.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantileSorted(sorted, p)
}

func quantileSorted(sorted []float64, p float64) float64 {
	p = Clamp(p, 0, 1)
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Median returns the 0.5 quantile.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// NormalQuantile is the inverse standard normal CDF, √2·erfinv(2p−1).
func NormalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// Round rounds x to places decimals, half away from zero.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// Round2 rounds to cents.
func Round2(x float64) float64 {
	return Round(x, 2)
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ClampInt limits n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Tail returns the last n values, or all of them when there are fewer.
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	if n <= 0 {
		return nil
	}
	return values[len(values)-n:]
}

// GeometricMean of positive values; any non-positive value yields 0.
func GeometricMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var logSum float64
	for _, v := range values {
		if v <= 0 {
			return 0
		}
		logSum += math.Log(v)
	}
	return math.Exp(logSum / float64(len(values)))
}
