package analysis

import (
	"math"
	"sort"
)

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// mean falls back to a running average when the plain sum overflows, so
// columns of very large finite values still have a finite mean.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	if m := sum(vals) / float64(len(vals)); !math.IsInf(m, 0) {
		return m
	}
	var m float64
	for i, v := range vals {
		m += (v - m) / float64(i+1)
	}
	return m
}

func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, vals)
	sort.Float64s(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	lo, hi := cp[n/2-1], cp[n/2]
	if m := (lo + hi) / 2; !math.IsInf(m, 0) {
		return m
	}
	return lo/2 + hi/2
}

// sampleStd is the n-1 standard deviation; 0 for fewer than two values.
func sampleStd(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	m := mean(vals)
	var ss, scale float64
	for _, v := range vals {
		d := v - m
		ss += d * d
		scale = math.Max(scale, math.Abs(d))
	}
	if !math.IsInf(ss, 0) || math.IsInf(scale, 0) {
		return math.Sqrt(ss / float64(n-1))
	}
	// Squares overflowed; accumulate relative to the largest deviation.
	ss = 0
	for _, v := range vals {
		d := (v - m) / scale
		ss += d * d
	}
	return scale * math.Sqrt(ss/float64(n-1))
}

func minMax(vals []float64) (lo, hi float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
