// Package window maps raw scan intensities into display grays.
package window

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Level is a window/level setting: Center picks the intensity shown as mid
// gray, Width the intensity span mapped across the full gray range.
type Level struct {
	Center float64
	Width  float64
}

// AutoLevel derives a level from the sample distribution, clipping the
// darkest and brightest percentiles so stray extremes do not flatten the
// display range.
func AutoLevel(samples []float64) Level {
	if len(samples) == 0 {
		return Level{Center: 0.5, Width: 1}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	lo := stat.Quantile(0.01, stat.Empirical, sorted, nil)
	hi := stat.Quantile(0.99, stat.Empirical, sorted, nil)
	if hi <= lo {
		// Degenerate distribution; fall back to mean with a unit span.
		mean := stat.Mean(sorted, nil)
		return Level{Center: mean, Width: 1}
	}
	return Level{Center: (lo + hi) / 2, Width: hi - lo}
}

// Apply maps one intensity to an 8-bit gray under this level.
func (l Level) Apply(v float64) uint8 {
	w := l.Width
	if w <= 0 {
		w = 1
	}
	t := (v-l.Center)/w + 0.5
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 255
	}
	return uint8(math.Round(t * 255))
}

// ToGray renders a slice of raw intensities, laid out row-major at the given
// dimensions, into a grayscale image under this level.
func (l Level) ToGray(values []float64, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	n := w * h
	if n > len(values) {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		img.Pix[i] = l.Apply(values[i])
	}
	return img
}

// Histogram counts samples into equal-width bins across [min, max].
func Histogram(samples []float64, bins int) []int {
	counts := make([]int, bins)
	if len(samples) == 0 || bins == 0 {
		return counts
	}

	lo, hi := samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		counts[0] = len(samples)
		return counts
	}

	scale := float64(bins) / (hi - lo)
	for _, v := range samples {
		i := int((v - lo) * scale)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	return counts
}
