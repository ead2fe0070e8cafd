package l3march

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// pdfEps is added to every weight so empty regions keep a little mass.
const pdfEps = 1e-5

// SamplePDF draws n distances from the piecewise-constant distribution
// whose bin edges are bins (len m+1, ascending) and bin weights are
// weights (len m). With det the quantiles are evenly spaced at
// (k+0.5)/n; otherwise they are uniform random from rng and returned
// unsorted.
func SamplePDF(bins, weights []float64, n int, det bool, rng *rand.Rand) ([]float64, error) {
	m := len(weights)
	if m < 1 || len(bins) != m+1 {
		return nil, fmt.Errorf("need len(bins) == len(weights)+1 >= 2, got %d and %d", len(bins), m)
	}
	if n < 1 {
		return nil, fmt.Errorf("sample count must be >= 1, got %d", n)
	}
	if !det && rng == nil {
		return nil, fmt.Errorf("random sampling requires an rng")
	}
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %d must be finite and non-negative, got %f", i, w)
		}
	}

	pdf := make([]float64, m)
	for i, w := range weights {
		pdf[i] = w + pdfEps
	}
	floats.Scale(1/floats.Sum(pdf), pdf)
	cdf := make([]float64, m+1)
	floats.CumSum(cdf[1:], pdf)

	out := make([]float64, n)
	for k := range out {
		var u float64
		if det {
			u = (float64(k) + 0.5) / float64(n)
		} else {
			u = rng.Float64()
		}

		// below is the last edge with cdf <= u.
		below := floats.Within(cdf, u)
		if below < 0 {
			below = m
		}
		above := min(below+1, m)

		denom := cdf[above] - cdf[below]
		if denom < pdfEps {
			denom = 1
		}
		frac := (u - cdf[below]) / denom
		out[k] = bins[below] + frac*(bins[above]-bins[below])
	}
	return out, nil
}

// SamplePDFBatch applies SamplePDF to every ray's bins and weights.
func SamplePDFBatch(bins, weights [][]float64, n int, det bool, rng *rand.Rand) ([][]float64, error) {
	if len(bins) != len(weights) {
		return nil, fmt.Errorf("got %d bin rows and %d weight rows", len(bins), len(weights))
	}
	out := make([][]float64, len(bins))
	for i := range bins {
		s, err := SamplePDF(bins[i], weights[i], n, det, rng)
		if err != nil {
			return nil, fmt.Errorf("ray %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
