package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// exactLimit bounds n*m for the exact lattice path computation.
const exactLimit = 10000

// KSPValue returns the two-sided p-value of the two-sample
// Kolmogorov-Smirnov test for x and y. Neither input is modified.
func KSPValue(x, y []float64) float64 {
	n, m := len(x), len(y)
	if n == 0 || m == 0 {
		return 1
	}
	xs := slices.Clone(x)
	ys := slices.Clone(y)
	slices.Sort(xs)
	slices.Sort(ys)

	d := stat.KolmogorovSmirnov(xs, nil, ys, nil)
	if d <= 0 {
		return 1
	}
	if n*m <= exactLimit {
		return exactPValue(d, n, m)
	}
	return asymptoticPValue(d, n, m)
}

// exactPValue computes P(D >= d) under the null hypothesis by counting the
// monotone lattice paths from (0,0) to (n,m) that stay strictly inside
// |i/n - j/m| < d. The walk is normalised by the binomial path count at each
// step so the table stays within [0,1].
func exactPValue(d float64, n, m int) float64 {
	// D is always a multiple of 1/(n*m); work on the integer numerator.
	bound := int(math.Round(d * float64(n) * float64(m)))
	inside := func(i, j int) bool {
		diff := i*m - j*n
		if diff < 0 {
			diff = -diff
		}
		return diff < bound
	}

	u := make([]float64, m+1)
	for j := 0; j <= m; j++ {
		if inside(0, j) {
			u[j] = 1
		} else {
			// Every later point of the first row is reached only through here.
			for k := j; k <= m; k++ {
				u[k] = 0
			}
			break
		}
	}
	for i := 1; i <= n; i++ {
		if !inside(i, 0) {
			u[0] = 0
		}
		for j := 1; j <= m; j++ {
			if !inside(i, j) {
				u[j] = 0
				continue
			}
			w := float64(i + j)
			u[j] = float64(i)/w*u[j] + float64(j)/w*u[j-1]
		}
	}
	return clamp01(1 - u[m])
}

// asymptoticPValue uses the limiting Kolmogorov distribution with the
// Stephens small sample correction.
func asymptoticPValue(d float64, n, m int) float64 {
	en := math.Sqrt(float64(n) * float64(m) / float64(n+m))
	lambda := (en + 0.12 + 0.11/en) * d
	if lambda < 0.2 {
		return 1
	}
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	return clamp01(2 * sum)
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
