// Package similarity holds the vector scoring shared by retrieval and the
// semantic safety layer.
package similarity

import "math"

// Cosine returns dot(a,b) / (|a|*|b|). It is 0 when either vector has zero
// norm. Callers are responsible for checking that lengths match; extra
// trailing components of the longer vector are ignored.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push parallel vectors slightly past the bounds
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
