// Package distance provides the pluggable distance kernels the engine
// dispatches on via DistCalcMethod. The retrieval pack's SIMD-accelerated
// kernels (internal/simd, internal/math32) turned out to depend on
// //go:noescape assembly stubs whose .s bodies were never part of the
// corpus, so every element type here goes through a portable, allocation-
// free Go loop instead.
package distance

import (
	"fmt"
	"math"

	"github.com/hybridann/hybridann/core"
)

// Metric identifies the distance function an index was built with.
// It is the runtime value behind the DistCalcMethod parameter.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses the DistCalcMethod parameter value.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "L2":
		return MetricL2, nil
	case "Cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown DistCalcMethod %q", s)
	}
}

// Kernel computes the distance between two rows of d elements of type T.
type Kernel[T core.Element] func(a, b []T, d int) float32

// Sqrt is float32 square root, used for cosine base normalization.
func Sqrt(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

// Dot returns the dot product of two float32 rows of equal length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// ScaleInPlace multiplies every element of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// NormalizeL2InPlace L2-normalizes v in place. Returns false on zero norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	ScaleInPlace(v, 1/Sqrt(norm2))
	return true
}

// KernelFor returns the Kernel for metric m over element type T.
func KernelFor[T core.Element](m Metric) (Kernel[T], error) {
	switch m {
	case MetricL2:
		return squaredL2Generic[T], nil
	case MetricCosine:
		return cosineDistanceGeneric[T], nil
	}
	return nil, fmt.Errorf("unsupported metric %v", m)
}

func squaredL2Generic[T core.Element](a, b []T, d int) float32 {
	var sum float64
	for i := 0; i < d; i++ {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return float32(sum)
}

// cosineDistanceGeneric returns 1 - cosine_similarity, clamped to [0, 2].
// Rows are expected pre-normalized by the engine when cosine is active, in
// which case this reduces to 1 - dot(a, b); computed generally here so it
// also tolerates un-normalized rows on a direct call.
func cosineDistanceGeneric[T core.Element](a, b []T, d int) float32 {
	var dot, na, nb float64
	for i := 0; i < d; i++ {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return float32(1 - cos)
}

// Base returns the scale factor used to denormalize a cosine-distance bound
// back into the element type's native range, mirroring GetBase<T>() from
// the design notes: 1 for float32, and the type's maximum magnitude for
// the fixed-point integer element types so AddPoint distances stay in the
// same units DistCalcMethod expects after rows are pre-scaled.
func Base[T core.Element]() float32 {
	var zero T
	switch any(zero).(type) {
	case int8:
		return 127
	case uint8:
		return 255
	case int16:
		return 32767
	default:
		return 1
	}
}
