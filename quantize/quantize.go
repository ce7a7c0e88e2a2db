// Package quantize implements distance-aware vector quantization, opaque
// to the engine: a query carries both its original float32 representation
// (Target) and a representation in the
// store's element type (Quantized) used for the actual distance
// computation against resident rows. Grounded on the teacher's
// quantization.ScalarQuantizer (quantization/quantizer.go), generalized
// from a fixed uint8 target to any core.Element via Identity, and kept as
// SQ8 for the 8-bit scalar case.
package quantize

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/hybridann/hybridann/core"
)

// Quantizer converts between a float32 query vector and the store's
// native element type T.
type Quantizer[T core.Element] interface {
	// Encode maps a float32 query vector into T's representation.
	Encode(v []float32) []T

	// Decode reconstructs a float32 approximation from a T-typed vector.
	Decode(q []T) []float32

	// Train calibrates the quantizer against a sample of vectors. A
	// no-op for quantizers with no learned parameters.
	Train(vectors [][]float32) error

	// BytesPerDimension returns the storage width per dimension.
	BytesPerDimension() int
}

// Identity is a pass-through quantizer: Encode/Decode only convert
// numeric representation, performing no scaling. Used when the store's
// element type already holds the query's native precision (typically
// T = float32): quantization stays opaque to the engine even for an index
// that was never actually quantized.
type Identity[T core.Element] struct{}

func (Identity[T]) Encode(v []float32) []T {
	out := make([]T, len(v))
	for i, x := range v {
		out[i] = T(x)
	}
	return out
}

func (Identity[T]) Decode(q []T) []float32 {
	out := make([]float32, len(q))
	for i, x := range q {
		out[i] = float32(x)
	}
	return out
}

func (Identity[T]) Train([][]float32) error { return nil }

func (Identity[T]) BytesPerDimension() int {
	var zero T
	switch any(zero).(type) {
	case int8, uint8:
		return 1
	case int16:
		return 2
	default:
		return 4
	}
}

// SQ8 implements 8-bit scalar quantization: each dimension is linearly
// mapped between a trained [min, max] range and [0, 255], matching the
// teacher's ScalarQuantizer.
type SQ8 struct {
	min float32
	max float32
}

// NewSQ8 constructs an untrained SQ8 quantizer with the default [0, 1]
// range (overwritten by the first Train call).
func NewSQ8() *SQ8 {
	return &SQ8{min: 0, max: 1}
}

// Train sets min/max to the observed range across vectors.
func (q *SQ8) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("quantize: no vectors provided for training")
	}

	q.min = math.MaxFloat32
	q.max = -math.MaxFloat32
	for _, vec := range vectors {
		for _, val := range vec {
			if val < q.min {
				q.min = val
			}
			if val > q.max {
				q.max = val
			}
		}
	}
	if q.min == q.max {
		q.max = q.min + 1
	}
	return nil
}

// Encode linearly maps v from [min, max] to [0, 255], clamping out-of-
// range values.
func (q *SQ8) Encode(v []float32) []uint8 {
	out := make([]uint8, len(v))
	scale := 255.0 / (q.max - q.min)
	for i, val := range v {
		if val < q.min {
			val = q.min
		} else if val > q.max {
			val = q.max
		}
		out[i] = uint8((val-q.min)*scale + 0.5)
	}
	return out
}

// Decode reconstructs an approximate float32 vector from SQ8 codes.
func (q *SQ8) Decode(codes []uint8) []float32 {
	out := make([]float32, len(codes))
	scale := (q.max - q.min) / 255.0
	for i, c := range codes {
		out[i] = float32(c)*scale + q.min
	}
	return out
}

// BytesPerDimension is always 1 for SQ8.
func (q *SQ8) BytesPerDimension() int { return 1 }

// Min returns the trained lower bound.
func (q *SQ8) Min() float32 { return q.min }

// Max returns the trained upper bound.
func (q *SQ8) Max() float32 { return q.max }

// MarshalBinary encodes (min, max) as little-endian float32s.
func (q *SQ8) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(q.min))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(q.max))
	return b, nil
}

// UnmarshalBinary decodes (min, max) written by MarshalBinary.
func (q *SQ8) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return errors.New("quantize: invalid SQ8 binary length")
	}
	q.min = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	q.max = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	return nil
}

// QueryVector carries both a query's original float32 representation and
// its encoding in the store's element type. The engine never interprets
// Target beyond
// passing it to a Quantizer; Quantized is what every distance comparison
// actually uses.
type QueryVector[T core.Element] struct {
	Target    []float32
	Quantized []T
}

// NewQueryVector encodes target through q and packages both
// representations together.
func NewQueryVector[T core.Element](target []float32, q Quantizer[T]) *QueryVector[T] {
	return &QueryVector[T]{Target: target, Quantized: q.Encode(target)}
}
