package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hybridann/hybridann/core"
)

// ElementType tags the on-disk element width/signedness for the samples
// blob header, mirroring the source's template specialization per T.
type ElementType uint8

const (
	ElementInt8 ElementType = iota
	ElementUint8
	ElementInt16
	ElementFloat32
)

// ElementTypeOf returns the ElementType tag for T.
func ElementTypeOf[T core.Element]() ElementType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return ElementInt8
	case uint8:
		return ElementUint8
	case int16:
		return ElementInt16
	default:
		return ElementFloat32
	}
}

// header is the fixed samples-blob header: (R, D, blockSize, capacity, elementType).
type header struct {
	R           uint64
	D           uint32
	BlockSize   uint32
	Capacity    uint64
	ElementType uint8
}

// WriteTo writes the samples blob: header followed by R*D values in
// row-major order, packed block by block.
func (s *Store[T]) WriteTo(w io.Writer) (int64, error) {
	h := header{
		R:           uint64(s.R()),
		D:           uint32(s.dim),
		BlockSize:   uint32(s.blockSize),
		Capacity:    uint64(s.capacity),
		ElementType: uint8(ElementTypeOf[T]()),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	n := int64(binary.Size(h))

	r := s.R()
	for vid := 0; vid < r; vid++ {
		row := s.Row(core.VID(vid))
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return n, err
		}
		n += int64(len(row)) * elementSize[T]()
	}
	return n, nil
}

// ReadFrom reconstructs a store from a samples blob written by WriteTo.
// The element type recorded in the header must match T.
func (s *Store[T]) ReadFrom(r io.Reader) (int64, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	if ElementType(h.ElementType) != ElementTypeOf[T]() {
		return 0, fmt.Errorf("store: element type mismatch: blob has %d, store wants %d", h.ElementType, ElementTypeOf[T]())
	}

	n := int64(binary.Size(h))
	data := make([]T, int(h.R)*int(h.D))
	if len(data) > 0 {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return n, err
		}
		n += int64(len(data)) * elementSize[T]()
	}

	if err := s.Initialize(int(h.R), int(h.D), int(h.BlockSize), int(h.Capacity), data); err != nil {
		return n, err
	}
	return n, nil
}

// PeekDimension reads just the samples blob's header from r and returns
// its recorded dimension, without touching any Store. Used by callers
// (e.g. the CLI) that need D before they can construct a Store[T].
func PeekDimension(r io.Reader) (int, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	return int(h.D), nil
}

func elementSize[T core.Element]() int64 {
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
