package graph

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hybridann/hybridann/core"
)

// header is the graph blob's fixed header: row count and fixed out-degree.
type header struct {
	R uint64
	K uint32
}

// WriteTo serializes the graph blob: header, then R rows of K int32 VIDs
// each (core.InvalidVID terminates a short row).
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	hdr := header{R: uint64(g.R()), K: uint32(g.k)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, fmt.Errorf("graph: write header: %w", err)
	}
	written := int64(binary.Size(hdr))

	row := make([]int32, g.k)
	for i := 0; i < g.R(); i++ {
		src := g.Row(core.VID(i))
		for j, v := range src {
			row[j] = int32(v)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return written, fmt.Errorf("graph: write row %d: %w", i, err)
		}
		written += int64(4 * g.k)
	}
	return written, nil
}

// ReadFrom replaces g's contents with the graph blob produced by WriteTo.
// g must already be constructed with New(k, blockSize, capacity) -- K and
// the row data are taken from the stream, and capacity is raised to the
// stream's R when smaller.
func (g *Graph) ReadFrom(r io.Reader) (int64, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, fmt.Errorf("graph: read header: %w", err)
	}
	read := int64(binary.Size(hdr))

	g.k = int(hdr.K)
	g.r.Store(0)
	empty := make([]*rowBlock, 0)
	g.blocks.Store(&empty)
	if int(hdr.R) > g.capacity {
		g.capacity = int(hdr.R)
	}

	if err := g.AddBatch(int(hdr.R)); err != nil {
		return read, fmt.Errorf("graph: allocate %d rows: %w", hdr.R, err)
	}

	row := make([]int32, hdr.K)
	for i := uint64(0); i < hdr.R; i++ {
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return read, fmt.Errorf("graph: read row %d: %w", i, err)
		}
		read += int64(4 * hdr.K)
		dst := g.Row(core.VID(i))
		for j, v := range row {
			dst[j] = core.VID(v)
		}
	}
	return read, nil
}
