package kdtree

import (
	"encoding/binary"
	"fmt"
	"io"
)

// treesHeader is the trees blob's fixed header: the number of trees
// followed by the total node count across all of them.
type treesHeader struct {
	NumTrees   uint32
	TotalNodes uint64
}

// WriteTo serializes the forest as the trees blob: a header, then for each
// tree its root pointer, its node count, and its node array, each node
// written as (splitDim int32, splitValue float32, left int32, right int32).
func (f *Forest[T]) WriteTo(w io.Writer) (int64, error) {
	var total uint64
	for _, t := range f.Trees {
		total += uint64(len(t.nodes))
	}

	hdr := treesHeader{NumTrees: uint32(len(f.Trees)), TotalNodes: total}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, fmt.Errorf("kdtree: write header: %w", err)
	}
	written := int64(binary.Size(hdr))

	for i, t := range f.Trees {
		if err := binary.Write(w, binary.LittleEndian, t.root); err != nil {
			return written, fmt.Errorf("kdtree: write tree %d root: %w", i, err)
		}
		written += 4

		n := uint64(len(t.nodes))
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return written, fmt.Errorf("kdtree: write tree %d length: %w", i, err)
		}
		written += 8

		for _, node := range t.nodes {
			if err := binary.Write(w, binary.LittleEndian, node); err != nil {
				return written, fmt.Errorf("kdtree: write tree %d node: %w", i, err)
			}
			written += int64(binary.Size(node))
		}
	}
	return written, nil
}

// ReadFrom replaces f's trees with the contents of the trees blob produced
// by WriteTo.
func (f *Forest[T]) ReadFrom(r io.Reader) (int64, error) {
	var hdr treesHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, fmt.Errorf("kdtree: read header: %w", err)
	}
	read := int64(binary.Size(hdr))

	trees := make([]*Tree, hdr.NumTrees)
	for i := range trees {
		var root int32
		if err := binary.Read(r, binary.LittleEndian, &root); err != nil {
			return read, fmt.Errorf("kdtree: read tree %d root: %w", i, err)
		}
		read += 4

		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return read, fmt.Errorf("kdtree: read tree %d length: %w", i, err)
		}
		read += 8

		nodes := make([]Node, n)
		for j := range nodes {
			if err := binary.Read(r, binary.LittleEndian, &nodes[j]); err != nil {
				return read, fmt.Errorf("kdtree: read tree %d node %d: %w", i, j, err)
			}
			read += int64(binary.Size(nodes[j]))
		}
		trees[i] = &Tree{nodes: nodes, root: root}
	}

	f.Trees = trees
	f.NumTrees = len(trees)
	return read, nil
}
