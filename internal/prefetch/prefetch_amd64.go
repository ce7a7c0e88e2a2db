//go:build amd64

package prefetch

// prefetch touches the first element to pull the backing cache line into
// L1 ahead of the real read a few instructions later. This is not a real
// PREFETCHT0 (Go has no portable way to emit one outside hand-written
// assembly, which the retrieval pack did not carry for this repo), just a
// best-effort early touch; see DESIGN.md.
func prefetch[T any](row []T) {
	if len(row) == 0 {
		return
	}
	_ = row[0]
}
