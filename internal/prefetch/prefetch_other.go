//go:build !amd64

package prefetch

// prefetch is a no-op on platforms without a cheap early-touch hint.
func prefetch[T any](row []T) {}
