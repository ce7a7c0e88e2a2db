// Package distance provides the two distance kernels the engine dispatches
// on via the DistCalcMethod parameter.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance (default)
//   - MetricCosine: 1 - cosine similarity, against rows the engine
//     L2-normalizes ahead of time when cosine is active
//
// # Usage
//
//	k, err := distance.KernelFor[float32](distance.MetricL2)
//	d := k(a, b, dim)
package distance
