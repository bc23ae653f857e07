// Package observation implements the memory-mapped, zero-copy channel
// pipeline that presents historical multivariate market data as aligned
// observation tensors: binary record files, key-indexed random access, and
// multi-channel right-alignment into the canonical [C,T,D] sample shape.
package observation

// Record is one decoded row: a monotonically increasing key (typically a
// close-time in Unix milliseconds) and its feature vector, in the fixed
// order the channel's binary layout stores them.
type Record struct {
	Key      int64
	Features []float64
}

// recordStride returns the byte width of one record: an 8-byte key
// followed by featureWidth 8-byte float64 values.
func recordStride(featureWidth int) int {
	return 8 + 8*featureWidth
}
