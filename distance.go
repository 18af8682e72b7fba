package recovery

import "math/bits"

// Distance returns the Hamming distance between two hashes: the number
// of differing bits, computed as XOR followed by popcount. Symmetric,
// and zero exactly when the hashes are bit-identical.
//
// This is the hot primitive of the pairwise comparison — it is called
// O(n²) times per grouping pass and must stay allocation-free.
func Distance(a, b Hash64) int {
	return bits.OnesCount64(uint64(a ^ b))
}
