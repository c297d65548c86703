/*
Package bitint provides the power-of-two helpers used to validate and
suggest frame sizes for the spectral transform. The radix-2 FFT only
accepts power-of-two lengths, so every configured frame size passes
through IsPowerOfTwo before a pipeline is allowed to start.

All functions are allocation free and constant time.

Usage:

	if !bitint.IsPowerOfTwo(frameSize) {
		lo, hi := bitint.Nearest(frameSize)
		// suggest lo or hi
	}

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before measuring the bit length so that an
exact power of two maps onto itself:

	input 8:  8-1 = 7 (0111), bits.Len(7) = 3, 1<<3 = 8
	input 9:  9-1 = 8 (1000), bits.Len(8) = 4, 1<<4 = 16

PrevPowerOfTwo keeps only the highest set bit.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// Zero and negative sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size.
// Zero and negative sizes return 1.
func PrevPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// Nearest returns the powers of two that bracket size. For an exact
// power of two both values equal size.
func Nearest(size int) (lo, hi int) {
	return PrevPowerOfTwo(size), NextPowerOfTwo(size)
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// A power of two has a single bit set, so n&(n-1) clears it to zero:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of two n, or -1 when n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
