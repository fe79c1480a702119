package safe

import (
	"math"
)

// Uint64ToInt64 safely converts an uint64 value to int64, clamping to math.MaxInt64 if overflow
// would occur.
// Returns the converted value and a boolean indicating whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}

// AddUint64 adds two offsets, reporting whether the sum wrapped around.
// Offset arithmetic on hostile images must never wrap silently.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// MulUint64 multiplies a count by an element size, reporting whether the
// product wrapped around.
func MulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	prod := a * b
	return prod, prod/a != b
}
