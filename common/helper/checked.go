package helper

import "math/bits"

// CheckedAdd 返回 a+b，溢出时 ok=false
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// CheckedSub 返回 a-b，下溢时 ok=false
func CheckedSub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// CheckedMul 返回 a*b，溢出时 ok=false
func CheckedMul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}
