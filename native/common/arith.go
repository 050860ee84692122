package common

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrOverflow
	}
	return sum.Uint64(), nil
}

// Sub returns a-b or ErrUnderflow when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// MulDivFloor returns floor(a*b/d). The intermediate product is computed at
// 256-bit width so only the final result can overflow.
func MulDivFloor(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	q, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow || !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// MulDivCeil returns ceil(a*b/d).
func MulDivCeil(a, b, d uint64) (uint64, error) {
	q, err := MulDivFloor(a, b, d)
	if err != nil {
		return 0, err
	}
	rem := new(uint256.Int).MulMod(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if rem.IsZero() {
		return q, nil
	}
	return Add(q, 1)
}

// MulCmp compares a*b with c*d without overflowing.
func MulCmp(a, b, c, d uint64) int {
	left := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	right := new(uint256.Int).Mul(uint256.NewInt(c), uint256.NewInt(d))
	return left.Cmp(right)
}
