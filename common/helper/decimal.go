package helper

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// 1 SOL = 1e9 lamports
const LamportDecimals = 9

var (
	lamportsPerSOL = decimal.New(1, LamportDecimals)
	maxU64         = decimal.RequireFromString("18446744073709551615")

	ErrAmountFormat    = errors.New("invalid amount format")
	ErrAmountNegative  = errors.New("amount must not be negative")
	ErrAmountPrecision = errors.New("amount has more than 9 decimal places")
	ErrAmountRange     = errors.New("amount out of range")
)

// ParseSignedSOL 解析带符号的 SOL 金额，返回绝对值与是否为负
func ParseSignedSOL(s string) (uint64, bool, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	v, err := ParseSOL(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+"))
	return v, neg, err
}

// ParseSOL 将 SOL 十进制字符串（如 "0.05"）转换为 lamports
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrAmountFormat
	}
	if d.IsNegative() {
		return 0, ErrAmountNegative
	}
	lamports := d.Mul(lamportsPerSOL)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	if lamports.GreaterThan(maxU64) {
		return 0, ErrAmountRange
	}
	return lamports.BigInt().Uint64(), nil
}

// FormatSOL 将 lamports 格式化为 SOL 字符串，去掉多余的尾随 0
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -LamportDecimals).String()
}
