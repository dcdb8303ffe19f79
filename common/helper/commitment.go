package helper

import (
	"encoding/hex"
	"errors"
	"strings"
)

var ErrCommitmentFormat = errors.New("commitment must be 64 hex characters")

// ParseCommitment 解析 32 字节十六进制承诺值（允许 0x 前缀）
func ParseCommitment(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return out, ErrCommitmentFormat
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, ErrCommitmentFormat
	}
	return out, nil
}

// FormatCommitment 输出小写十六进制
func FormatCommitment(c [32]byte) string { return hex.EncodeToString(c[:]) }

// IsZero32 判断 32 字节值是否全零
func IsZero32(v [32]byte) bool { return v == [32]byte{} }
