package helper

import (
	"math"
	"testing"
)

func TestCheckedArithmetic(t *testing.T) {
	if v, ok := CheckedAdd(1, 2); !ok || v != 3 {
		t.Fatalf("add: %d %v", v, ok)
	}
	if _, ok := CheckedAdd(math.MaxUint64, 1); ok {
		t.Fatalf("add should overflow")
	}
	if v, ok := CheckedSub(5, 5); !ok || v != 0 {
		t.Fatalf("sub: %d %v", v, ok)
	}
	if _, ok := CheckedSub(4, 5); ok {
		t.Fatalf("sub should underflow")
	}
	if v, ok := CheckedMul(10_000_000_000, 6); !ok || v != 60_000_000_000 {
		t.Fatalf("mul: %d %v", v, ok)
	}
	if _, ok := CheckedMul(math.MaxUint64/2+1, 2); ok {
		t.Fatalf("mul should overflow")
	}
}

func TestParseSOL(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		err  error
	}{
		{"0.05", 50_000_000, nil},
		{"10", 10_000_000_000, nil},
		{" 1.5 ", 1_500_000_000, nil},
		{"0.000000001", 1, nil},
		{"0.0000000001", 0, ErrAmountPrecision},
		{"-1", 0, ErrAmountNegative},
		{"abc", 0, ErrAmountFormat},
		{"18446744074", 0, ErrAmountRange},
	}
	for _, c := range cases {
		got, err := ParseSOL(c.in)
		if err != c.err {
			t.Errorf("ParseSOL(%q) err = %v, want %v", c.in, err, c.err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSOL(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatSOL(t *testing.T) {
	if s := FormatSOL(50_000_000); s != "0.05" {
		t.Fatalf("got %s", s)
	}
	if s := FormatSOL(0); s != "0" {
		t.Fatalf("got %s", s)
	}
	if s := FormatSOL(12_000_000_000); s != "12" {
		t.Fatalf("got %s", s)
	}
}

func TestParseCommitment(t *testing.T) {
	hexStr := "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	c, err := ParseCommitment(hexStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c[0] != 1 || c[31] != 0x20 {
		t.Fatalf("unexpected bytes: %x", c)
	}
	if FormatCommitment(c) != hexStr[2:] {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParseCommitment("abcd"); err != ErrCommitmentFormat {
		t.Fatalf("short input: %v", err)
	}
	if !IsZero32([32]byte{}) || IsZero32(c) {
		t.Fatalf("IsZero32 mismatch")
	}
}
