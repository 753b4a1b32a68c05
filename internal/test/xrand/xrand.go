// Package xrand generates random test data sourced from crypto/rand (so it
// differs on every run), grounded in the teacher's internal/test/xrand.
package xrand

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Bytes generates n random bytes.
func Bytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Reader.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate rand bytes: %v", err))
	}
	return b
}

// String generates a random valid-UTF-8 string of length n.
func String(n int) string {
	s := strings.ToValidUTF8(string(Bytes(n)), "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	switch {
	case len(s) > n:
		return s[:n]
	case len(s) < n:
		return s + strings.Repeat("=", n-len(s))
	default:
		return s
	}
}

// Bool returns a randomly generated boolean.
func Bool() bool {
	return Int(2) == 1
}

// Int returns a randomly generated integer in [0, max).
func Int(max int) int {
	x, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("failed to get random int: %v", err))
	}
	return int(x.Int64())
}
