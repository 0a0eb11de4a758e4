// Package shortcode converts between allocation ordinals and short codes.
//
// Codes are bijective base-62 numerals over the alphabet a-z, A-Z, 0-9.
// There is no zero symbol: 1..62 map to single characters, 63 is "aa",
// 64 is "ab", and so on. Every positive integer has exactly one code and
// every well-formed code has exactly one integer.
package shortcode

import (
	"errors"
	"fmt"
	"math"
)

// Alphabet lists the digit symbols in value order (symbol i has value i+1).
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const base = int64(len(Alphabet))

// maxLen is the longest code that can decode without overflowing int64.
const maxLen = 11

var (
	// ErrEmpty is returned when decoding an empty code.
	ErrEmpty = errors.New("shortcode: empty code")

	// ErrOverflow is returned when a code exceeds the int64 range.
	ErrOverflow = errors.New("shortcode: value overflows int64")
)

var values = func() [256]int8 {
	var v [256]int8
	for i := range v {
		v[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		v[Alphabet[i]] = int8(i)
	}
	return v
}()

// Encode returns the code for n. Panics if n < 1, since zero and negative
// ordinals have no numeral.
func Encode(n int64) string {
	if n < 1 {
		panic(fmt.Sprintf("shortcode: cannot encode %d", n))
	}

	var buf [maxLen + 1]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode returns the ordinal for code.
func Decode(code string) (int64, error) {
	if code == "" {
		return 0, ErrEmpty
	}
	if len(code) > maxLen {
		return 0, ErrOverflow
	}

	var n int64
	for i := 0; i < len(code); i++ {
		v := values[code[i]]
		if v < 0 {
			return 0, fmt.Errorf("shortcode: invalid character %q in %q", code[i], code)
		}
		if n > (math.MaxInt64-int64(v)-1)/base {
			return 0, ErrOverflow
		}
		n = n*base + int64(v) + 1
	}
	return n, nil
}

// Valid reports whether code is a well-formed short code.
func Valid(code string) bool {
	_, err := Decode(code)
	return err == nil
}
