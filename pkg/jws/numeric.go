package jws

import (
	"fmt"
	"strings"
)

const (
	// NumericPrefix starts every health card QR payload.
	NumericPrefix = "shc:/"

	// numericOffset is the lowest code point of a compact JWS ('-').
	numericOffset = 45

	// numericMax is the highest encodable value ('z' - '-').
	numericMax = 77
)

// NumericDigits converts a compact JWS into its digit-pair form without the
// shc:/ prefix.
func NumericDigits(compact string) (string, error) {
	var b strings.Builder
	b.Grow(2 * len(compact))

	for i := 0; i < len(compact); i++ {
		c := compact[i]
		if c < numericOffset || c > numericOffset+numericMax {
			return "", fmt.Errorf("%w: character %q at offset %d cannot be encoded", ErrInvalidEncoding, c, i)
		}
		v := c - numericOffset
		b.WriteByte('0' + v/10)
		b.WriteByte('0' + v%10)
	}

	return b.String(), nil
}

// EncodeNumeric converts a compact JWS into the shc:/ numeric QR form.
func EncodeNumeric(compact string) (string, error) {
	digits, err := NumericDigits(compact)
	if err != nil {
		return "", err
	}
	return NumericPrefix + digits, nil
}

// DecodeNumeric converts a shc:/ numeric string back to the compact JWS.
func DecodeNumeric(numeric string) (string, error) {
	if numeric == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidEncoding)
	}
	if !strings.HasPrefix(numeric, NumericPrefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidEncoding, NumericPrefix)
	}

	digits := numeric[len(NumericPrefix):]
	if len(digits)%2 != 0 {
		return "", fmt.Errorf("%w: odd number of digits (%d)", ErrInvalidEncoding, len(digits))
	}

	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		hi, lo := digits[i], digits[i+1]
		if !isDigit(hi) || !isDigit(lo) {
			return "", fmt.Errorf("%w: chunk %q at offset %d is not a decimal number", ErrInvalidEncoding, digits[i:i+2], i)
		}
		v := (hi-'0')*10 + (lo - '0')
		if v > numericMax {
			return "", fmt.Errorf("%w: chunk %q at offset %d is out of range", ErrInvalidEncoding, digits[i:i+2], i)
		}
		out = append(out, v+numericOffset)
	}

	return string(out), nil
}

// NumericCharacterCount is the number of JWS characters a numeric string
// carries.
func NumericCharacterCount(numeric string) int {
	return len(strings.TrimPrefix(numeric, NumericPrefix)) / 2
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
