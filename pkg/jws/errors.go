package jws

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidData            = errors.New("invalid token data")
	ErrMalformedToken         = errors.New("malformed token")
	ErrInvalidEncoding        = errors.New("invalid numeric encoding")
	ErrMalformedEncoding      = errors.New("malformed base64url encoding")
	ErrUnsupportedAlgorithm   = errors.New("unsupported signature algorithm")
	ErrUnsupportedCompression = errors.New("unsupported compression algorithm")
	ErrDecompressionFailed    = errors.New("payload decompression failed")
)

// MalformedTokenError reports a compact serialization that does not have
// exactly three segments.
type MalformedTokenError struct {
	Segments int
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed token: expected 3 segments, got %d", e.Segments)
}

// Is lets errors.Is(err, ErrMalformedToken) match.
func (e *MalformedTokenError) Is(target error) bool {
	return target == ErrMalformedToken
}
