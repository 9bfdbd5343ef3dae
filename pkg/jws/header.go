package jws

import (
	"encoding/json"
	"fmt"
)

// Algorithm is a JWS "alg" value.
type Algorithm string

// Compression is a JWS "zip" value.
type Compression string

const (
	// AlgorithmES256 is ECDSA over P-256 with SHA-256, the only algorithm
	// health cards are signed with.
	AlgorithmES256 Algorithm = "ES256"

	CompressionNone    Compression = ""
	CompressionDeflate Compression = "DEF"
)

// Header is the decoded protected header of a health card JWS.
type Header struct {
	Algorithm   Algorithm   `json:"alg"`
	KeyID       string      `json:"kid"`
	Type        string      `json:"typ,omitempty"`
	Compression Compression `json:"zip,omitempty"`
}

func decodeHeader(segment string) (Header, error) {
	var h Header

	raw, err := DecodeSegment(segment)
	if err != nil {
		return h, fmt.Errorf("decoding header: %w", err)
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("%w: unmarshaling header: %v", ErrInvalidData, err)
	}

	if h.Algorithm != AlgorithmES256 {
		return h, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, h.Algorithm)
	}
	switch h.Compression {
	case CompressionNone, CompressionDeflate:
	default:
		return h, fmt.Errorf("%w: %q", ErrUnsupportedCompression, h.Compression)
	}
	if h.KeyID == "" {
		return h, fmt.Errorf("%w: header has no kid", ErrInvalidData)
	}

	return h, nil
}
