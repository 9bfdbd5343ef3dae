// Package jws parses and serializes health card JSON Web Signatures in their
// compact and shc:/ numeric forms.
package jws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boogy/shc-warden/pkg/types"
)

// InputKind tells Parse how to read an Input.
type InputKind int

const (
	KindCompact InputKind = iota
	KindNumeric
)

func (k InputKind) String() string {
	switch k {
	case KindCompact:
		return "compact"
	case KindNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// Input is a serialized health card tagged with its encoding.
type Input struct {
	Kind  InputKind
	Value string
}

// Compact wraps a compact header.payload.signature string.
func Compact(s string) Input { return Input{Kind: KindCompact, Value: s} }

// Numeric wraps a shc:/ numeric string.
func Numeric(s string) Input { return Input{Kind: KindNumeric, Value: s} }

// Detect trims surrounding whitespace and picks the encoding by prefix.
func Detect(s string) Input {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, NumericPrefix) {
		return Numeric(s)
	}
	return Compact(s)
}

// Token is a parsed health card JWS. It keeps the original segment text so the
// signing input and the compact serialization are reproduced byte for byte.
type Token struct {
	header      string
	payloadText string
	signature   string

	parsedHeader Header
	payload      []byte
}

// Parse reads a health card from either encoding.
func Parse(in Input) (*Token, error) {
	switch in.Kind {
	case KindCompact:
		return ParseCompact(in.Value)
	case KindNumeric:
		compact, err := DecodeNumeric(in.Value)
		if err != nil {
			return nil, err
		}
		return ParseCompact(compact)
	default:
		return nil, fmt.Errorf("%w: unknown input kind %s", ErrInvalidData, in.Kind)
	}
}

// ParseCompact reads a compact header.payload.signature string.
func ParseCompact(compact string) (*Token, error) {
	if compact == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidData)
	}

	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, &MalformedTokenError{Segments: len(parts)}
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		return nil, err
	}

	payload, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	if header.Compression == CompressionDeflate {
		if payload, err = Inflate(payload); err != nil {
			return nil, err
		}
	}

	return &Token{
		header:       parts[0],
		payloadText:  parts[1],
		signature:    parts[2],
		parsedHeader: header,
		payload:      payload,
	}, nil
}

// Header returns the decoded protected header.
func (t *Token) Header() Header { return t.parsedHeader }

// HeaderText returns the header segment as it appeared on the wire.
func (t *Token) HeaderText() string { return t.header }

// PayloadText returns the payload segment as it appeared on the wire.
func (t *Token) PayloadText() string { return t.payloadText }

// Signature returns the base64url signature segment, not yet decoded.
func (t *Token) Signature() string { return t.signature }

// Payload returns a copy of the decompressed payload bytes.
func (t *Token) Payload() []byte { return bytes.Clone(t.payload) }

// SigningInput is the exact message the issuer signed.
func (t *Token) SigningInput() string {
	return t.header + "." + t.payloadText
}

// Compact reassembles the original segments.
func (t *Token) Compact() string {
	return t.header + "." + t.payloadText + "." + t.signature
}

// Numeric returns the shc:/ numeric form.
func (t *Token) Numeric() (string, error) {
	return EncodeNumeric(t.Compact())
}

// HealthCard decodes the payload JSON.
func (t *Token) HealthCard() (*types.HealthCardPayload, error) {
	var p types.HealthCardPayload
	if err := json.Unmarshal(t.payload, &p); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling payload: %v", ErrInvalidData, err)
	}
	if p.Issuer == "" {
		return nil, fmt.Errorf("%w: payload has no iss", ErrInvalidData)
	}
	return &p, nil
}
