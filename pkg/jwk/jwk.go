// Package jwk resolves health card issuer keys from JWKS documents.
package jwk

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/boogy/shc-warden/pkg/types"
)

const (
	// KeyTypeEC and CurveP256 are the only key type and curve accepted.
	KeyTypeEC = "EC"
	CurveP256 = "P-256"

	// coordinateSize is the byte length of a P-256 coordinate.
	coordinateSize = 32
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrUnsupportedKey = errors.New("unsupported key")
)

// KeyNotFoundError names the kid that was missing from a key set.
type KeyNotFoundError struct {
	KeyID string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: kid %q", e.KeyID)
}

// Is lets errors.Is(err, ErrKeyNotFound) match.
func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}

// KeySet is an ordered set of published keys.
type KeySet struct {
	keys []types.JSONWebKey
}

// NewKeySet wraps keys already decoded elsewhere, e.g. from a trust directory.
func NewKeySet(keys []types.JSONWebKey) *KeySet {
	return &KeySet{keys: keys}
}

// Parse decodes a JWKS document.
func Parse(data []byte) (*KeySet, error) {
	var jwks types.JWKS
	if err := json.Unmarshal(data, &jwks); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return NewKeySet(jwks.Keys), nil
}

// Decode reads a JWKS document from r.
func Decode(r io.Reader) (*KeySet, error) {
	var jwks types.JWKS
	if err := json.NewDecoder(r).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return NewKeySet(jwks.Keys), nil
}

// Keys returns the keys in document order.
func (s *KeySet) Keys() []types.JSONWebKey {
	return s.keys
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// Key returns the first key whose kid matches exactly.
func (s *KeySet) Key(kid string) (types.JSONWebKey, error) {
	for _, key := range s.keys {
		if key.KeyID == kid {
			return key, nil
		}
	}
	return types.JSONWebKey{}, &KeyNotFoundError{KeyID: kid}
}

// PublicKey rebuilds the ECDSA P-256 public key described by key.
func PublicKey(key types.JSONWebKey) (*ecdsa.PublicKey, error) {
	if key.KeyType != KeyTypeEC || key.Curve != CurveP256 {
		return nil, fmt.Errorf("%w: kty %q crv %q", ErrUnsupportedKey, key.KeyType, key.Curve)
	}

	x, err := decodeCoordinate("x", key.X)
	if err != nil {
		return nil, err
	}
	y, err := decodeCoordinate("y", key.Y)
	if err != nil {
		return nil, err
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     x,
		Y:     y,
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("%w: point is not on %s", ErrUnsupportedKey, CurveP256)
	}

	return pub, nil
}

// FromPublicKey describes an ECDSA P-256 public key as a JWK.
func FromPublicKey(pub *ecdsa.PublicKey, kid string) (types.JSONWebKey, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return types.JSONWebKey{}, fmt.Errorf("%w: only %s keys can be published", ErrUnsupportedKey, CurveP256)
	}

	x := make([]byte, coordinateSize)
	y := make([]byte, coordinateSize)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return types.JSONWebKey{
		KeyType:   KeyTypeEC,
		KeyID:     kid,
		Curve:     CurveP256,
		X:         base64.RawURLEncoding.EncodeToString(x),
		Y:         base64.RawURLEncoding.EncodeToString(y),
		Algorithm: "ES256",
		Use:       "sig",
	}, nil
}

func decodeCoordinate(name, value string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnsupportedKey, name, err)
	}
	if len(b) != coordinateSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrUnsupportedKey, name, len(b), coordinateSize)
	}
	return new(big.Int).SetBytes(b), nil
}
