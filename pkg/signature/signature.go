// Package signature checks health card ES256 signatures.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/boogy/shc-warden/pkg/jwk"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

// Verify reports whether token was signed by the private half of key.
// A well-formed signature that does not match yields (false, nil); errors are
// reserved for inputs that make verification impossible.
func Verify(token *jws.Token, key types.JSONWebKey) (bool, error) {
	pub, err := jwk.PublicKey(key)
	if err != nil {
		return false, err
	}
	return VerifyWithPublicKey(token, pub)
}

// VerifyWithPublicKey is Verify for an already reconstructed key.
func VerifyWithPublicKey(token *jws.Token, pub *ecdsa.PublicKey) (bool, error) {
	if token.Header().Algorithm != jws.AlgorithmES256 {
		return false, fmt.Errorf("%w: %q", jws.ErrUnsupportedAlgorithm, token.Header().Algorithm)
	}

	sig, err := jws.DecodeSegment(token.Signature())
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}

	err = jwt.SigningMethodES256.Verify(token.SigningInput(), sig, pub)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jwt.ErrECDSAVerification):
		return false, nil
	case errors.Is(err, jwt.ErrInvalidKeyType):
		return false, fmt.Errorf("%w: %v", jwk.ErrUnsupportedKey, err)
	default:
		return false, fmt.Errorf("signature verification: %w", err)
	}
}
