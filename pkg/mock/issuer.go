// Package mock issues throwaway health cards for tests and local tooling.
package mock

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/boogy/shc-warden/pkg/jwk"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is a signing identity with a single P-256 key.
type Issuer struct {
	URL   string
	KeyID string
	Key   *ecdsa.PrivateKey
}

// NewIssuer generates a fresh P-256 key for url.
func NewIssuer(url, kid string) (*Issuer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &Issuer{URL: url, KeyID: kid, Key: key}, nil
}

// JWK returns the issuer's public key as published in a key set.
func (i *Issuer) JWK() types.JSONWebKey {
	key, err := jwk.FromPublicKey(&i.Key.PublicKey, i.KeyID)
	if err != nil {
		// P-256 keys generated by NewIssuer always convert.
		panic(err)
	}
	return key
}

// JWKS returns the issuer's key set document.
func (i *Issuer) JWKS() types.JWKS {
	return types.JWKS{Keys: []types.JSONWebKey{i.JWK()}}
}

// Info returns a trust directory entry for the issuer.
func (i *Issuer) Info(name string) types.IssuerInfo {
	return types.IssuerInfo{
		Issuer: types.TrustedIssuer{Iss: i.URL, Name: name},
		Keys:   []types.JSONWebKey{i.JWK()},
	}
}

// Payload builds a minimal payload for the issuer.
func (i *Issuer) Payload(nbf float64) types.HealthCardPayload {
	return types.HealthCardPayload{
		Issuer:    i.URL,
		NotBefore: &nbf,
		VC: types.VerifiableClaim{
			Type:              []string{"https://smarthealth.cards#health-card"},
			CredentialSubject: json.RawMessage(`{"fhirVersion":"4.0.1"}`),
		},
	}
}

// Sign produces a compact, DEF-compressed health card JWS.
func (i *Issuer) Sign(payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	return SignRaw(i.Key, jws.Header{
		Algorithm:   jws.AlgorithmES256,
		KeyID:       i.KeyID,
		Compression: jws.CompressionDeflate,
	}, body)
}

// SignRaw signs body under header, compressing it first when the header
// asks for DEF.
func SignRaw(key *ecdsa.PrivateKey, header jws.Header, body []byte) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshaling header: %w", err)
	}

	if header.Compression == jws.CompressionDeflate {
		if body, err = jws.Deflate(body); err != nil {
			return "", fmt.Errorf("compressing payload: %w", err)
		}
	}

	signingInput := jws.EncodeSegment(headerJSON) + "." + jws.EncodeSegment(body)
	sig, err := jwt.SigningMethodES256.Sign(signingInput, key)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}

	return signingInput + "." + jws.EncodeSegment(sig), nil
}
