package types

// JSONWebKey is a published issuer key in the RFC 7517 shape used by health
// card issuers. Only the EC members are meaningful for verification.
type JSONWebKey struct {
	KeyType   string `json:"kty"`
	KeyID     string `json:"kid"`
	Curve     string `json:"crv,omitempty"` // EC curve
	X         string `json:"x,omitempty"`   // EC x coordinate
	Y         string `json:"y,omitempty"`   // EC y coordinate
	Algorithm string `json:"alg,omitempty"`
	Use       string `json:"use,omitempty"`
}

// JWKS represents a set of JSON Web Keys retrieved from an issuer's
// .well-known/jwks.json endpoint or bundled in a trust directory.
type JWKS struct {
	Keys []JSONWebKey `json:"keys"`
}
