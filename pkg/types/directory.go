package types

// TrustedIssuer is the issuer record of a trust directory entry.
type TrustedIssuer struct {
	Iss          string `json:"iss"`
	CanonicalIss string `json:"canonical_iss,omitempty"`
	Name         string `json:"name"`
	Website      string `json:"website,omitempty"`

	// IsTrusted is set by the trust store, never read from the document.
	IsTrusted bool `json:"-"`
}

// IssuerInfo is the trust store's unit of lookup: an issuer record plus the
// keys the directory publishes for it.
type IssuerInfo struct {
	Issuer        TrustedIssuer `json:"issuer"`
	Keys          []JSONWebKey  `json:"keys,omitempty"`
	LastRetrieved string        `json:"lastRetrieved,omitempty"`
}

// DirectorySnapshot is a bundled trust directory document.
type DirectorySnapshot struct {
	Directory  string       `json:"directory,omitempty"`
	Time       string       `json:"time,omitempty"`
	IssuerInfo []IssuerInfo `json:"issuerInfo"`
}
