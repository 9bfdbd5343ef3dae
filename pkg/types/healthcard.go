package types

import (
	"encoding/json"
	"math"
	"time"
)

// HealthCardPayload is the decompressed JWS payload of a health card.
type HealthCardPayload struct {
	Issuer    string          `json:"iss"`
	NotBefore *float64        `json:"nbf,omitempty"`
	Expiry    *float64        `json:"exp,omitempty"`
	VC        VerifiableClaim `json:"vc"`
}

// VerifiableClaim carries the credential types and the clinical subject. The
// subject is kept opaque; rendering FHIR bundles is left to the caller.
type VerifiableClaim struct {
	Type              []string        `json:"type,omitempty"`
	CredentialSubject json.RawMessage `json:"credentialSubject,omitempty"`
}

// IssueDate returns nbf as a time, or nil when absent.
func (p *HealthCardPayload) IssueDate() *time.Time {
	return epochTime(p.NotBefore)
}

// ExpiresDate returns exp as a time, or nil when absent.
func (p *HealthCardPayload) ExpiresDate() *time.Time {
	return epochTime(p.Expiry)
}

func epochTime(v *float64) *time.Time {
	if v == nil {
		return nil
	}
	sec, frac := math.Modf(*v)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	return &t
}
