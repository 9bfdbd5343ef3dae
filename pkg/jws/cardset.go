package jws

import (
	"encoding/json"
	"fmt"
)

// CardSet is the body of a .smart-health-card file.
type CardSet struct {
	VerifiableCredential []string `json:"verifiableCredential"`
}

// ParseCardSet parses every compact JWS in a .smart-health-card document. A
// document without the verifiableCredential member yields no tokens.
func ParseCardSet(data []byte) ([]*Token, error) {
	var set CardSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling card set: %v", ErrInvalidData, err)
	}

	tokens := make([]*Token, 0, len(set.VerifiableCredential))
	for i, compact := range set.VerifiableCredential {
		token, err := ParseCompact(compact)
		if err != nil {
			return nil, fmt.Errorf("verifiableCredential[%d]: %w", i, err)
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}
