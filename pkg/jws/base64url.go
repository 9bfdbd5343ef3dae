package jws

import (
	"encoding/base64"
	"fmt"
)

// EncodeSegment encodes bytes as unpadded base64url.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment decodes a base64url segment. Unpadded input is expected, but
// a correctly padded segment is accepted as well.
func DecodeSegment(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		var perr error
		if b, perr = base64.URLEncoding.DecodeString(s); perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
	}
	return b, nil
}
