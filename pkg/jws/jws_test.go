package jws_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCard(t *testing.T) (*mock.Issuer, string) {
	t.Helper()

	issuer, err := mock.NewIssuer("https://example.org/issuer", "3Kfdg")
	require.NoError(t, err)

	compact, err := issuer.Sign(issuer.Payload(1700000000.5))
	require.NoError(t, err)
	return issuer, compact
}

func TestParseCompact(t *testing.T) {
	_, compact := newCard(t)

	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)

	header := token.Header()
	assert.Equal(t, jws.AlgorithmES256, header.Algorithm)
	assert.Equal(t, "3Kfdg", header.KeyID)
	assert.Equal(t, jws.CompressionDeflate, header.Compression)

	segments := strings.Split(compact, ".")
	assert.Equal(t, segments[0], token.HeaderText())
	assert.Equal(t, segments[1], token.PayloadText())
	assert.Equal(t, segments[2], token.Signature())
	assert.Equal(t, segments[0]+"."+segments[1], token.SigningInput())
	assert.Equal(t, compact, token.Compact())

	payload, err := token.HealthCard()
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/issuer", payload.Issuer)
	assert.Equal(t, []string{"https://smarthealth.cards#health-card"}, payload.VC.Type)

	issued := payload.IssueDate()
	require.NotNil(t, issued)
	assert.Equal(t, int64(1700000000), issued.Unix())
	assert.Equal(t, 500, issued.Nanosecond()/1e6)
	assert.Nil(t, payload.ExpiresDate())
}

func TestParseCompact_Uncompressed(t *testing.T) {
	issuer, err := mock.NewIssuer("https://example.org/issuer", "key-1")
	require.NoError(t, err)

	compact, err := mock.SignRaw(issuer.Key, jws.Header{Algorithm: jws.AlgorithmES256, KeyID: "key-1"}, []byte(`{"iss":"https://example.org/issuer"}`))
	require.NoError(t, err)

	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)
	assert.Equal(t, jws.CompressionNone, token.Header().Compression)
	assert.JSONEq(t, `{"iss":"https://example.org/issuer"}`, string(token.Payload()))
}

func TestParse_RoundTrip(t *testing.T) {
	_, compact := newCard(t)

	first, err := jws.Parse(jws.Compact(compact))
	require.NoError(t, err)

	numeric, err := first.Numeric()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(numeric, jws.NumericPrefix))

	second, err := jws.Parse(jws.Numeric(numeric))
	require.NoError(t, err)

	assert.Equal(t, first.Compact(), second.Compact())
	assert.Equal(t, first.Header(), second.Header())
	assert.Equal(t, first.Payload(), second.Payload())
}

func TestParse_MalformedToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		segments int
	}{
		{"One segment", "abc", 1},
		{"Two segments", "abc.def", 2},
		{"Four segments", "a.b.c.d", 4},
		{"Empty segments kept", "..", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jws.ParseCompact(tt.input)
			require.Error(t, err)

			if tt.segments == 3 {
				assert.False(t, errors.Is(err, jws.ErrMalformedToken))
				return
			}

			assert.ErrorIs(t, err, jws.ErrMalformedToken)
			var malformed *jws.MalformedTokenError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.segments, malformed.Segments)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	header := func(v string) string { return jws.EncodeSegment([]byte(v)) }
	payload := jws.EncodeSegment([]byte(`{"iss":"https://example.org/issuer"}`))

	tests := []struct {
		name   string
		input  jws.Input
		expect error
	}{
		{"Empty compact", jws.Compact(""), jws.ErrInvalidData},
		{"Empty numeric", jws.Numeric(""), jws.ErrInvalidEncoding},
		{"Numeric without prefix", jws.Numeric("5676"), jws.ErrInvalidEncoding},
		{"Header not base64url", jws.Compact("a." + payload + ".sig"), jws.ErrMalformedEncoding},
		{"Header not JSON", jws.Compact(header("nope") + "." + payload + ".sig"), jws.ErrInvalidData},
		{"Unsupported algorithm", jws.Compact(header(`{"alg":"RS256","kid":"k"}`) + "." + payload + ".sig"), jws.ErrUnsupportedAlgorithm},
		{"Unsupported compression", jws.Compact(header(`{"alg":"ES256","kid":"k","zip":"GZIP"}`) + "." + payload + ".sig"), jws.ErrUnsupportedCompression},
		{"Missing kid", jws.Compact(header(`{"alg":"ES256"}`) + "." + payload + ".sig"), jws.ErrInvalidData},
		{"Payload not base64url", jws.Compact(header(`{"alg":"ES256","kid":"k"}`) + ".a.sig"), jws.ErrMalformedEncoding},
		{"Payload not deflated", jws.Compact(header(`{"alg":"ES256","kid":"k","zip":"DEF"}`) + "." + jws.EncodeSegment([]byte{0xff, 0xff, 0xff}) + ".sig"), jws.ErrDecompressionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jws.Parse(tt.input)
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, jws.Numeric("shc:/5676"), jws.Detect("  shc:/5676\n"))
	assert.Equal(t, jws.Compact("a.b.c"), jws.Detect("a.b.c "))
	assert.Equal(t, "numeric", jws.KindNumeric.String())
	assert.Equal(t, "compact", jws.KindCompact.String())
}

func TestHealthCard_MissingIssuer(t *testing.T) {
	issuer, err := mock.NewIssuer("https://example.org/issuer", "key-1")
	require.NoError(t, err)

	compact, err := issuer.Sign(map[string]any{"nbf": 1700000000})
	require.NoError(t, err)

	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)

	_, err = token.HealthCard()
	assert.ErrorIs(t, err, jws.ErrInvalidData)
}

func TestDeflateRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat(`{"resourceType":"Immunization"}`, 50))

	compressed, err := jws.Deflate(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	inflated, err := jws.Inflate(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, inflated)
}

func TestParseCardSet(t *testing.T) {
	issuer, first := newCard(t)
	second, err := issuer.Sign(issuer.Payload(1700000100))
	require.NoError(t, err)

	doc, err := json.Marshal(jws.CardSet{VerifiableCredential: []string{first, second}})
	require.NoError(t, err)

	tokens, err := jws.ParseCardSet(doc)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, first, tokens[0].Compact())
	assert.Equal(t, second, tokens[1].Compact())

	tokens, err = jws.ParseCardSet([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, tokens)

	_, err = jws.ParseCardSet([]byte(`{"verifiableCredential":["a.b"]}`))
	assert.ErrorIs(t, err, jws.ErrMalformedToken)

	_, err = jws.ParseCardSet([]byte(`[`))
	assert.ErrorIs(t, err, jws.ErrInvalidData)
}
