package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/jwk"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/mock"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuerServer struct {
	issuer *mock.Issuer
	server *httptest.Server
	hits   atomic.Int32
	delay  time.Duration
	status int
	body   string
}

// newIssuerServer starts an httptest server publishing a fresh issuer's key
// set at /.well-known/jwks.json. The issuer's URL is the server URL.
func newIssuerServer(t *testing.T, kid string) *issuerServer {
	t.Helper()

	issuer, err := mock.NewIssuer("", kid)
	require.NoError(t, err)

	s := &issuerServer{issuer: issuer, status: http.StatusOK}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		if s.body != "" {
			_, _ = w.Write([]byte(s.body))
			return
		}
		_ = json.NewEncoder(w).Encode(s.issuer.JWKS())
	}))
	t.Cleanup(s.server.Close)

	issuer.URL = s.server.URL
	return s
}

func (s *issuerServer) card(t *testing.T) *jws.Token {
	t.Helper()

	compact, err := s.issuer.Sign(s.issuer.Payload(1700000000))
	require.NoError(t, err)

	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)
	return token
}

func newTestVerifier(store *trust.Store, timeout time.Duration) *Verifier {
	return &Verifier{Store: store, Client: http.DefaultClient, Timeout: timeout}
}

// tamper flips one byte of the decoded signature.
func tamper(t *testing.T, token *jws.Token) *jws.Token {
	t.Helper()

	sig, err := jws.DecodeSegment(token.Signature())
	require.NoError(t, err)
	sig[0] ^= 0xff

	tampered, err := jws.ParseCompact(token.HeaderText() + "." + token.PayloadText() + "." + jws.EncodeSegment(sig))
	require.NoError(t, err)
	return tampered
}

func TestVerify_RemotePath(t *testing.T) {
	srv := newIssuerServer(t, "3Kfdg")
	store := trust.NewStore(nil)
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), srv.card(t))
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, PathRemote, result.Path)
	assert.Equal(t, srv.server.URL, result.Issuer)
	assert.Equal(t, "3Kfdg", result.KeyID)
	assert.False(t, result.Trusted)
	assert.Equal(t, int32(1), srv.hits.Load())

	valid, found := store.CachedResult(srv.server.URL)
	assert.True(t, found)
	assert.True(t, valid)

	// A second card from the same issuer is answered from the cache.
	result, err = v.Verify(context.Background(), srv.card(t))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, PathCached, result.Path)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestVerify_LocalPath(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	store := trust.NewStore(nil)
	store.LoadDirectory(&types.DirectorySnapshot{
		IssuerInfo: []types.IssuerInfo{srv.issuer.Info("Example Health")},
	})
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), srv.card(t))
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, PathLocal, result.Path)
	assert.True(t, result.Trusted)
	assert.Equal(t, int32(0), srv.hits.Load(), "directory keys should not require a fetch")

	valid, found := store.CachedResult(srv.server.URL)
	assert.True(t, found)
	assert.True(t, valid)
}

func TestVerify_KnownIssuerMissingKeyFallsBackToRemote(t *testing.T) {
	srv := newIssuerServer(t, "rotated")
	store := trust.NewStore(nil)
	info := srv.issuer.Info("Example Health")
	info.Keys[0].KeyID = "retired"
	store.LoadDirectory(&types.DirectorySnapshot{IssuerInfo: []types.IssuerInfo{info}})
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), srv.card(t))
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, PathRemote, result.Path)
	assert.True(t, result.Trusted)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestVerify_CachedVerdictTakesPrecedence(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	store := trust.NewStore(nil)
	store.LoadDirectory(&types.DirectorySnapshot{
		IssuerInfo: []types.IssuerInfo{srv.issuer.Info("Example Health")},
	})
	store.RecordResult(srv.server.URL, false)
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), srv.card(t))
	require.NoError(t, err)

	assert.False(t, result.Valid, "the cached verdict wins over a verifiable signature")
	assert.Equal(t, PathCached, result.Path)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestVerify_TamperedSignature(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	store := trust.NewStore(nil)
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), tamper(t, srv.card(t)))
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, PathRemote, result.Path)

	valid, found := store.CachedResult(srv.server.URL)
	assert.True(t, found)
	assert.False(t, valid)
}

func TestVerify_FetchFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(s *issuerServer)
		expect error
	}{
		{
			name:   "Timeout",
			setup:  func(s *issuerServer) { s.delay = 2 * time.Second },
			expect: ErrKeyFetchFailed,
		},
		{
			name:   "Non-200 status",
			setup:  func(s *issuerServer) { s.status = http.StatusInternalServerError },
			expect: ErrKeyFetchFailed,
		},
		{
			name:   "Unparsable key set",
			setup:  func(s *issuerServer) { s.body = "{not json" },
			expect: ErrKeyFetchFailed,
		},
		{
			name:   "Key absent from key set",
			setup:  func(s *issuerServer) { s.body = `{"keys":[{"kty":"EC","kid":"other","crv":"P-256"}]}` },
			expect: jwk.ErrKeyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newIssuerServer(t, "key-1")
			tt.setup(srv)
			store := trust.NewStore(nil)
			v := newTestVerifier(store, 100*time.Millisecond)

			result, err := v.Verify(context.Background(), srv.card(t))
			assert.ErrorIs(t, err, tt.expect)
			assert.Nil(t, result)

			_, found := store.CachedResult(srv.server.URL)
			assert.False(t, found, "failures must not populate the cache")
		})
	}
}

func TestVerify_CancelledContext(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	store := trust.NewStore(nil)
	v := newTestVerifier(store, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Verify(ctx, srv.card(t))
	assert.ErrorIs(t, err, ErrKeyFetchFailed)

	_, found := store.CachedResult(srv.server.URL)
	assert.False(t, found)
}

func TestVerify_UnparsableIssuer(t *testing.T) {
	issuer, err := mock.NewIssuer("issuer.example.org", "key-1")
	require.NoError(t, err)

	compact, err := issuer.Sign(issuer.Payload(1700000000))
	require.NoError(t, err)
	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)

	v := newTestVerifier(trust.NewStore(nil), time.Second)
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrIssuerURLUnparsable)
}

func TestVerifyCard(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	v := newTestVerifier(trust.NewStore(nil), time.Second)

	numeric, err := srv.card(t).Numeric()
	require.NoError(t, err)

	token, result, err := v.VerifyCard(context.Background(), "  "+numeric+"\n")
	require.NoError(t, err)
	assert.Equal(t, "key-1", token.Header().KeyID)
	assert.True(t, result.Valid)

	_, _, err = v.VerifyCard(context.Background(), "a.b")
	assert.ErrorIs(t, err, jws.ErrMalformedToken)
}

func TestJWKSURL(t *testing.T) {
	tests := []struct {
		name        string
		iss         string
		expected    string
		expectError bool
	}{
		{name: "Plain issuer", iss: "https://spec.smarthealth.cards/examples/issuer", expected: "https://spec.smarthealth.cards/examples/issuer/.well-known/jwks.json"},
		{name: "Missing scheme", iss: "spec.smarthealth.cards", expectError: true},
		{name: "Invalid host", iss: "https://bad host", expectError: true},
		{name: "Empty", iss: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JWKSURL(tt.iss)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrIssuerURLUnparsable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewVerifier(t *testing.T) {
	v := NewVerifier(&config.Config{FetchTimeout: 2 * time.Second}, trust.NewStore(nil))
	assert.Equal(t, 2*time.Second, v.Timeout)
	require.NotNil(t, v.Client)
	assert.NotNil(t, v.Client.Transport)

	v = NewVerifier(nil, trust.NewStore(nil))
	assert.Equal(t, DefaultFetchTimeout, v.Timeout)
}

func TestVerify_ConcurrentSameIssuer(t *testing.T) {
	srv := newIssuerServer(t, "key-1")
	store := trust.NewStore(nil)
	v := newTestVerifier(store, time.Second)

	tokens := make([]*jws.Token, 8)
	for i := range tokens {
		tokens[i] = srv.card(t)
	}

	errs := make(chan error, len(tokens))
	for _, token := range tokens {
		go func() {
			result, err := v.Verify(context.Background(), token)
			if err == nil && !result.Valid {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for range tokens {
		assert.NoError(t, <-errs)
	}

	valid, found := store.CachedResult(srv.server.URL)
	assert.True(t, found)
	assert.True(t, valid)
}

func TestVerify_EndToEndDirectoryKey(t *testing.T) {
	issuer, err := mock.NewIssuer("https://example.org/issuer", "3Kfdg")
	require.NoError(t, err)

	body := []byte(`{"iss":"https://example.org/issuer","nbf":1700000000,"vc":{"type":["https://smarthealth.cards#health-card"]}}`)
	compact, err := mock.SignRaw(issuer.Key, jws.Header{
		Algorithm:   jws.AlgorithmES256,
		KeyID:       "3Kfdg",
		Compression: jws.CompressionDeflate,
	}, body)
	require.NoError(t, err)

	token, err := jws.ParseCompact(compact)
	require.NoError(t, err)

	header, err := jws.DecodeSegment(token.HeaderText())
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"ES256","kid":"3Kfdg","zip":"DEF"}`, string(header))
	assert.Equal(t, body, token.Payload())

	card, err := token.HealthCard()
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/issuer", card.Issuer)

	store := trust.NewStore(nil)
	store.AddIssuer(issuer.Info("Example Issuer"))
	v := newTestVerifier(store, time.Second)

	result, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, PathLocal, result.Path)
	assert.Equal(t, "3Kfdg", result.KeyID)
}
