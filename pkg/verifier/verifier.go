package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/jwk"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/signature"
	"github.com/boogy/shc-warden/pkg/trust"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultFetchTimeout = 5 * time.Second
	jwksPath            = "/.well-known/jwks.json"
	maxJWKSSize         = 1 << 20
)

var (
	ErrIssuerURLUnparsable = errors.New("unable to parse issuer URL")
	ErrKeyFetchFailed      = errors.New("unable to fetch issuer keys")
)

// Path records which source produced a verdict.
type Path string

const (
	PathCached Path = "cached"
	PathLocal  Path = "local"
	PathRemote Path = "remote"
)

// Result is the outcome of a completed verification. A signature that does
// not match is a Result with Valid false, not an error.
type Result struct {
	Valid   bool   `json:"valid"`
	Path    Path   `json:"path"`
	Issuer  string `json:"issuer"`
	KeyID   string `json:"kid"`
	Trusted bool   `json:"trusted"`
}

type VerifierInterface interface {
	Verify(ctx context.Context, token *jws.Token) (*Result, error)
}

// Verifier resolves the signing key for a health card and checks its
// signature, consulting the verdict cache, then the trust store, then the
// issuer's published key set.
type Verifier struct {
	Store   *trust.Store
	Client  *http.Client
	Timeout time.Duration
}

// NewVerifier creates a Verifier whose key fetches are bounded by the
// configured timeout.
func NewVerifier(cfg *config.Config, store *trust.Store) *Verifier {
	timeout := DefaultFetchTimeout
	if cfg != nil && cfg.FetchTimeout > 0 {
		timeout = cfg.FetchTimeout
	}

	return &Verifier{
		Store: store,
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Timeout: timeout,
	}
}

// Verify checks token's signature. The verdict is recorded for the issuer
// whenever verification completes; failures leave the cache untouched.
func (v *Verifier) Verify(ctx context.Context, token *jws.Token) (*Result, error) {
	payload, err := token.HealthCard()
	if err != nil {
		return nil, err
	}

	iss := payload.Issuer
	kid := token.Header().KeyID
	result := &Result{
		Issuer:  iss,
		KeyID:   kid,
		Trusted: v.Store.IsTrusted(iss),
	}

	if valid, found := v.Store.CachedResult(iss); found {
		slog.Debug("Using cached verdict", slog.String("issuer", iss), slog.Bool("valid", valid))
		result.Valid = valid
		result.Path = PathCached
		return result, nil
	}

	if info, ok := v.Store.Issuer(iss); ok {
		key, err := jwk.NewKeySet(info.Keys).Key(kid)
		if err == nil {
			valid, err := signature.Verify(token, key)
			if err != nil {
				return nil, err
			}

			v.Store.RecordResult(iss, valid)
			slog.Debug("Verified with directory key",
				slog.String("issuer", iss),
				slog.String("kid", kid),
				slog.Bool("valid", valid))
			result.Valid = valid
			result.Path = PathLocal
			return result, nil
		}
		slog.Debug("Key not found in directory, fetching from issuer",
			slog.String("issuer", iss),
			slog.String("kid", kid))
	}

	keys, err := v.FetchJWKS(ctx, iss)
	if err != nil {
		return nil, err
	}

	key, err := keys.Key(kid)
	if err != nil {
		return nil, err
	}

	valid, err := signature.Verify(token, key)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}

	v.Store.RecordResult(iss, valid)
	slog.Debug("Verified with fetched key",
		slog.String("issuer", iss),
		slog.String("kid", kid),
		slog.Bool("valid", valid))
	result.Valid = valid
	result.Path = PathRemote
	return result, nil
}

// VerifyCard parses a compact or shc:/ numeric card and verifies it.
func (v *Verifier) VerifyCard(ctx context.Context, card string) (*jws.Token, *Result, error) {
	token, err := jws.Parse(jws.Detect(card))
	if err != nil {
		return nil, nil, err
	}

	result, err := v.Verify(ctx, token)
	if err != nil {
		return token, nil, err
	}
	return token, result, nil
}

// JWKSURL returns the key set location for an issuer: the issuer id with
// /.well-known/jwks.json appended.
func JWKSURL(iss string) (string, error) {
	raw := iss + jwksPath
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrIssuerURLUnparsable, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrIssuerURLUnparsable, raw)
	}
	return u.String(), nil
}

// FetchJWKS downloads the issuer's published key set. Every failure after the
// URL is built is reported as ErrKeyFetchFailed.
func (v *Verifier) FetchJWKS(ctx context.Context, iss string) (*jwk.KeySet, error) {
	jwksURL, err := JWKSURL(iss)
	if err != nil {
		return nil, err
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Error("Failed to fetch JWKS", "url", jwksURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close JWKS response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Received non-200 status code when fetching JWKS", "url", jwksURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: received status %d from %s", ErrKeyFetchFailed, resp.StatusCode, jwksURL)
	}

	keys, err := jwk.Decode(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		slog.Error("Failed to parse JWKS", "url", jwksURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}

	slog.Debug("Fetched JWKS", slog.String("url", jwksURL), slog.Int("keys", keys.Len()))
	return keys, nil
}
