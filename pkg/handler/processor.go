package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/utils"
	"github.com/boogy/shc-warden/pkg/verifier"
)

// RequestProcessor contains the core business logic for verifying cards
type RequestProcessor struct {
	config   *config.Config
	store    *trust.Store
	verifier verifier.VerifierInterface
}

// NewRequestProcessor creates a new instance of request processor
func NewRequestProcessor(cfg *config.Config, store *trust.Store, v verifier.VerifierInterface) *RequestProcessor {
	return &RequestProcessor{
		config:   cfg,
		store:    store,
		verifier: v,
	}
}

func (r *RequestProcessor) maxTokenLength() int {
	if r.config == nil || r.config.MaxTokenLength <= 0 {
		return MaxTokenLength
	}
	return r.config.MaxTokenLength
}

// ProcessRequest parses the card, verifies its signature and describes the outcome
func (r *RequestProcessor) ProcessRequest(ctx context.Context, requestData *RequestData, log *slog.Logger) (*VerificationData, error) {
	startTime, _ := ctx.Value(StartTimeContextKey).(time.Time)

	input := jws.Detect(requestData.Card)
	log.Debug("Parsing card",
		slog.String("encoding", input.Kind.String()),
		slog.String("card", utils.RedactToken(input.Value, 10, 10)))

	token, err := jws.Parse(input)
	if err != nil {
		log.Error("Card parsing failed", slog.String("error", err.Error()))
		return nil, err
	}

	payload, err := token.HealthCard()
	if err != nil {
		log.Error("Card payload is invalid", slog.String("error", err.Error()))
		return nil, err
	}

	log = log.With(
		slog.Group("card",
			slog.String("issuer", payload.Issuer),
			slog.String("kid", token.Header().KeyID),
		),
	)

	result, err := r.verifier.Verify(ctx, token)
	if err != nil {
		log.Error("Signature verification failed", slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("Card verified",
		slog.Bool("valid", result.Valid),
		slog.Bool("trusted", result.Trusted),
		slog.String("path", string(result.Path)),
		slog.Duration("totalTime", time.Since(startTime)))

	return &VerificationData{
		Valid:      result.Valid,
		Trusted:    result.Trusted,
		Path:       string(result.Path),
		Issuer:     result.Issuer,
		IssuerName: r.issuerName(result.Issuer),
		KeyID:      result.KeyID,
		IssuedAt:   payload.IssueDate(),
		ExpiresAt:  payload.ExpiresDate(),
	}, nil
}

// issuerName falls back to the URL host for issuers the store does not know.
func (r *RequestProcessor) issuerName(iss string) string {
	if r.store != nil {
		if name := r.store.IssuerName(iss); name != "" {
			return name
		}
	}
	return utils.HostOf(iss)
}
