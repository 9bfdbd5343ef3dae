package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/boogy/shc-warden/pkg/jwk"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/verifier"
	"github.com/google/uuid"
)

// newRequestContext adds request tracking information and the request timeout
func newRequestContext(ctx context.Context, requestID, sourceIP, userAgent string) (context.Context, context.CancelFunc) {
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, RequestIDContextKey, requestID)
	ctx = context.WithValue(ctx, StartTimeContextKey, time.Now())
	ctx = context.WithValue(ctx, SourceIPContextKey, sourceIP)
	ctx = context.WithValue(ctx, UserAgentContextKey, userAgent)

	return context.WithTimeout(ctx, DefaultTimeout)
}

// requestMeta returns the request ID and elapsed time recorded in ctx
func requestMeta(ctx context.Context) (string, int64) {
	requestID, _ := ctx.Value(RequestIDContextKey).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var processingMS int64
	if startTime, ok := ctx.Value(StartTimeContextKey).(time.Time); ok {
		processingMS = time.Since(startTime).Milliseconds()
	}
	return requestID, processingMS
}

// classifyError maps an error to a status code, a stable error code and a
// client facing message.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrEmptyCard), errors.Is(err, ErrCardTooLarge), errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, "invalid_request", "Invalid request parameters"
	case errors.Is(err, jws.ErrInvalidData), errors.Is(err, jws.ErrMalformedToken),
		errors.Is(err, jws.ErrInvalidEncoding), errors.Is(err, jws.ErrMalformedEncoding),
		errors.Is(err, jws.ErrDecompressionFailed):
		return http.StatusBadRequest, "invalid_card", "The card could not be decoded"
	case errors.Is(err, jws.ErrUnsupportedAlgorithm), errors.Is(err, jws.ErrUnsupportedCompression),
		errors.Is(err, jwk.ErrUnsupportedKey):
		return http.StatusUnprocessableEntity, "unsupported", "The card uses an unsupported signature scheme"
	case errors.Is(err, verifier.ErrIssuerURLUnparsable):
		return http.StatusUnprocessableEntity, "bad_issuer", "The card issuer is not a valid URL"
	case errors.Is(err, verifier.ErrKeyFetchFailed), errors.Is(err, jwk.ErrKeyNotFound):
		return http.StatusBadGateway, "key_unavailable", "The issuer signing key could not be retrieved"
	default:
		return http.StatusInternalServerError, "internal_error", "An internal error occurred"
	}
}

// errorResponse builds the status code and JSON body for a failed request
func errorResponse(ctx context.Context, err error) (int, string) {
	requestID, processingMS := requestMeta(ctx)
	statusCode, errCode, errMsg := classifyError(err)

	slog.Error("Request error",
		slog.String("requestId", requestID),
		slog.String("errorCode", errCode),
		slog.String("error", err.Error()),
		slog.Int("status", statusCode),
		slog.Int64("processingMs", processingMS))

	response := Response{
		Success:      false,
		StatusCode:   statusCode,
		ErrorCode:    errCode,
		Message:      errMsg,
		ErrorDetails: err.Error(),
		RequestID:    requestID,
		ProcessingMS: processingMS,
	}

	jsonResponse, jsonErr := json.Marshal(response)
	if jsonErr != nil {
		// Fallback to simple error response if JSON marshalling fails
		return http.StatusInternalServerError, fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return statusCode, string(jsonResponse)
}

// successResponse builds the status code and JSON body for a verified card
func successResponse(ctx context.Context, data *VerificationData) (int, string) {
	requestID, processingMS := requestMeta(ctx)

	message := "Card signature verified"
	if !data.Valid {
		message = "Card signature does not match the issuer key"
	}

	response := Response{
		Success:      true,
		StatusCode:   http.StatusOK,
		Message:      message,
		RequestID:    requestID,
		ProcessingMS: processingMS,
		Data:         data,
	}

	jsonResponse, err := json.Marshal(response)
	if err != nil {
		return errorResponse(ctx, fmt.Errorf("failed to marshal response: %w", err))
	}

	slog.Debug("Response successful",
		slog.String("requestId", requestID),
		slog.Int64("processingMs", processingMS))

	return http.StatusOK, string(jsonResponse)
}
