package handler

import (
	"errors"
	"time"
)

// Constants for handler configuration
const (
	// DefaultTimeout is the maximum time to process a request; it must exceed
	// the issuer key fetch timeout.
	DefaultTimeout = 10 * time.Second

	// MaxTokenLength is used when the configuration does not set one
	MaxTokenLength = 16384 // 16KB

	// MaxBodyLength bounds the raw request body
	MaxBodyLength = 1024 * 1024
)

// Context key types to avoid string collision in context values
type contextKey string

const (
	RequestIDContextKey contextKey = "requestId"
	StartTimeContextKey contextKey = "startTime"
	SourceIPContextKey  contextKey = "sourceIp"
	UserAgentContextKey contextKey = "userAgent"
)

// Custom error types for more precise error reporting
var (
	ErrEmptyCard    = errors.New("card is empty")
	ErrCardTooLarge = errors.New("card exceeds maximum allowed size")
	ErrInvalidJSON  = errors.New("invalid JSON in request body")
)

var (
	// ResponseHeaders common headers to include in all API responses
	ResponseHeaders = map[string]string{
		"Content-Type": "application/json",
	}
)

// RequestData is the request format expected by the Lambda
type RequestData struct {
	Card string `json:"card"` // Compact JWS or shc:/ numeric string
}

// VerificationData is the data member of a successful response.
type VerificationData struct {
	Valid      bool       `json:"valid"`
	Trusted    bool       `json:"trusted"`
	Path       string     `json:"path"`
	Issuer     string     `json:"issuer"`
	IssuerName string     `json:"issuerName,omitempty"`
	KeyID      string     `json:"kid"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Response represents a standardized API response
type Response struct {
	Success      bool   `json:"success"`
	StatusCode   int    `json:"statusCode,omitempty"`
	RequestID    string `json:"requestId"`
	ProcessingMS int64  `json:"processingMs,omitempty"`

	// For successful responses
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`

	// For error responses
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}
