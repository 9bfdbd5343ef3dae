package handler

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/verifier"
)

// AwsLambdaUrl handles AWS Lambda URL requests
type AwsLambdaUrl struct {
	processor *RequestProcessor
}

// NewAwsLambdaUrl creates a new Lambda URL handler
func NewAwsLambdaUrl(cfg *config.Config, store *trust.Store, v verifier.VerifierInterface) *AwsLambdaUrl {
	return &AwsLambdaUrl{
		processor: NewRequestProcessor(cfg, store, v),
	}
}

// Handler is the Lambda function interface for Lambda URLs
func (h *AwsLambdaUrl) Handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	ctx, cancel := newRequestContext(ctx,
		event.RequestContext.RequestID,
		event.RequestContext.HTTP.SourceIP,
		event.RequestContext.HTTP.UserAgent,
	)
	defer cancel()
	requestID, _ := ctx.Value(RequestIDContextKey).(string)

	log := slog.With(
		slog.String("requestId", requestID),
		slog.String("rawPath", event.RawPath),
		slog.String("method", event.RequestContext.HTTP.Method),
		slog.String("sourceIp", event.RequestContext.HTTP.SourceIP),
		slog.String("userAgent", event.RequestContext.HTTP.UserAgent),
		slog.String("requestTime", event.RequestContext.Time),
	)

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.respond(errorResponse(ctx, ErrInvalidJSON))
		}
		body = string(decoded)
	}

	requestData, err := ParseRequestBody(body, h.processor.maxTokenLength())
	if err != nil {
		return h.respond(errorResponse(ctx, err))
	}

	data, err := h.processor.ProcessRequest(ctx, requestData, log)
	if err != nil {
		return h.respond(errorResponse(ctx, err))
	}

	return h.respond(successResponse(ctx, data))
}

func (h *AwsLambdaUrl) respond(statusCode int, body string) (events.LambdaFunctionURLResponse, error) {
	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers:    ResponseHeaders,
		Body:       body,
	}, nil
}
