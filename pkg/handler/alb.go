package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/verifier"
)

// AwsApplicationLoadBalancer handles AWS Application Load Balancer requests
type AwsApplicationLoadBalancer struct {
	processor *RequestProcessor
}

// NewAwsApplicationLoadBalancer creates a new Application Load Balancer handler
func NewAwsApplicationLoadBalancer(cfg *config.Config, store *trust.Store, v verifier.VerifierInterface) *AwsApplicationLoadBalancer {
	return &AwsApplicationLoadBalancer{
		processor: NewRequestProcessor(cfg, store, v),
	}
}

// Handler is the Lambda function interface for Application Load Balancer
func (h *AwsApplicationLoadBalancer) Handler(ctx context.Context, event events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error) {
	// ALB doesn't provide a request ID; one is generated
	ctx, cancel := newRequestContext(ctx, "",
		event.Headers["x-forwarded-for"],
		event.Headers["user-agent"],
	)
	defer cancel()
	requestID, _ := ctx.Value(RequestIDContextKey).(string)

	log := slog.With(
		slog.String("requestId", requestID),
		slog.String("path", event.Path),
		slog.String("method", event.HTTPMethod),
		slog.String("sourceIp", event.Headers["x-forwarded-for"]),
		slog.String("userAgent", event.Headers["user-agent"]),
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

func (h *AwsApplicationLoadBalancer) respond(statusCode int, body string) (events.ALBTargetGroupResponse, error) {
	return events.ALBTargetGroupResponse{
		StatusCode:        statusCode,
		StatusDescription: fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Headers:           ResponseHeaders,
		Body:              body,
		IsBase64Encoded:   false,
	}, nil
}
