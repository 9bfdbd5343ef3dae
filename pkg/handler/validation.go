package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/boogy/shc-warden/pkg/utils"
)

// ValidateRequestData validates common request data fields
func ValidateRequestData(card string, maxLength int) error {
	if strings.TrimSpace(card) == "" {
		return ErrEmptyCard
	}

	if maxLength <= 0 {
		maxLength = MaxTokenLength
	}

	// Check card length before any decoding work
	if len(card) > maxLength {
		return ErrCardTooLarge
	}

	return nil
}

// ParseRequestBody parses and validates JSON request body into RequestData
func ParseRequestBody(body string, maxLength int) (*RequestData, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("request body is empty: %w", ErrInvalidJSON)
	}

	if len(body) > MaxBodyLength {
		return nil, fmt.Errorf("request body too large: %w", ErrInvalidJSON)
	}

	var requestData RequestData
	if err := json.Unmarshal([]byte(body), &requestData); err != nil {
		slog.Error("Failed to unmarshal request body",
			slog.String("error", err.Error()),
			slog.String("bodyPreview", utils.TruncateString(body, 100)))
		return nil, fmt.Errorf("invalid JSON format: %w", ErrInvalidJSON)
	}

	if err := ValidateRequestData(requestData.Card, maxLength); err != nil {
		return nil, err
	}

	return &requestData, nil
}
