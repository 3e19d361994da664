package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiBackend is a Backend served by the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend connects to Gemini. An empty API key yields
// ErrBackendUnavailable.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrBackendUnavailable)
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

// Respond implements Backend.
func (b *GeminiBackend) Respond(ctx context.Context, systemInstructions, prompt string, temperature float32) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstructions))
	model.SetTemperature(temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

// classifyError maps Google API errors onto the backend sentinels.
func classifyError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch {
	case gerr.Code == http.StatusForbidden && serviceDisabled(gerr):
		return fmt.Errorf("%w: %w", ErrBackendDisabled, err)
	case gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "location is not supported"):
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return err
}

func serviceDisabled(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if item.Reason == "SERVICE_DISABLED" || item.Reason == "accessNotConfigured" {
			return true
		}
	}
	return strings.Contains(gerr.Message, "SERVICE_DISABLED") || strings.Contains(gerr.Body, "SERVICE_DISABLED")
}
