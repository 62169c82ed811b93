package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

const defaultModelName = "gemini-2.5-flash"

// maxAttempts bounds how many times a single completion is sent before the
// transient error is surfaced to the caller.
const maxAttempts = 3

// GeminiClient implements domain.CompletionClient against the Gemini API.
// One client is built per research session so that the caller's API key
// never outlives the run that presented it.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a CompletionClient bound to the given API key.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: llm api key must not be empty", domain.ErrInvalidInput)
	}
	if modelName == "" {
		modelName = defaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Complete implements domain.CompletionClient using the Gemini API.
func (g *GeminiClient) Complete(ctx context.Context, role domain.AgentRole, prompt string) (string, error) {
	// 1) System instructions (identity + role)
	system := SystemPromptFor(role)

	// 2) The agent-built prompt is the single user turn
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	// 3) Model config (without genai.Ptr to avoid generic issues)
	temp := float32(0.7)
	topP := float32(0.9)

	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	// 4) Call the model, retrying transient failures only
	var text string
	op := func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
		if err != nil {
			mapped := classifyErr(err)
			if errors.Is(mapped, domain.ErrTransient) {
				return mapped
			}
			return backoff.Permanent(mapped)
		}

		text = res.Text()
		if text == "" {
			return fmt.Errorf("%w: model returned empty text", domain.ErrTransient)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)); err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	return text, nil
}

// classifyErr maps a Gemini API failure onto the domain error taxonomy so
// the orchestrator can decide between aborting the session and retrying.
func classifyErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %s", domain.ErrAuth, apiErr.Message)
		case apiErr.Code == http.StatusBadRequest && looksLikeKeyRejection(apiErr):
			// The Gemini API reports malformed keys as 400 INVALID_ARGUMENT.
			return fmt.Errorf("%w: %s", domain.ErrAuth, apiErr.Message)
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", domain.ErrQuota, apiErr.Message)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %s", domain.ErrTransient, apiErr.Message)
		default:
			return fmt.Errorf("%w: gemini status %d: %s", domain.ErrInvalidInput, apiErr.Code, apiErr.Message)
		}
	}

	// Anything that never reached the API (DNS, TLS, connection resets).
	return fmt.Errorf("%w: %v", domain.ErrTransient, err)
}

func looksLikeKeyRejection(apiErr genai.APIError) bool {
	for _, d := range apiErr.Details {
		if reason, ok := d["reason"].(string); ok && reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
