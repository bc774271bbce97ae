// Package ai turns a hosted image URL into a short caption using a
// vision-capable language model.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/sharpframe/internal/config"
)

const (
	SystemPrompt  = "You are a helpful and truthful assistant"
	CaptionPrompt = "Describe what is in this image in one short sentence. " +
		"The answer is shown on a small single-line display, so keep it brief " +
		"and do not use line breaks."
)

var ErrEmptyCaption = errors.New("model returned an empty caption")

type CaptionClient interface {
	CaptionImage(ctx context.Context, imageURL string) (string, error)
}

// CaptionService asks a CaptionClient for a caption and fits the answer to
// the display width.
type CaptionService struct {
	client       CaptionClient
	displayWidth int
}

func NewCaptionService(client CaptionClient, displayWidth int) *CaptionService {
	return &CaptionService{client: client, displayWidth: displayWidth}
}

// NewCaptionClient builds the client selected by cfg.Backend.
func NewCaptionClient(ctx context.Context, cfg config.CaptionConfig) (CaptionClient, error) {
	switch cfg.Backend {
	case config.CaptionOpenAI:
		log.Info().Str("model", cfg.OpenAIModel).Msg("OpenAI caption backend enabled")
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxTokens), nil
	case config.CaptionAzure:
		log.Info().Str("deployment", cfg.AzureDeployment).Msg("Azure OpenAI caption backend enabled")
		return NewAzureOpenAIClient(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AzureDeployment, cfg.AzureAPIVersion, cfg.MaxTokens), nil
	case config.CaptionGemini:
		log.Info().Str("model", cfg.GeminiModel).Msg("Gemini caption backend enabled")
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unsupported caption backend: %q", cfg.Backend)
	}
}

func (s *CaptionService) Describe(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("image URL is required")
	}

	caption, err := s.client.CaptionImage(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to caption image: %w", err)
	}

	caption = FitDisplay(caption, s.displayWidth)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}
