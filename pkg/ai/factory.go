package ai

import (
	"context"
	"fmt"
	"time"

	"invoice-backend/pkg/gemini"
	"invoice-backend/pkg/metrics"
)

// Config holds AI provider configuration. The URL and model getters are read on
// every request so runtime settings take effect without a restart.
type Config struct {
	Provider ProviderType

	OpenAIAPIKey     string
	GetOpenAIBaseURL func() string
	GetOpenAIModel   func() string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	GeminiAPIKey string

	Timeout time.Duration
}

// NewInvoiceExtractor creates an InvoiceExtractor based on the config.
// Switch AI provider by changing cfg.Provider.
func NewInvoiceExtractor(cfg Config) (InvoiceExtractor, error) {
	openai := func() InvoiceExtractor {
		return NewOpenAIServiceWithGetters(cfg.GetOpenAIBaseURL, cfg.GetOpenAIModel, cfg.OpenAIAPIKey, cfg.Timeout)
	}
	ollama := func() InvoiceExtractor {
		return NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel, cfg.Timeout)
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.GetOpenAIBaseURL == nil || cfg.GetOpenAIModel == nil {
			return nil, fmt.Errorf("openai provider needs a base URL and model")
		}
		return openai(), nil

	case ProviderOllama:
		if cfg.GetOllamaBaseURL == nil || cfg.GetOllamaModel == nil {
			return nil, fmt.Errorf("ollama provider needs a base URL and model")
		}
		return ollama(), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.Timeout)), nil

	case ProviderAuto:
		// OpenAI compatible endpoint first, then Gemini if a key exists, otherwise Ollama
		var secondary InvoiceExtractor
		if cfg.GeminiAPIKey != "" {
			secondary = NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.Timeout))
		} else if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaModel != nil {
			secondary = ollama()
		}
		return NewFallbackService(openai(), secondary), nil
	}

	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

// GeminiExtractor adapts the Gemini client to InvoiceExtractor.
type GeminiExtractor struct {
	svc *gemini.GeminiService
}

func NewGeminiExtractor(svc *gemini.GeminiService) *GeminiExtractor {
	return &GeminiExtractor{svc: svc}
}

func (g *GeminiExtractor) Name() string {
	return g.svc.Model
}

func (g *GeminiExtractor) ExtractInvoice(ctx context.Context, text string) (*InvoiceFields, error) {
	start := time.Now()
	content, err := g.svc.GenerateJSON(ctx, systemPrompt, buildPrompt(text))
	if err != nil {
		metrics.RecordLLMCall("gemini", "error", time.Since(start))
		return nil, fmt.Errorf("gemini: %w", err)
	}
	metrics.RecordLLMCall("gemini", "ok", time.Since(start))
	return ParseFields(content)
}
