package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invoice-backend/pkg/metrics"
)

// OllamaService implements InvoiceExtractor using an Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	client     *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string, timeout time.Duration) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
		timeout)
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string, timeout time.Duration) *OllamaService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		client:     &http.Client{Timeout: timeout},
	}
}

func (o *OllamaService) Name() string {
	return "ollama/" + o.getModel()
}

// ExtractInvoice implements InvoiceExtractor
func (o *OllamaService) ExtractInvoice(ctx context.Context, text string) (*InvoiceFields, error) {
	url := strings.TrimRight(o.getBaseURL(), "/") + "/api/generate"

	payload := map[string]interface{}{
		"model":  o.getModel(),
		"system": systemPrompt,
		"prompt": buildPrompt(text),
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": 0,
		},
	}

	start := time.Now()
	respBody, err := postJSON(ctx, o.client, url, nil, payload)
	if err != nil {
		metrics.RecordLLMCall("ollama", "error", time.Since(start))
		return nil, fmt.Errorf("ollama: %w", err)
	}
	metrics.RecordLLMCall("ollama", "ok", time.Since(start))

	content, err := completionContent(respBody)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return ParseFields(content)
}

// Ping checks that the Ollama server answers /api/tags.
func (o *OllamaService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(o.getBaseURL(), "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	return nil
}
