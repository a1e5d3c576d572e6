package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoice-backend/pkg/metrics"
)

// OpenAIService calls an OpenAI compatible /v1/chat/completions endpoint.
type OpenAIService struct {
	getBaseURL func() string
	getModel   func() string
	apiKey     string
	keyBaseURL string
	client     *http.Client
}

func NewOpenAIService(baseURL, model, apiKey string, timeout time.Duration) *OpenAIService {
	if baseURL == "" {
		baseURL = "http://10.10.10.16:3000"
	}
	if model == "" {
		model = "gpt-4o"
	}
	return NewOpenAIServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
		apiKey, timeout)
}

// NewOpenAIServiceWithGetters reads base URL and model on every call so they can
// be changed at runtime. The API key is only sent to the base URL in effect when
// the service is created.
func NewOpenAIServiceWithGetters(getBaseURL, getModel func() string, apiKey string, timeout time.Duration) *OpenAIService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	svc := &OpenAIService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
	}
	if getBaseURL != nil {
		svc.keyBaseURL = strings.TrimRight(getBaseURL(), "/")
	}
	return svc
}

func (o *OpenAIService) Name() string {
	return o.getModel()
}

func (o *OpenAIService) ExtractInvoice(ctx context.Context, text string) (*InvoiceFields, error) {
	baseURL := strings.TrimRight(o.getBaseURL(), "/")
	url := baseURL + "/v1/chat/completions"

	payload := map[string]interface{}{
		"model": o.getModel(),
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(text)},
		},
		"temperature": 0,
	}
	headers := map[string]string{}
	if o.apiKey != "" && baseURL == o.keyBaseURL {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	start := time.Now()
	respBody, err := postJSON(ctx, o.client, url, headers, payload)
	if err != nil {
		metrics.RecordLLMCall("openai", "error", time.Since(start))
		return nil, fmt.Errorf("openai: %w", err)
	}
	metrics.RecordLLMCall("openai", "ok", time.Since(start))

	content, err := completionContent(respBody)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return ParseFields(content)
}

// postJSON sends payload and returns the body of a 200 response.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
