package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

type GeminiService struct {
	ApiKey   string
	Model    string
	Endpoint string
	client   *http.Client
}

func NewGeminiService(apiKey string, timeout time.Duration) *GeminiService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiService{
		ApiKey:   apiKey,
		Model:    "gemini-2.5-flash",
		Endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// GenerateJSON sends one system instruction plus a user prompt and returns the
// text of the first candidate. The response is requested as application/json.
func (g *GeminiService) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", strings.TrimRight(g.Endpoint, "/"), g.Model, g.ApiKey)

	reqBody := map[string]interface{}{
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0,
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("no response from gemini")
}
