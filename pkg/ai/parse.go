package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownResponse = errors.New("unknown completion response format")

// completionContent pulls the model text out of a completion body. Proxies in
// front of different backends answer with either an Ollama style `response`
// field or OpenAI style choices.
func completionContent(body []byte) (string, error) {
	var result struct {
		Response *string `json:"response"`
		Choices  []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Response != nil {
		return *result.Response, nil
	}
	if len(result.Choices) > 0 {
		return result.Choices[0].Message.Content, nil
	}
	return "", ErrUnknownResponse
}

// StripCodeFence removes a leading ```json or ``` fence and a trailing ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseFields decodes the model's answer into InvoiceFields.
func ParseFields(content string) (*InvoiceFields, error) {
	text := StripCodeFence(content)

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		text = text[jsonStart : jsonEnd+1]
	}

	var fields InvoiceFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse invoice JSON: %w", err)
	}
	fields.InvoiceDate = strings.TrimSpace(fields.InvoiceDate)
	fields.Seller = strings.TrimSpace(fields.Seller)
	fields.ProjectName = strings.TrimSpace(fields.ProjectName)
	return &fields, nil
}
