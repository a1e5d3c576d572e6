package ai

import (
	"context"
	"encoding/json"
	"strings"
)

// InvoiceFields are the five values the model is asked to return.
type InvoiceFields struct {
	InvoiceDate string     `json:"invoice_date"`
	Seller      string     `json:"seller"`
	Amount      flexString `json:"amount"`
	ProjectName string     `json:"project_name"`
	InvoiceNo   flexString `json:"invoice_no"`
}

// InvoiceExtractor turns the text of an invoice into structured fields.
// Implement this interface to add new AI providers.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, text string) (*InvoiceFields, error)
	// Name reports the provider and model, shown in import summaries.
	Name() string
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
	ProviderAuto   ProviderType = "auto"
)

// flexString accepts both JSON strings and numbers. Models return amounts and
// invoice numbers either way.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }
