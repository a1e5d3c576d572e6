// Package pdftext reads plain text out of invoice PDFs.
package pdftext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNoText = errors.New("pdf has no extractable text")

// Reader abstracts text extraction so the importer can be tested without PDFs.
type Reader interface {
	FirstPageText(path string) (string, error)
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// FirstPageText returns the text of page one. Invoices carry every field the
// extractor needs on their first page.
func (e *Extractor) FirstPageText(path string) (text string, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return "", ErrNoText
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", ErrNoText
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
