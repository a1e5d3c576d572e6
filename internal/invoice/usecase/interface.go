package usecase

import (
	"invoice-backend/internal/invoice/domain"
	"invoice-backend/internal/invoice/dto"
	"invoice-backend/internal/invoice/repository"
)

// ListResult is one page of invoices.
type ListResult struct {
	Invoices []*domain.Invoice `json:"invoices"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Pages    int               `json:"pages"`
	Filter   repository.Filter `json:"-"`
}

// InvoiceUsecase defines invoice management for the web UI
type InvoiceUsecase interface {
	List(userID string, query dto.ListInvoicesQuery) (*ListResult, error)

	// Get returns the invoice if it belongs to userID.
	Get(userID, invoiceID string) (*domain.Invoice, error)

	// Update applies edited fields, normalises the date and renames the stored file.
	Update(userID, invoiceID string, req *dto.UpdateInvoiceRequest) (*domain.Invoice, error)

	Delete(userID, invoiceID string) error
	BatchDelete(userID string, ids []string) (*dto.BatchDeleteResult, error)

	// BatchExport zips the selected invoices with a CSV summary and returns
	// the zip's file name inside the user's directory.
	BatchExport(userID string, ids []string) (string, error)

	// FilePath returns the stored PDF and the name to download it as.
	FilePath(userID, invoiceID string) (path, name string, err error)

	// UserFile resolves a file in the user's directory, rejecting traversal.
	UserFile(userID, filename string) (string, error)

	// SuggestSellers ranks the user's seller names against a partial query.
	SuggestSellers(userID, query string, limit int) ([]string, error)

	History(userID string, limit int) ([]*domain.InvoiceHistory, error)
	HistoryResults(userID, historyID string) (*domain.InvoiceHistory, []*domain.Invoice, error)

	// MigrateDates normalises every stored date and regenerates file names.
	MigrateDates() (*dto.MigrateResult, error)
}
