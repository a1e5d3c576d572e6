package repository

import "invoice-backend/internal/invoice/domain"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter narrows an invoice listing. Empty fields are ignored.
type Filter struct {
	Seller     string
	InvoiceNo  string
	DateFrom   string
	DateTo     string
	AmountFrom *float64
	AmountTo   *float64
	Sort       string
	Desc       bool
	Page       int
	PageSize   int
}

// InvoiceRepository defines data access for invoices
type InvoiceRepository interface {
	// ExistsByUserAndNo reports whether the user already has this invoice number.
	ExistsByUserAndNo(userID, invoiceNo string) (bool, error)
	Create(invoice *domain.Invoice) error
	FindByID(id string) (*domain.Invoice, error)
	// FindByIDs returns the user's invoices among ids; others are ignored.
	FindByIDs(userID string, ids []string) ([]*domain.Invoice, error)
	FindByHistoryID(userID, historyID string) ([]*domain.Invoice, error)
	List(userID string, filter Filter) ([]*domain.Invoice, int64, error)
	Update(invoice *domain.Invoice) error
	Delete(id string) error
	// Sellers returns the user's distinct non-empty seller names.
	Sellers(userID string) ([]string, error)

	// FindAll is used by maintenance tasks.
	FindAll() ([]*domain.Invoice, error)
}

// HistoryRepository defines data access for import runs
type HistoryRepository interface {
	Create(history *domain.InvoiceHistory) error
	Update(history *domain.InvoiceHistory) error
	FindByID(id string) (*domain.InvoiceHistory, error)
	ListByUser(userID string, limit int) ([]*domain.InvoiceHistory, error)
}
