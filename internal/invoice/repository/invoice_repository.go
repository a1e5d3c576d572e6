package repository

import (
	"errors"
	"time"

	"invoice-backend/internal/invoice/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sortColumns whitelists the columns a listing can be ordered by. Amount is
// resolved per dialect by amountExpr.
var sortColumns = map[string]string{
	"created_at":   "created_at",
	"invoice_date": "invoice_date",
	"amount":       "amount",
	"seller":       "seller",
	"invoice_no":   "invoice_no",
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// amountExpr casts the stored amount string to a number. Postgres rejects
// non-numeric casts, so stray characters are stripped first.
func (r *invoiceRepository) amountExpr() string {
	if r.db.Dialector.Name() == "postgres" {
		return "CAST(NULLIF(regexp_replace(amount, '[^0-9.]', '', 'g'), '') AS NUMERIC)"
	}
	return "CAST(amount AS REAL)"
}

func (r *invoiceRepository) ExistsByUserAndNo(userID, invoiceNo string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Invoice{}).
		Where("user_id = ? AND invoice_no = ?", userID, invoiceNo).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) Create(invoice *domain.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	now := time.Now()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	return r.db.Create(invoice).Error
}

func (r *invoiceRepository) FindByID(id string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDs(userID string, ids []string) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := r.db.Where("user_id = ? AND id IN ?", userID, ids).
		Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) FindByHistoryID(userID, historyID string) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := r.db.Where("user_id = ? AND history_id = ?", userID, historyID).
		Order("created_at ASC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) List(userID string, f Filter) ([]*domain.Invoice, int64, error) {
	var invoices []*domain.Invoice
	var total int64

	query := r.db.Model(&domain.Invoice{}).Where("user_id = ?", userID)
	if f.Seller != "" {
		query = query.Where("seller LIKE ?", "%"+f.Seller+"%")
	}
	if f.InvoiceNo != "" {
		query = query.Where("invoice_no LIKE ?", "%"+f.InvoiceNo+"%")
	}
	// dates are stored normalised, so string order is date order
	if f.DateFrom != "" {
		query = query.Where("invoice_date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		query = query.Where("invoice_date <= ?", f.DateTo)
	}
	if f.AmountFrom != nil {
		query = query.Where(r.amountExpr()+" >= ?", *f.AmountFrom)
	}
	if f.AmountTo != nil {
		query = query.Where(r.amountExpr()+" <= ?", *f.AmountTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[f.Sort]
	if !ok {
		column = "created_at"
		f.Desc = true
	}
	if column == "amount" {
		column = r.amountExpr()
	}
	direction := " ASC"
	if f.Desc {
		direction = " DESC"
	}

	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	err := query.Order(column + direction).Order("id ASC").
		Limit(size).Offset((page - 1) * size).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) Update(invoice *domain.Invoice) error {
	invoice.UpdatedAt = time.Now()
	return r.db.Save(invoice).Error
}

func (r *invoiceRepository) Delete(id string) error {
	return r.db.Delete(&domain.Invoice{}, "id = ?", id).Error
}

func (r *invoiceRepository) Sellers(userID string) ([]string, error) {
	var sellers []string
	err := r.db.Model(&domain.Invoice{}).
		Where("user_id = ? AND seller <> ''", userID).
		Distinct().Order("seller").
		Pluck("seller", &sellers).Error
	return sellers, err
}

func (r *invoiceRepository) FindAll() ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := r.db.Order("created_at ASC").Find(&invoices).Error
	return invoices, err
}
