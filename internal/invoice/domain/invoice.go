package domain

import "time"

// Invoice is one imported PDF invoice. InvoiceNo is unique per user, but only
// the importer enforces that; the index is not unique.
type Invoice struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(36);index:idx_invoice_user_no;not null" json:"user_id"`
	HistoryID        *string   `gorm:"type:varchar(36);index" json:"history_id,omitempty"`
	InvoiceNo        string    `gorm:"type:varchar(100);index:idx_invoice_user_no;not null" json:"invoice_no"`
	InvoiceDate      string    `gorm:"type:varchar(50)" json:"invoice_date"`
	Seller           string    `gorm:"type:varchar(255)" json:"seller"`
	Amount           string    `gorm:"type:varchar(50)" json:"amount"`
	ProjectName      string    `gorm:"type:varchar(500)" json:"project_name"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	CurrentFilename  string    `gorm:"type:varchar(255)" json:"current_filename"`
	FilePath         string    `gorm:"type:varchar(500)" json:"-"`
	Notes            string    `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceHistory records one import run.
type InvoiceHistory struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	EmailAccountID *string    `gorm:"type:varchar(36)" json:"email_account_id,omitempty"`
	SearchDate     *time.Time `json:"search_date,omitempty"`
	InvoiceCount   int        `json:"invoice_count"`
	ZipFilename    string     `gorm:"type:varchar(255)" json:"zip_filename,omitempty"`
	ProcessedAt    time.Time  `gorm:"index" json:"processed_at"`
}

func (InvoiceHistory) TableName() string {
	return "invoice_histories"
}
