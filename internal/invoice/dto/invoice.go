package dto

type ListInvoicesQuery struct {
	Seller     string `form:"seller" json:"seller"`
	InvoiceNo  string `form:"invoice_no" json:"invoice_no"`
	DateFrom   string `form:"date_from" json:"date_from"`
	DateTo     string `form:"date_to" json:"date_to"`
	AmountFrom string `form:"amount_from" json:"amount_from"`
	AmountTo   string `form:"amount_to" json:"amount_to"`
	Sort       string `form:"sort" json:"sort"`
	Order      string `form:"order" json:"order"`
	Page       int    `form:"page" json:"page"`
	PageSize   int    `form:"page_size" json:"page_size"`
}

type UpdateInvoiceRequest struct {
	InvoiceNo   string `form:"invoice_no" json:"invoice_no" binding:"required,max=100"`
	InvoiceDate string `form:"invoice_date" json:"invoice_date" binding:"max=50"`
	Seller      string `form:"seller" json:"seller" binding:"max=255"`
	Amount      string `form:"amount" json:"amount" binding:"max=50"`
	ProjectName string `form:"project_name" json:"project_name" binding:"max=500"`
	Notes       string `form:"notes" json:"notes"`
}

type BatchRequest struct {
	IDs []string `form:"ids" json:"ids"`
}

type ImportRequest struct {
	AccountID    string `form:"account_id" json:"account_id"`
	EmailAddress string `form:"email_address" json:"email_address"`
	Password     string `form:"password" json:"password"`
	SaveAccount  bool   `form:"save_account" json:"save_account"`
	Since        string `form:"since" json:"since"`
	Subject      string `form:"subject" json:"subject"`
}

type BatchDeleteResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

type MigrateResult struct {
	Total            int `json:"total"`
	DatesUpdated     int `json:"dates_updated"`
	FilenamesUpdated int `json:"filenames_updated"`
	Errors           int `json:"errors"`
}
