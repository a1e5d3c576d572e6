package dto

type CreateAccountRequest struct {
	EmailAddress string `form:"email_address" json:"email_address" binding:"required,email"`
	Password     string `form:"password" json:"password" binding:"required"`
	Description  string `form:"description" json:"description" binding:"max=255"`
	IMAPServer   string `form:"imap_server" json:"imap_server"`
	IMAPPort     int    `form:"imap_port" json:"imap_port"`
}
