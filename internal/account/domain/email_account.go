package domain

import "time"

// EmailAccount is a saved mailbox login. Password holds the AES-GCM ciphertext.
type EmailAccount struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	EmailAddress string    `gorm:"type:varchar(255);not null" json:"email_address"`
	Password     string    `gorm:"type:text;not null" json:"-"`
	Description  string    `gorm:"type:varchar(255)" json:"description"`
	IMAPServer   string    `gorm:"type:varchar(255)" json:"imap_server"`
	IMAPPort     int       `json:"imap_port"`
	CreatedAt    time.Time `json:"created_at"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}
