package database

import (
	"fmt"

	accountdomain "invoice-backend/internal/account/domain"
	authdomain "invoice-backend/internal/auth/domain"
	invoicedomain "invoice-backend/internal/invoice/domain"

	"gorm.io/gorm"
)

// Models lists every table the application owns.
func Models() []interface{} {
	return []interface{}{
		&authdomain.User{},
		&accountdomain.EmailAccount{},
		&invoicedomain.InvoiceHistory{},
		&invoicedomain.Invoice{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
