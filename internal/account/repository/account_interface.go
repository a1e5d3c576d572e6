package repository

import "invoice-backend/internal/account/domain"

// AccountRepository defines data access for saved mailbox accounts
type AccountRepository interface {
	Create(account *domain.EmailAccount) error
	FindByID(id string) (*domain.EmailAccount, error)
	FindByUserID(userID string) ([]*domain.EmailAccount, error)
	FindByAddress(userID, address string) (*domain.EmailAccount, error)
	Update(account *domain.EmailAccount) error
	Delete(id string) error
}
