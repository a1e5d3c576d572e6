package usecase

import (
	"invoice-backend/internal/account/domain"
	"invoice-backend/internal/account/dto"
	"invoice-backend/pkg/imap"
)

// AccountUsecase manages a user's saved mailboxes
type AccountUsecase interface {
	List(userID string) ([]*domain.EmailAccount, error)
	Create(userID string, req *dto.CreateAccountRequest) (*domain.EmailAccount, error)
	Delete(userID, accountID string) error

	// Credentials decrypts a saved account for an import run.
	Credentials(userID, accountID string) (imap.Credentials, *domain.EmailAccount, error)

	// FindByAddress returns the saved account for address, or nil.
	FindByAddress(userID, address string) (*domain.EmailAccount, error)
}
