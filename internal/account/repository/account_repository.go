package repository

import (
	"errors"
	"time"

	"invoice-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *domain.EmailAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*domain.EmailAccount, error) {
	var account domain.EmailAccount
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByUserID(userID string) ([]*domain.EmailAccount, error) {
	var accounts []*domain.EmailAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) FindByAddress(userID, address string) (*domain.EmailAccount, error) {
	var account domain.EmailAccount
	err := r.db.Where("user_id = ? AND email_address = ?", userID, address).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(account *domain.EmailAccount) error {
	return r.db.Save(account).Error
}

func (r *accountRepository) Delete(id string) error {
	return r.db.Delete(&domain.EmailAccount{}, "id = ?", id).Error
}
