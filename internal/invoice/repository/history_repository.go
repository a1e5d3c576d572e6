package repository

import (
	"errors"
	"time"

	"invoice-backend/internal/invoice/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(history *domain.InvoiceHistory) error {
	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	if history.ProcessedAt.IsZero() {
		history.ProcessedAt = time.Now()
	}
	return r.db.Create(history).Error
}

func (r *historyRepository) Update(history *domain.InvoiceHistory) error {
	return r.db.Save(history).Error
}

func (r *historyRepository) FindByID(id string) (*domain.InvoiceHistory, error) {
	var history domain.InvoiceHistory
	err := r.db.Where("id = ?", id).First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &history, nil
}

func (r *historyRepository) ListByUser(userID string, limit int) ([]*domain.InvoiceHistory, error) {
	var histories []*domain.InvoiceHistory
	query := r.db.Where("user_id = ?", userID).Order("processed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&histories).Error
	return histories, err
}
