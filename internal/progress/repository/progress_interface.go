package repository

import (
	"context"
	"time"

	"invoice-backend/internal/progress/domain"
)

// ProgressRepository stores job snapshots. Get and LatestForUser return
// (nil, nil) when nothing is stored.
type ProgressRepository interface {
	Save(ctx context.Context, p *domain.Progress) error
	Get(ctx context.Context, jobID string) (*domain.Progress, error)
	LatestForUser(ctx context.Context, userID string) (*domain.Progress, error)
	Delete(ctx context.Context, jobID string) error

	// Prune removes snapshots last updated before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}
