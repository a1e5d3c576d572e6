package repository

import (
	"context"
	"sync"
	"time"

	"invoice-backend/internal/progress/domain"
)

type memoryProgressRepository struct {
	mu     sync.RWMutex
	jobs   map[string]domain.Progress
	latest map[string]string // userID -> jobID
}

func NewMemoryProgressRepository() ProgressRepository {
	return &memoryProgressRepository{
		jobs:   make(map[string]domain.Progress),
		latest: make(map[string]string),
	}
}

func (r *memoryProgressRepository) Save(ctx context.Context, p *domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[p.JobID] = *p
	if p.UserID != "" {
		r.latest[p.UserID] = p.JobID
	}
	return nil
}

func (r *memoryProgressRepository) Get(ctx context.Context, jobID string) (*domain.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryProgressRepository) LatestForUser(ctx context.Context, userID string) (*domain.Progress, error) {
	r.mu.RLock()
	jobID, ok := r.latest[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.Get(ctx, jobID)
}

func (r *memoryProgressRepository) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.jobs[jobID]; ok {
		delete(r.jobs, jobID)
		if r.latest[p.UserID] == jobID {
			delete(r.latest, p.UserID)
		}
	}
	return nil
}

func (r *memoryProgressRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.jobs {
		if p.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			if r.latest[p.UserID] == id {
				delete(r.latest, p.UserID)
			}
			removed++
		}
	}
	return removed, nil
}
