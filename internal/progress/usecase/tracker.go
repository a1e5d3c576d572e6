package usecase

import (
	"context"
	"sync"
	"time"

	"invoice-backend/internal/progress/domain"
	"invoice-backend/internal/progress/repository"
	"invoice-backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker owns job progress. Writers hand snapshots to a single goroutine that
// applies them to the store in the order they were reported, so readers never
// observe a half-written record or an older state overwriting a newer one.
type Tracker interface {
	Start()
	Stop()

	// Begin registers a new idle job for userID and returns its snapshot.
	Begin(ctx context.Context, userID string) (*domain.Progress, error)

	// Report queues a snapshot. It blocks only while the queue is full.
	Report(p domain.Progress)

	// Flush waits until every snapshot reported so far has been applied.
	Flush()

	Get(ctx context.Context, jobID string) (*domain.Progress, error)
	LatestForUser(ctx context.Context, userID string) (*domain.Progress, error)
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

type update struct {
	progress domain.Progress
	flush    bool
	ack      chan struct{}
}

type tracker struct {
	repo     repository.ProgressRepository
	updates  chan update
	quit     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	log      *zap.Logger
}

func NewTracker(repo repository.ProgressRepository, buffer int) Tracker {
	if buffer <= 0 {
		buffer = 64
	}
	return &tracker{
		repo:    repo,
		updates: make(chan update, buffer),
		quit:    make(chan struct{}),
		log:     logger.Named("progress"),
	}
}

func (t *tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.wg.Add(1)
	go t.loop()
	t.log.Info("progress tracker started")
}

// Stop applies what is already queued and then exits the loop.
func (t *tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.quit)
	})
	t.wg.Wait()
}

func (t *tracker) loop() {
	defer t.wg.Done()
	for {
		select {
		case u := <-t.updates:
			t.apply(u)
		case <-t.quit:
			for {
				select {
				case u := <-t.updates:
					t.apply(u)
				default:
					return
				}
			}
		}
	}
}

func (t *tracker) apply(u update) {
	if !u.flush {
		p := u.progress
		p.UpdatedAt = time.Now()
		if err := t.repo.Save(context.Background(), &p); err != nil {
			t.log.Error("save progress failed", zap.String("job_id", p.JobID), zap.Error(err))
		}
	}
	if u.ack != nil {
		close(u.ack)
	}
}

func (t *tracker) send(u update) bool {
	select {
	case t.updates <- u:
		return true
	case <-t.quit:
		return false
	}
}

func (t *tracker) wait(ack chan struct{}) {
	select {
	case <-ack:
	case <-t.quit:
	}
}

func (t *tracker) Begin(ctx context.Context, userID string) (*domain.Progress, error) {
	p := domain.Progress{
		JobID:  uuid.New().String(),
		UserID: userID,
		State:  domain.StateIdle,
	}
	ack := make(chan struct{})
	if !t.send(update{progress: p, ack: ack}) {
		return nil, context.Canceled
	}
	select {
	case <-ack:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &p, nil
}

func (t *tracker) Report(p domain.Progress) {
	if !t.send(update{progress: p}) {
		t.log.Warn("progress dropped after stop", zap.String("job_id", p.JobID), zap.String("state", string(p.State)))
	}
}

func (t *tracker) Flush() {
	ack := make(chan struct{})
	if t.send(update{flush: true, ack: ack}) {
		t.wait(ack)
	}
}

func (t *tracker) Get(ctx context.Context, jobID string) (*domain.Progress, error) {
	return t.repo.Get(ctx, jobID)
}

func (t *tracker) LatestForUser(ctx context.Context, userID string) (*domain.Progress, error) {
	return t.repo.LatestForUser(ctx, userID)
}

func (t *tracker) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	return t.repo.Prune(ctx, cutoff)
}
