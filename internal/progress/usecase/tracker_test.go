package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"invoice-backend/internal/progress/domain"
	"invoice-backend/internal/progress/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRepository wraps the memory store and remembers every save.
type recordingRepository struct {
	repository.ProgressRepository
	mu    sync.Mutex
	saved []domain.Progress
}

func (r *recordingRepository) Save(ctx context.Context, p *domain.Progress) error {
	r.mu.Lock()
	r.saved = append(r.saved, *p)
	r.mu.Unlock()
	return r.ProgressRepository.Save(ctx, p)
}

func newTestTracker(t *testing.T, buffer int) (Tracker, *recordingRepository) {
	t.Helper()
	repo := &recordingRepository{ProgressRepository: repository.NewMemoryProgressRepository()}
	tr := NewTracker(repo, buffer)
	tr.Start()
	t.Cleanup(tr.Stop)
	return tr, repo
}

func TestBeginIsVisibleImmediately(t *testing.T) {
	tr, _ := newTestTracker(t, 4)

	p, err := tr.Begin(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, p.JobID)

	got, err := tr.Get(context.Background(), p.JobID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StateIdle, got.State)
	assert.Equal(t, "u1", got.UserID)
}

func TestReportsAreAppliedInOrder(t *testing.T) {
	tr, repo := newTestTracker(t, 2)
	ctx := context.Background()

	p, err := tr.Begin(ctx, "u1")
	require.NoError(t, err)

	snap := *p
	snap.State = domain.StateProcessing
	snap.Total = 50
	for i := 1; i <= 50; i++ {
		snap.Current = i
		snap.CurrentFile = fmt.Sprintf("f%d.pdf", i)
		tr.Report(snap)
	}
	snap.State = domain.StateComplete
	snap.RedirectURL = "/invoices"
	tr.Report(snap)
	tr.Flush()

	repo.mu.Lock()
	saved := append([]domain.Progress(nil), repo.saved...)
	repo.mu.Unlock()

	require.Len(t, saved, 52)
	for i := 1; i <= 50; i++ {
		assert.Equal(t, i, saved[i].Current)
	}
	assert.Equal(t, domain.StateComplete, saved[51].State)

	got, err := tr.Get(ctx, p.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateComplete, got.State)
	assert.Equal(t, 50, got.Current)
	assert.True(t, got.Finished())
}

func TestLatestForUserTracksNewestJob(t *testing.T) {
	tr, _ := newTestTracker(t, 4)
	ctx := context.Background()

	first, err := tr.Begin(ctx, "u1")
	require.NoError(t, err)
	second, err := tr.Begin(ctx, "u1")
	require.NoError(t, err)
	require.NotEqual(t, first.JobID, second.JobID)

	latest, err := tr.LatestForUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.JobID, latest.JobID)

	none, err := tr.LatestForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestConcurrentJobsDoNotInterfere(t *testing.T) {
	tr, _ := newTestTracker(t, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	jobs := make([]string, 5)
	for i := range jobs {
		p, err := tr.Begin(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		jobs[i] = p.JobID

		wg.Add(1)
		go func(p domain.Progress, n int) {
			defer wg.Done()
			p.State = domain.StateProcessing
			for j := 1; j <= n; j++ {
				p.Current = j
				tr.Report(p)
			}
		}(*p, 10+i)
	}
	wg.Wait()
	tr.Flush()

	for i, id := range jobs {
		got, err := tr.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10+i, got.Current)
	}
}

func TestPruneRemovesStaleJobs(t *testing.T) {
	tr, _ := newTestTracker(t, 4)
	ctx := context.Background()

	p, err := tr.Begin(ctx, "u1")
	require.NoError(t, err)

	removed, err := tr.Prune(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := tr.Get(ctx, p.JobID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReportAfterStopDoesNotBlock(t *testing.T) {
	repo := repository.NewMemoryProgressRepository()
	tr := NewTracker(repo, 1)
	tr.Start()
	tr.Stop()

	done := make(chan struct{})
	go func() {
		tr.Report(domain.Progress{JobID: "x"})
		tr.Report(domain.Progress{JobID: "y"})
		tr.Flush()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("report blocked after stop")
	}
}
