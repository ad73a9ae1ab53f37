package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gigflow/domain"
	"gigflow/infrastructure"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) hired() []domain.HiredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.HiredEvent
	for _, ev := range r.events {
		if h, ok := ev.(domain.HiredEvent); ok {
			out = append(out, h)
		}
	}
	return out
}

func (r *recordingNotifier) newBids() []domain.NewBidEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NewBidEvent
	for _, ev := range r.events {
		if b, ok := ev.(domain.NewBidEvent); ok {
			out = append(out, b)
		}
	}
	return out
}

// failingStore wraps a healthy memory store transaction: RejectPendingBids
// fails with err when set, and HireBid reports a lost race when staleBid is set.
type failingStore struct {
	*infrastructure.MemoryStore
	err      error
	staleBid bool
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.MemoryStore.WithinTx(ctx, func(tx domain.Tx) error {
		return fn(&failingTx{Tx: tx, err: s.err, staleBid: s.staleBid})
	})
}

type failingTx struct {
	domain.Tx
	err      error
	staleBid bool
}

func (t *failingTx) HireBid(ctx context.Context, bidID string, at time.Time) (bool, error) {
	if t.staleBid {
		return false, nil
	}
	return t.Tx.HireBid(ctx, bidID, at)
}

func (t *failingTx) RejectPendingBids(ctx context.Context, jobID, exceptBidID string, at time.Time) (int64, error) {
	if t.err != nil {
		return 0, t.err
	}
	return t.Tx.RejectPendingBids(ctx, jobID, exceptBidID, at)
}

type fixture struct {
	store  domain.Store
	notes  *recordingNotifier
	jobs   *JobRegistry
	bids   *BidLedger
	hiring *HiringCoordinator

	mu    sync.Mutex
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, infrastructure.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store domain.Store) *fixture {
	log := zaptest.NewLogger(t).Sugar()
	notes := &recordingNotifier{}
	f := &fixture{
		store:  store,
		notes:  notes,
		jobs:   NewJobRegistry(store, log),
		bids:   NewBidLedger(store, notes, log),
		hiring: NewHiringCoordinator(store, notes, log),
		clock:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	tick := func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.jobs.now = tick
	f.bids.now = tick
	f.hiring.now = tick
	return f
}

func (f *fixture) job(t *testing.T, owner, title string, budget float64) *domain.Job {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), owner, domain.NewJobInput{
		Title:       title,
		Description: "description of " + title,
		Budget:      budget,
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) bid(t *testing.T, jobID, bidder string, price float64) *domain.Bid {
	t.Helper()
	bid, err := f.bids.SubmitBid(context.Background(), bidder, domain.NewBidInput{
		JobID:   jobID,
		Message: fmt.Sprintf("%s can do it for %.0f", bidder, price),
		Price:   price,
	})
	require.NoError(t, err)
	return bid
}

func (f *fixture) getBid(t *testing.T, id string) *domain.Bid {
	t.Helper()
	bid, err := f.store.GetBid(context.Background(), id)
	require.NoError(t, err)
	return bid
}

func (f *fixture) getJob(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}
