package infrastructure

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gigflow/domain"
)

type memJob struct {
	job domain.Job
	seq uint64
}

type memBid struct {
	bid domain.Bid
	seq uint64
}

// MemoryStore is a process-local domain.Store. Transactions run under an
// exclusive lock against a private copy of the data that replaces the live
// copy only when the transaction function succeeds.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  uint64
	jobs map[string]memJob
	bids map[string]memBid
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: map[string]memJob{},
		bids: map[string]memBid{},
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return domain.Conflictf("job %s already exists", job.ID)
	}
	s.seq++
	s.jobs[job.ID] = memJob{job: *job, seq: s.seq}
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	mj, ok := s.jobs[id]
	if !ok {
		return nil, domain.NotFoundf("job %s", id)
	}
	job := mj.job
	return &job, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(f.TitleContains)
	matched := make([]memJob, 0, len(s.jobs))
	for _, mj := range s.jobs {
		if f.OwnerID != "" && mj.job.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && mj.job.Status != f.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(mj.job.Title), needle) {
			continue
		}
		matched = append(matched, mj)
	}
	sort.Slice(matched, func(i, k int) bool {
		if f.NewestFirst {
			return matched[i].seq > matched[k].seq
		}
		return matched[i].seq < matched[k].seq
	})

	jobs := make([]domain.Job, len(matched))
	for i, mj := range matched {
		jobs[i] = mj.job
	}
	return jobs, nil
}

func (s *MemoryStore) UpdateOpenJob(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[job.ID]
	if !ok {
		return domain.NotFoundf("job %s", job.ID)
	}
	if !mj.job.IsOpen() {
		return domain.Conflictf("job %s is not open", job.ID)
	}
	mj.job.Title = job.Title
	mj.job.Description = job.Description
	mj.job.Budget = job.Budget
	mj.job.UpdatedAt = job.UpdatedAt
	s.jobs[job.ID] = mj
	return nil
}

func (s *MemoryStore) DeleteOpenJob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[id]
	if !ok {
		return domain.NotFoundf("job %s", id)
	}
	if !mj.job.IsOpen() {
		return domain.Conflictf("job %s is not open", id)
	}
	delete(s.jobs, id)
	for bidID, mb := range s.bids {
		if mb.bid.JobID == id {
			delete(s.bids, bidID)
		}
	}
	return nil
}

func (s *MemoryStore) GetBid(ctx context.Context, id string) (*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	mb, ok := s.bids[id]
	if !ok {
		return nil, domain.NotFoundf("bid %s", id)
	}
	bid := mb.bid
	return &bid, nil
}

func (s *MemoryStore) ListBids(ctx context.Context, f domain.BidFilter) ([]domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]memBid, 0)
	for _, mb := range s.bids {
		if f.JobID != "" && mb.bid.JobID != f.JobID {
			continue
		}
		if f.BidderID != "" && mb.bid.BidderID != f.BidderID {
			continue
		}
		matched = append(matched, mb)
	}
	sort.Slice(matched, func(i, k int) bool {
		if f.NewestFirst {
			return matched[i].seq > matched[k].seq
		}
		return matched[i].seq < matched[k].seq
	})

	bids := make([]domain.Bid, len(matched))
	for i, mb := range matched {
		bids[i] = mb.bid
	}
	return bids, nil
}

func (s *MemoryStore) UpdatePendingBid(ctx context.Context, bid *domain.Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.bids[bid.ID]
	if !ok {
		return domain.NotFoundf("bid %s", bid.ID)
	}
	if !mb.bid.IsPending() {
		return domain.Conflictf("bid %s is not pending", bid.ID)
	}
	mb.bid.Message = bid.Message
	mb.bid.Price = bid.Price
	mb.bid.UpdatedAt = bid.UpdatedAt
	s.bids[bid.ID] = mb
	return nil
}

func (s *MemoryStore) DeletePendingBid(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.bids[id]
	if !ok {
		return domain.NotFoundf("bid %s", id)
	}
	if !mb.bid.IsPending() {
		return domain.Conflictf("bid %s is not pending", id)
	}
	delete(s.bids, id)
	return nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		seq:  s.seq,
		jobs: make(map[string]memJob, len(s.jobs)),
		bids: make(map[string]memBid, len(s.bids)),
	}
	for k, v := range s.jobs {
		tx.jobs[k] = v
	}
	for k, v := range s.bids {
		tx.bids[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.seq, s.jobs, s.bids = tx.seq, tx.jobs, tx.bids
	return nil
}

// memTx works on copies owned by a single WithinTx call; the store lock is
// held for its whole lifetime.
type memTx struct {
	seq  uint64
	jobs map[string]memJob
	bids map[string]memBid
}

func (t *memTx) LockJob(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mj, ok := t.jobs[id]
	if !ok {
		return nil, domain.NotFoundf("job %s", id)
	}
	job := mj.job
	return &job, nil
}

func (t *memTx) GetBid(ctx context.Context, id string) (*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb, ok := t.bids[id]
	if !ok {
		return nil, domain.NotFoundf("bid %s", id)
	}
	bid := mb.bid
	return &bid, nil
}

func (t *memTx) CreateBid(ctx context.Context, bid *domain.Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, mb := range t.bids {
		if mb.bid.JobID == bid.JobID && mb.bid.BidderID == bid.BidderID {
			return domain.Conflictf("bidder %s already has a bid on job %s", bid.BidderID, bid.JobID)
		}
	}
	if _, ok := t.bids[bid.ID]; ok {
		return domain.Conflictf("bid %s already exists", bid.ID)
	}
	t.seq++
	t.bids[bid.ID] = memBid{bid: *bid, seq: t.seq}
	return nil
}

func (t *memTx) AssignJob(ctx context.Context, jobID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	mj, ok := t.jobs[jobID]
	if !ok || !mj.job.IsOpen() {
		return false, nil
	}
	mj.job.Status = domain.JobAssigned
	mj.job.UpdatedAt = at
	t.jobs[jobID] = mj
	return true, nil
}

func (t *memTx) HireBid(ctx context.Context, bidID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	mb, ok := t.bids[bidID]
	if !ok || !mb.bid.IsPending() {
		return false, nil
	}
	mb.bid.Status = domain.BidHired
	mb.bid.UpdatedAt = at
	t.bids[bidID] = mb
	return true, nil
}

func (t *memTx) RejectPendingBids(ctx context.Context, jobID, exceptBidID string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for id, mb := range t.bids {
		if mb.bid.JobID != jobID || id == exceptBidID || !mb.bid.IsPending() {
			continue
		}
		mb.bid.Status = domain.BidRejected
		mb.bid.UpdatedAt = at
		t.bids[id] = mb
		n++
	}
	return n, nil
}
