package domain

import (
	"context"
	"time"
)

// Store is the persistence contract of the core. Implementations return
// ErrNotFound for absent rows and ErrConflict for state guards that did not
// hold; every other error is treated as a storage failure.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]Job, error)
	// UpdateOpenJob writes the editable fields of job only while it is still open.
	UpdateOpenJob(ctx context.Context, job *Job) error
	// DeleteOpenJob removes an open job together with its bids.
	DeleteOpenJob(ctx context.Context, id string) error

	GetBid(ctx context.Context, id string) (*Bid, error)
	ListBids(ctx context.Context, f BidFilter) ([]Bid, error)
	// UpdatePendingBid writes message and price only while the bid is pending.
	UpdatePendingBid(ctx context.Context, bid *Bid) error
	// DeletePendingBid removes the bid only while it is pending.
	DeletePendingBid(ctx context.Context, id string) error

	// WithinTx runs fn as one atomic unit. Any error returned by fn, or a
	// cancelled ctx, rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a Store transaction. Reads of
// a job through LockJob hold that job until the transaction ends, so writers
// on the same job serialize.
type Tx interface {
	LockJob(ctx context.Context, id string) (*Job, error)
	GetBid(ctx context.Context, id string) (*Bid, error)
	// CreateBid fails with ErrConflict when (JobID, BidderID) already has a bid.
	CreateBid(ctx context.Context, bid *Bid) error
	// AssignJob moves an open job to assigned and reports whether it did.
	AssignJob(ctx context.Context, jobID string, at time.Time) (bool, error)
	// HireBid moves a pending bid to hired and reports whether it did.
	HireBid(ctx context.Context, bidID string, at time.Time) (bool, error)
	// RejectPendingBids moves every other pending bid of the job to rejected.
	RejectPendingBids(ctx context.Context, jobID, exceptBidID string, at time.Time) (int64, error)
}
