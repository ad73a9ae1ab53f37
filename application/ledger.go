package application

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gigflow/domain"
)

// BidLedger owns the bid lifecycle up to, but not including, hiring.
type BidLedger struct {
	store    domain.Store
	notifier domain.Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
}

func NewBidLedger(store domain.Store, notifier domain.Notifier, log *zap.SugaredLogger) *BidLedger {
	return &BidLedger{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SubmitBid records a pending bid and tells the job owner about it.
//
// The job row is locked while the bid is written, so a bid can never be
// created against a job that a concurrent hire has already assigned.
func (l *BidLedger) SubmitBid(ctx context.Context, bidderID string, in domain.NewBidInput) (*domain.Bid, error) {
	ctx, span := tracer.Start(ctx, "BidLedger.SubmitBid", trace.WithAttributes(attribute.String("job.id", in.JobID)))
	defer span.End()

	bid, job, err := l.submit(ctx, bidderID, in)
	bidSubmissions.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.log.Infow("bid submitted", "bid_id", bid.ID, "job_id", job.ID, "bidder_id", bidderID)
	l.notifier.Notify(ctx, domain.NewBidEvent{
		RecipientID: job.OwnerID,
		JobID:       job.ID,
		JobTitle:    job.Title,
		BidderID:    bidderID,
		BidID:       bid.ID,
	})
	return bid, nil
}

func (l *BidLedger) submit(ctx context.Context, bidderID string, in domain.NewBidInput) (*domain.Bid, *domain.Job, error) {
	if bidderID == "" {
		return nil, nil, domain.Validationf("bidder is required")
	}
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	now := l.now().UTC()
	bid := &domain.Bid{
		ID:        l.newID(),
		JobID:     in.JobID,
		BidderID:  bidderID,
		Message:   in.Message,
		Price:     in.Price,
		Status:    domain.BidPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var job *domain.Job
	err := l.store.WithinTx(ctx, func(tx domain.Tx) error {
		j, err := tx.LockJob(ctx, in.JobID)
		if err != nil {
			return err
		}
		if j.OwnerID == bidderID {
			return errors.Wrap(domain.ErrForbidden, "cannot bid on your own job")
		}
		if !j.IsOpen() {
			return domain.Conflictf("job %s is not open for bids", j.ID)
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, nil, domain.Transient(errors.Wrap(err, "submit bid"))
	}
	return bid, job, nil
}

// UpdateBid edits the message or price of the caller's pending bid.
func (l *BidLedger) UpdateBid(ctx context.Context, bidID, callerID string, patch domain.BidPatch) (*domain.Bid, error) {
	bid, err := l.pendingBid(ctx, bidID, callerID)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	patch.Apply(bid)
	bid.UpdatedAt = l.now().UTC()
	if err := l.store.UpdatePendingBid(ctx, bid); err != nil {
		return nil, domain.Transient(errors.Wrap(err, "update bid"))
	}
	return bid, nil
}

// WithdrawBid permanently removes the caller's pending bid.
func (l *BidLedger) WithdrawBid(ctx context.Context, bidID, callerID string) error {
	if _, err := l.pendingBid(ctx, bidID, callerID); err != nil {
		return err
	}
	if err := l.store.DeletePendingBid(ctx, bidID); err != nil {
		return domain.Transient(errors.Wrap(err, "withdraw bid"))
	}

	l.log.Infow("bid withdrawn", "bid_id", bidID, "bidder_id", callerID)
	return nil
}

// ListBidsForJob returns the bids of a job in submission order. Only the job
// owner may see them.
func (l *BidLedger) ListBidsForJob(ctx context.Context, jobID, callerID string) ([]domain.Bid, error) {
	job, err := l.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "get job"))
	}
	if job.OwnerID != callerID {
		return nil, errors.Wrapf(domain.ErrUnauthorized, "not authorized to view bids for job %s", jobID)
	}

	bids, err := l.store.ListBids(ctx, domain.BidFilter{JobID: jobID})
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "list job bids"))
	}
	return bids, nil
}

// ListBidsByBidder returns the bidder's bids, most recent first.
func (l *BidLedger) ListBidsByBidder(ctx context.Context, bidderID string) ([]domain.Bid, error) {
	bids, err := l.store.ListBids(ctx, domain.BidFilter{BidderID: bidderID, NewestFirst: true})
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "list bidder bids"))
	}
	return bids, nil
}

func (l *BidLedger) pendingBid(ctx context.Context, bidID, callerID string) (*domain.Bid, error) {
	bid, err := l.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "get bid"))
	}
	if bid.BidderID != callerID {
		return nil, errors.Wrapf(domain.ErrUnauthorized, "bid %s belongs to another user", bidID)
	}
	if !bid.IsPending() {
		return nil, domain.Conflictf("bid %s is %s", bidID, bid.Status)
	}
	return bid, nil
}
