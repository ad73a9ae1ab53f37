package application

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gigflow/domain"
)

var tracer = otel.Tracer("gigflow/application")

// HireResult describes a committed hire.
type HireResult struct {
	JobID        string    `json:"jobId"`
	BidID        string    `json:"bidId"`
	BidderID     string    `json:"bidderId"`
	RejectedBids int64     `json:"rejectedBids"`
	HiredAt      time.Time `json:"hiredAt"`
}

// HiringCoordinator performs the hire: one bid becomes hired, its job becomes
// assigned and every other pending bid of that job becomes rejected, all in a
// single storage transaction.
type HiringCoordinator struct {
	store    domain.Store
	notifier domain.Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewHiringCoordinator(store domain.Store, notifier domain.Notifier, log *zap.SugaredLogger) *HiringCoordinator {
	return &HiringCoordinator{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Hire selects bidID on behalf of callerID.
//
// Preconditions are checked in order (bid exists, job exists, caller owns the
// job, job is open) inside the transaction, after the job row is locked. The
// writes themselves are conditional on the expected source status, so a
// concurrent winner is detected at commit as well. The hired notification is
// emitted only after commit.
func (c *HiringCoordinator) Hire(ctx context.Context, bidID, callerID string) (*HireResult, error) {
	ctx, span := tracer.Start(ctx, "HiringCoordinator.Hire", trace.WithAttributes(
		attribute.String("bid.id", bidID),
		attribute.String("caller.id", callerID),
	))
	defer span.End()

	start := time.Now()
	result, job, err := c.hire(ctx, bidID, callerID)
	hireLatency.Observe(time.Since(start).Seconds())
	hireAttempts.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hire failed")
		if errors.Is(err, domain.ErrTransient) {
			c.log.Warnw("hire rolled back", "bid_id", bidID, "caller_id", callerID, "error", err)
		}
		return nil, err
	}

	rejectedBids.Add(float64(result.RejectedBids))
	span.SetAttributes(
		attribute.String("job.id", result.JobID),
		attribute.Int64("bids.rejected", result.RejectedBids),
	)
	c.log.Infow("bid hired",
		"job_id", result.JobID,
		"bid_id", result.BidID,
		"bidder_id", result.BidderID,
		"rejected", result.RejectedBids,
	)

	c.notifier.Notify(ctx, domain.NewHiredEvent(job, result.BidderID))
	return result, nil
}

func (c *HiringCoordinator) hire(ctx context.Context, bidID, callerID string) (*HireResult, *domain.Job, error) {
	var (
		result *HireResult
		job    *domain.Job
	)
	err := c.store.WithinTx(ctx, func(tx domain.Tx) error {
		bid, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		j, err := tx.LockJob(ctx, bid.JobID)
		if err != nil {
			return err
		}
		if j.OwnerID != callerID {
			return errors.Wrapf(domain.ErrUnauthorized, "not authorized to hire for job %s", j.ID)
		}
		if !j.IsOpen() {
			return domain.Conflictf("job %s is already assigned", j.ID)
		}

		at := c.now().UTC()
		assigned, err := tx.AssignJob(ctx, j.ID, at)
		if err != nil {
			return err
		}
		if !assigned {
			return domain.Conflictf("job %s is already assigned", j.ID)
		}
		hired, err := tx.HireBid(ctx, bid.ID, at)
		if err != nil {
			return err
		}
		if !hired {
			return domain.Conflictf("bid %s is no longer pending", bid.ID)
		}
		rejected, err := tx.RejectPendingBids(ctx, j.ID, bid.ID, at)
		if err != nil {
			return err
		}

		j.Status = domain.JobAssigned
		j.UpdatedAt = at
		job = j
		result = &HireResult{
			JobID:        j.ID,
			BidID:        bid.ID,
			BidderID:     bid.BidderID,
			RejectedBids: rejected,
			HiredAt:      at,
		}
		return nil
	})
	if err != nil {
		return nil, nil, domain.Transient(errors.Wrap(err, "hire"))
	}
	return result, job, nil
}
