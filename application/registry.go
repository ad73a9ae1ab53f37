package application

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigflow/domain"
)

// JobRegistry owns the job lifecycle outside of hiring: creation, owner edits
// and deletion while open, and the read paths.
type JobRegistry struct {
	store domain.Store
	log   *zap.SugaredLogger
	now   func() time.Time
	newID func() string
}

func NewJobRegistry(store domain.Store, log *zap.SugaredLogger) *JobRegistry {
	return &JobRegistry{
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (r *JobRegistry) CreateJob(ctx context.Context, ownerID string, in domain.NewJobInput) (*domain.Job, error) {
	if ownerID == "" {
		return nil, domain.Validationf("owner is required")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	job := &domain.Job{
		ID:          r.newID(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Status:      domain.JobOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, domain.Transient(errors.Wrap(err, "create job"))
	}

	r.log.Infow("job created", "job_id", job.ID, "owner_id", ownerID)
	return job, nil
}

func (r *JobRegistry) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "get job"))
	}
	return job, nil
}

// UpdateJob applies patch for the owner. Assigned jobs are frozen.
func (r *JobRegistry) UpdateJob(ctx context.Context, jobID, callerID string, patch domain.JobPatch) (*domain.Job, error) {
	job, err := r.ownedJob(ctx, jobID, callerID)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if !job.IsOpen() {
		return nil, domain.Conflictf("job %s is already assigned", jobID)
	}

	patch.Apply(job)
	job.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateOpenJob(ctx, job); err != nil {
		return nil, domain.Transient(errors.Wrap(err, "update job"))
	}
	return job, nil
}

// DeleteJob removes an open job and its bids for the owner.
func (r *JobRegistry) DeleteJob(ctx context.Context, jobID, callerID string) error {
	job, err := r.ownedJob(ctx, jobID, callerID)
	if err != nil {
		return err
	}
	if !job.IsOpen() {
		return domain.Conflictf("job %s is already assigned", jobID)
	}
	if err := r.store.DeleteOpenJob(ctx, jobID); err != nil {
		return domain.Transient(errors.Wrap(err, "delete job"))
	}

	r.log.Infow("job deleted", "job_id", jobID, "owner_id", callerID)
	return nil
}

// ListOpenJobs returns open jobs in insertion order, optionally narrowed to
// titles containing search (case-insensitive).
func (r *JobRegistry) ListOpenJobs(ctx context.Context, search string) ([]domain.Job, error) {
	jobs, err := r.store.ListJobs(ctx, domain.JobFilter{
		Status:        domain.JobOpen,
		TitleContains: search,
	})
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "list open jobs"))
	}
	return jobs, nil
}

// ListMyJobs returns every job owned by ownerID, newest first.
func (r *JobRegistry) ListMyJobs(ctx context.Context, ownerID string) ([]domain.Job, error) {
	jobs, err := r.store.ListJobs(ctx, domain.JobFilter{OwnerID: ownerID, NewestFirst: true})
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "list owner jobs"))
	}
	return jobs, nil
}

func (r *JobRegistry) ownedJob(ctx context.Context, jobID, callerID string) (*domain.Job, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, domain.Transient(errors.Wrap(err, "get job"))
	}
	if job.OwnerID != callerID {
		return nil, errors.Wrapf(domain.ErrUnauthorized, "job %s belongs to another user", jobID)
	}
	return job, nil
}
