package infrastructure

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigflow/domain"
)

const mysqlDuplicateEntry = 1062

// GormStore implements domain.Store on MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateJob(ctx context.Context, job *domain.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *GormStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return firstJob(s.db.WithContext(ctx), id)
}

func (s *GormStore) ListJobs(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	q := s.db.WithContext(ctx).Model(&domain.Job{})
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TitleContains != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+escapeLike(strings.ToLower(f.TitleContains))+"%")
	}
	if f.NewestFirst {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("created_at ASC")
	}

	jobs := []domain.Job{}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *GormStore) UpdateOpenJob(ctx context.Context, job *domain.Job) error {
	res := s.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", job.ID, domain.JobOpen).
		Updates(map[string]interface{}{
			"title":       job.Title,
			"description": job.Description,
			"budget":      job.Budget,
			"updated_at":  job.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conflictf("job %s is not open", job.ID)
	}
	return nil
}

func (s *GormStore) DeleteOpenJob(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, domain.JobOpen).Delete(&domain.Job{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := firstJob(tx, id); err != nil {
				return err
			}
			return domain.Conflictf("job %s is not open", id)
		}
		return tx.Where("job_id = ?", id).Delete(&domain.Bid{}).Error
	})
}

func (s *GormStore) GetBid(ctx context.Context, id string) (*domain.Bid, error) {
	return firstBid(s.db.WithContext(ctx), id)
}

func (s *GormStore) ListBids(ctx context.Context, f domain.BidFilter) ([]domain.Bid, error) {
	q := s.db.WithContext(ctx).Model(&domain.Bid{})
	if f.JobID != "" {
		q = q.Where("job_id = ?", f.JobID)
	}
	if f.BidderID != "" {
		q = q.Where("bidder_id = ?", f.BidderID)
	}
	if f.NewestFirst {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("created_at ASC")
	}

	bids := []domain.Bid{}
	if err := q.Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (s *GormStore) UpdatePendingBid(ctx context.Context, bid *domain.Bid) error {
	res := s.db.WithContext(ctx).Model(&domain.Bid{}).
		Where("id = ? AND status = ?", bid.ID, domain.BidPending).
		Updates(map[string]interface{}{
			"message":    bid.Message,
			"price":      bid.Price,
			"updated_at": bid.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.notPending(ctx, bid.ID)
	}
	return nil
}

func (s *GormStore) DeletePendingBid(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, domain.BidPending).
		Delete(&domain.Bid{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.notPending(ctx, id)
	}
	return nil
}

// notPending explains a conditional bid write that matched no row.
func (s *GormStore) notPending(ctx context.Context, id string) error {
	if _, err := firstBid(s.db.WithContext(ctx), id); err != nil {
		return err
	}
	return domain.Conflictf("bid %s is not pending", id)
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockJob(ctx context.Context, id string) (*domain.Job, error) {
	return firstJob(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (t *gormTx) GetBid(ctx context.Context, id string) (*domain.Bid, error) {
	return firstBid(t.db.WithContext(ctx), id)
}

func (t *gormTx) CreateBid(ctx context.Context, bid *domain.Bid) error {
	err := t.db.WithContext(ctx).Create(bid).Error
	if isDuplicateKey(err) {
		return domain.Conflictf("bidder %s already has a bid on job %s", bid.BidderID, bid.JobID)
	}
	return err
}

func (t *gormTx) AssignJob(ctx context.Context, jobID string, at time.Time) (bool, error) {
	res := t.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", jobID, domain.JobOpen).
		Updates(map[string]interface{}{"status": domain.JobAssigned, "updated_at": at})
	return res.RowsAffected == 1, res.Error
}

func (t *gormTx) HireBid(ctx context.Context, bidID string, at time.Time) (bool, error) {
	res := t.db.WithContext(ctx).Model(&domain.Bid{}).
		Where("id = ? AND status = ?", bidID, domain.BidPending).
		Updates(map[string]interface{}{"status": domain.BidHired, "updated_at": at})
	return res.RowsAffected == 1, res.Error
}

func (t *gormTx) RejectPendingBids(ctx context.Context, jobID, exceptBidID string, at time.Time) (int64, error) {
	res := t.db.WithContext(ctx).Model(&domain.Bid{}).
		Where("job_id = ? AND id <> ? AND status = ?", jobID, exceptBidID, domain.BidPending).
		Updates(map[string]interface{}{"status": domain.BidRejected, "updated_at": at})
	return res.RowsAffected, res.Error
}

func firstJob(db *gorm.DB, id string) (*domain.Job, error) {
	var job domain.Job
	if err := db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("job %s", id)
		}
		return nil, err
	}
	return &job, nil
}

func firstBid(db *gorm.DB, id string) (*domain.Bid, error) {
	var bid domain.Bid
	if err := db.Where("id = ?", id).First(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("bid %s", id)
		}
		return nil, err
	}
	return &bid, nil
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
