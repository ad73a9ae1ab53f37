package domain

import "time"

type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidHired    BidStatus = "hired"
	BidRejected BidStatus = "rejected"
)

func ValidBidStatus(s BidStatus) bool {
	switch s {
	case BidPending, BidHired, BidRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s BidStatus) Terminal() bool {
	return s == BidHired || s == BidRejected
}

// Bid is a bidder's proposal against a job. At most one bid exists per (job, bidder).
type Bid struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	JobID     string    `gorm:"size:36;not null;uniqueIndex:idx_bids_job_bidder,priority:1;index:idx_bids_job_status,priority:1" json:"jobId"`
	BidderID  string    `gorm:"size:64;not null;uniqueIndex:idx_bids_job_bidder,priority:2;index" json:"bidderId"`
	Message   string    `gorm:"size:500;not null" json:"message"`
	Price     float64   `gorm:"not null" json:"price"`
	Status    BidStatus `gorm:"type:enum('pending','hired','rejected');default:'pending';not null;index:idx_bids_job_status,priority:2" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Bid) IsPending() bool { return b.Status == BidPending }

// NewBidInput carries the caller supplied fields of a new bid.
type NewBidInput struct {
	JobID   string  `validate:"required"`
	Message string  `validate:"required,max=500"`
	Price   float64 `validate:"gte=0"`
}

func (in *NewBidInput) Validate() error {
	return validateStruct(in)
}

// BidPatch lists the bidder editable fields of a pending bid.
type BidPatch struct {
	Message *string  `validate:"omitempty,max=500"`
	Price   *float64 `validate:"omitempty,gte=0"`
}

func (p *BidPatch) Validate() error {
	if p.Message != nil && *p.Message == "" {
		return Validationf("message must not be empty")
	}
	return validateStruct(p)
}

func (p BidPatch) Apply(b *Bid) {
	if p.Message != nil {
		b.Message = *p.Message
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
}

// BidFilter selects bids for listing. Zero fields do not filter.
type BidFilter struct {
	JobID       string
	BidderID    string
	NewestFirst bool
}
