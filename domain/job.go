package domain

import (
	"strings"
	"time"
)

// MaxIdentityLen bounds caller ids; it matches the owner_id and bidder_id columns.
const MaxIdentityLen = 64

type JobStatus string

const (
	JobOpen     JobStatus = "open"
	JobAssigned JobStatus = "assigned"
)

func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobOpen, JobAssigned:
		return true
	default:
		return false
	}
}

// Job is a unit of work posted by an owner. Status only ever moves open -> assigned.
type Job struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:64;not null;index" json:"ownerId"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Budget      float64   `gorm:"not null" json:"budget"`
	Status      JobStatus `gorm:"type:enum('open','assigned');default:'open';not null;index" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (j *Job) IsOpen() bool { return j.Status == JobOpen }

// NewJobInput carries the caller supplied fields of a new job.
type NewJobInput struct {
	Title       string  `validate:"required,max=100"`
	Description string  `validate:"required,max=1000"`
	Budget      float64 `validate:"gte=0"`
}

// JobPatch lists the caller editable fields. Nil fields are left unchanged.
// Status is deliberately absent: only a hire can change it.
type JobPatch struct {
	Title       *string  `validate:"omitempty,max=100"`
	Description *string  `validate:"omitempty,max=1000"`
	Budget      *float64 `validate:"omitempty,gte=0"`
}

func (p *JobPatch) normalize() {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
}

// Validate normalizes the patch and checks it.
func (p *JobPatch) Validate() error {
	p.normalize()
	if p.Title != nil && *p.Title == "" {
		return Validationf("title must not be empty")
	}
	if p.Description != nil && *p.Description == "" {
		return Validationf("description must not be empty")
	}
	return validateStruct(p)
}

// Apply copies the set fields onto j.
func (p JobPatch) Apply(j *Job) {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Budget != nil {
		j.Budget = *p.Budget
	}
}

// Validate normalizes the input and checks it.
func (in *NewJobInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return validateStruct(in)
}

// JobFilter selects jobs for listing. Zero fields do not filter.
type JobFilter struct {
	OwnerID string
	Status  JobStatus
	// TitleContains is matched case-insensitively as a plain substring.
	TitleContains string
	// NewestFirst orders by creation time descending; otherwise insertion order.
	NewestFirst bool
}
