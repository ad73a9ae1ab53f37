package domain

import (
	"context"
	"fmt"
	"time"
)

type EventType string

const (
	EventNewBid EventType = "NEW_BID_NOTIFICATION"
	EventHired  EventType = "HIRED_NOTIFICATION"
)

// Event is something the core tells a single recipient about.
type Event interface {
	Type() EventType
	Recipient() string
}

// NewBidEvent is sent to a job owner when a bid lands on their job.
type NewBidEvent struct {
	RecipientID string `json:"recipientId"`
	JobID       string `json:"jobId"`
	JobTitle    string `json:"jobTitle"`
	BidderID    string `json:"bidderId"`
	BidID       string `json:"bidId"`
}

func (e NewBidEvent) Type() EventType   { return EventNewBid }
func (e NewBidEvent) Recipient() string { return e.RecipientID }

// HiredEvent is sent to the winning bidder once a hire has committed.
type HiredEvent struct {
	RecipientID string `json:"recipientId"`
	JobID       string `json:"jobId"`
	JobTitle    string `json:"jobTitle"`
	BidderID    string `json:"bidderId"`
	Message     string `json:"message"`
}

func (e HiredEvent) Type() EventType   { return EventHired }
func (e HiredEvent) Recipient() string { return e.RecipientID }

// NewHiredEvent builds the notification for bidderID being hired on job.
func NewHiredEvent(job *Job, bidderID string) HiredEvent {
	return HiredEvent{
		RecipientID: bidderID,
		JobID:       job.ID,
		JobTitle:    job.Title,
		BidderID:    bidderID,
		Message:     fmt.Sprintf("You have been hired for %q!", job.Title),
	}
}

// Notification is the envelope handed to a sink.
type Notification struct {
	Type        EventType   `json:"type"`
	RecipientID string      `json:"recipientId"`
	Data        interface{} `json:"data"`
	Timestamp   time.Time   `json:"timestamp"`
}

func NewNotification(ev Event, at time.Time) Notification {
	return Notification{
		Type:        ev.Type(),
		RecipientID: ev.Recipient(),
		Data:        ev,
		Timestamp:   at,
	}
}

// Notifier accepts events from the core. Notify must not block on delivery
// and has no failure mode visible to the caller.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotificationSink delivers envelopes to recipients over some transport.
type NotificationSink interface {
	Deliver(ctx context.Context, n Notification) error
}
