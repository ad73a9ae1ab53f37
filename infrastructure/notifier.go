package infrastructure

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gigflow/domain"
)

const deliverTimeout = 5 * time.Second

// AsyncNotifier decouples the core from delivery. Notify only enqueues; a
// single worker hands envelopes to the sink in order. When the buffer is full
// the event is dropped and counted.
type AsyncNotifier struct {
	sink  domain.NotificationSink
	log   *zap.SugaredLogger
	queue chan domain.Notification
	now   func() time.Time
}

func NewAsyncNotifier(sink domain.NotificationSink, log *zap.SugaredLogger, buffer int) *AsyncNotifier {
	return &AsyncNotifier{
		sink:  sink,
		log:   log,
		queue: make(chan domain.Notification, buffer),
		now:   time.Now,
	}
}

func (n *AsyncNotifier) Notify(_ context.Context, ev domain.Event) {
	msg := domain.NewNotification(ev, n.now().UTC())
	select {
	case n.queue <- msg:
		notificationsQueued.WithLabelValues(string(msg.Type), "queued").Inc()
	default:
		notificationsQueued.WithLabelValues(string(msg.Type), "dropped").Inc()
		n.log.Warnw("notification dropped, queue full",
			"type", msg.Type,
			"recipient_id", msg.RecipientID,
		)
	}
}

// Start runs the worker on its own context. The returned stop function
// cancels it and waits until everything queued before the call is delivered.
func (n *AsyncNotifier) Start() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Run delivers queued notifications until ctx is done, then flushes what is
// already queued.
func (n *AsyncNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.flush()
			return
		case msg := <-n.queue:
			n.deliver(context.Background(), msg)
		}
	}
}

func (n *AsyncNotifier) flush() {
	for {
		select {
		case msg := <-n.queue:
			n.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (n *AsyncNotifier) deliver(parent context.Context, msg domain.Notification) {
	ctx, cancel := context.WithTimeout(parent, deliverTimeout)
	defer cancel()

	if err := n.sink.Deliver(ctx, msg); err != nil {
		notificationsDelivered.WithLabelValues(string(msg.Type), "failed").Inc()
		n.log.Warnw("notification delivery failed",
			"type", msg.Type,
			"recipient_id", msg.RecipientID,
			"error", err,
		)
		return
	}
	notificationsDelivered.WithLabelValues(string(msg.Type), "ok").Inc()
}
