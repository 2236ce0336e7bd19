package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"vrpcore/internal/store"
)

// Run event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
	EventRunCancelled = "run.cancelled"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Event is the JSON body of a webhook.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	TenantID string    `json:"tenantId"`
	TS       time.Time `json:"ts"`
	Data     any       `json:"data"`
}

// Emit enqueues an event for all subscriptions of the tenant and event type. It returns the
// number of enqueued deliveries.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		klog.ErrorS(err, "Cannot load subscriptions", "tenant", tenantID, "event", eventType)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	body, err := json.Marshal(Event{ID: "evt_" + uuid.NewString(), Type: eventType, TenantID: tenantID, TS: time.Now().UTC(), Data: data})
	if err != nil {
		klog.ErrorS(err, "Cannot encode webhook event", "event", eventType)
		return 0
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			klog.ErrorS(err, "Cannot enqueue webhook", "subscription", s.ID, "event", eventType)
			continue
		}
		n++
	}
	return n
}

// RunEvent returns the event type announcing a finished run, or "" while it is active.
func RunEvent(status string) string {
	switch status {
	case store.RunSucceeded:
		return EventRunCompleted
	case store.RunFailed:
		return EventRunFailed
	case store.RunCancelled:
		return EventRunCancelled
	default:
		return ""
	}
}
