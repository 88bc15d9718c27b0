// Package notify fans campaign events out to registered subscribers and
// outbound webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EventKind identifies the kind of outbound event.
type EventKind string

const (
	EventAlertRaised    EventKind = "alert_raised"
	EventRecommendation EventKind = "recommendation_produced"
	EventBreakerOpened  EventKind = "breaker_opened"
)

// Event is one outbound notification.
type Event struct {
	Kind       EventKind      `json:"kind"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Subscriber receives published events. Implementations must not block for
// long; delivery failures are logged and never propagate to the publisher.
type Subscriber interface {
	Notify(ctx context.Context, event Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

func (f SubscriberFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Notifier publishes events to all registered subscribers. Safe for
// concurrent use.
type Notifier struct {
	mu          sync.RWMutex
	subscribers []Subscriber

	nowFunc func() time.Time
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{nowFunc: time.Now}
}

// Subscribe registers a subscriber for all subsequent events.
func (n *Notifier) Subscribe(sub Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, sub)
}

// Publish delivers the event to every subscriber. Failures are logged and do
// not stop delivery to the remaining subscribers.
func (n *Notifier) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = n.nowFunc()
	}

	n.mu.RLock()
	subs := make([]Subscriber, len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Notify(ctx, event); err != nil {
			zap.L().Warn("notify: subscriber delivery failed",
				zap.String("kind", string(event.Kind)),
				zap.String("campaign_id", event.CampaignID),
				zap.Error(err),
			)
		}
	}
}

// Webhook posts events as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook subscriber for the given URL.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts a single event to the webhook URL.
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
