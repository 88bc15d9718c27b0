// Package gateway sends WhatsApp messages through the WAHA client with
// retry, circuit breaking, and adaptive rate limiting.
package gateway

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/reengage-labs/campaign-cli/internal/resilience"
	"github.com/reengage-labs/campaign-cli/internal/schedule"
	"github.com/reengage-labs/campaign-cli/pkg/waha"
)

// Component names the circuit breaker guarding gateway sends.
const Component = "waha-send"

// WAHA throttles per session; half a message per second stays comfortably
// under its ceiling while the limiter tunes itself from responses.
const (
	defaultSendRate = rate.Limit(0.5)
	defaultBurst    = 3
)

// Sender paces and guards outbound messages. Transient gateway failures are
// retried, 429 responses halve the send rate, and repeated failures open the
// component's circuit breaker.
type Sender struct {
	client  waha.Client
	session string
	limiter *schedule.AdaptiveLimiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// Option configures a Sender.
type Option func(*Sender)

// WithSendRate overrides the default send pacing.
func WithSendRate(perSecond rate.Limit, burst int) Option {
	return func(s *Sender) {
		s.limiter = schedule.NewAdaptiveLimiter(perSecond, burst)
	}
}

// WithRetryConfig overrides the default retry behavior. The gateway's
// transient-error check is kept unless the config supplies its own.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(s *Sender) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = s.retry.ShouldRetry
		}
		s.retry = cfg
	}
}

// NewSender wraps a WAHA client for the given session, drawing its circuit
// breaker from the shared registry.
func NewSender(client waha.Client, session string, breakers *resilience.Registry, opts ...Option) *Sender {
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryableSend
	retry.OnRetry = resilience.RetryLogger("waha", "send_text")

	s := &Sender{
		client:  client,
		session: session,
		limiter: schedule.NewAdaptiveLimiter(defaultSendRate, defaultBurst),
		breaker: breakers.Get(Component),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendText delivers one message through the limiter, breaker, and retry
// chain. A 429 reduces the send rate before the retry sleeps.
func (s *Sender) SendText(ctx context.Context, phone, text string) (*waha.SendResponse, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*waha.SendResponse, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*waha.SendResponse, error) {
			return s.client.SendText(ctx, s.session, phone, text)
		})
		if err != nil {
			var apiErr *waha.APIError
			if errors.As(err, &apiErr) && apiErr.RateLimited() {
				s.limiter.OnRateLimit()
			}
			return nil, err
		}

		s.limiter.OnSuccess()
		return resp, nil
	})
}

// SessionStatus reports the state of the sender's gateway session.
func (s *Sender) SessionStatus(ctx context.Context) (*waha.SessionInfo, error) {
	return s.client.SessionStatus(ctx, s.session)
}

// SendRate returns the limiter's current rate.
func (s *Sender) SendRate() rate.Limit {
	return s.limiter.Limit()
}

// retryableSend treats transient gateway statuses (429, 5xx, timeouts) as
// retryable; an open circuit or a client error is not.
func retryableSend(err error) bool {
	var apiErr *waha.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
