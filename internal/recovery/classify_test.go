package recovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyCategory_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"net timeout", timeoutErr{}, CategoryNetwork},
		{"deadline exceeded", context.DeadlineExceeded, CategoryNetwork},
		{"connection word", errors.New("connection refused by peer"), CategoryNetwork},
		{"auth", errors.New("authentication token rejected"), CategoryAuthentication},
		{"unauthorized", errors.New("request unauthorized"), CategoryAuthentication},
		{"rate limit", errors.New("rate limit exceeded"), CategoryRateLimiting},
		{"status 429", errors.New("unexpected status 429"), CategoryRateLimiting},
		{"database", errors.New("database locked"), CategoryDatabase},
		{"sql", errors.New("sql: no rows in result set"), CategoryDatabase},
		{"api", errors.New("api responded with garbage"), CategoryAPI},
		{"validation", &ValidationError{Field: "phone", Reason: "not numeric"}, CategoryDataValidation},
		{"default", errors.New("something odd"), CategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyCategory(tt.err); got != tt.want {
				t.Errorf("classifyCategory(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifySeverity(t *testing.T) {
	campaignCtx := ErrorContext{CampaignID: "camp-1", Timestamp: time.Now()}

	if got := classifySeverity(timeoutErr{}, campaignCtx); got != SeverityCritical {
		t.Errorf("network error with campaign = %s, want critical", got)
	}
	if got := classifySeverity(timeoutErr{}, ErrorContext{}); got != SeverityMedium {
		t.Errorf("network error without campaign = %s, want medium", got)
	}
	if got := classifySeverity(errors.New("authentication failed"), ErrorContext{}); got != SeverityHigh {
		t.Errorf("auth error = %s, want high", got)
	}
	if got := classifySeverity(errors.New("http 500 from gateway"), ErrorContext{}); got != SeverityMedium {
		t.Errorf("http error = %s, want medium", got)
	}
	if got := classifySeverity(&FatalError{Err: errors.New("unrecoverable")}, campaignCtx); got != SeverityFatal {
		t.Errorf("fatal error = %s, want fatal", got)
	}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		severity Severity
		category Category
		want     Strategy
	}{
		{SeverityFatal, CategoryNetwork, StrategyManualIntervention},
		{SeverityCritical, CategoryNetwork, StrategyRetryWithBackoff},
		{SeverityMedium, CategoryRateLimiting, StrategyCircuitBreaker},
		{SeverityHigh, CategoryAuthentication, StrategyEscalation},
		{SeverityMedium, CategoryAPI, StrategyFallback},
		{SeverityMedium, CategoryDatabase, StrategyRetryWithBackoff},
		{SeverityMedium, CategorySystem, StrategyRetry},
		{SeverityLow, CategoryBusinessLogic, StrategyRetry},
	}
	for _, tt := range tests {
		if got := selectStrategy(tt.severity, tt.category); got != tt.want {
			t.Errorf("selectStrategy(%s, %s) = %s, want %s", tt.severity, tt.category, got, tt.want)
		}
	}
}
