// Package sender implements the HTTP delivery client with retry logic.
// It marshals a snapshot to JSON and POSTs it to the configured endpoint,
// classifying each attempt as delivered, permanently rejected, or transient.
// Transient attempts are retried with exponential backoff plus jitter.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sylon-io/agent/internal/config"
	"github.com/sylon-io/agent/internal/models"
)

// maxBackoff caps a single backoff sleep regardless of attempt number.
const maxBackoff = 60 * time.Second

// OutcomeKind classifies the result of one delivery attempt sequence.
type OutcomeKind int

const (
	// Delivered means the endpoint accepted the payload (2xx).
	Delivered OutcomeKind = iota
	// Rejected means a permanent failure (4xx or unconfigured endpoint);
	// the payload was not and will not be retried.
	Rejected
	// Exhausted means every permitted attempt failed transiently.
	Exhausted
)

// String returns the outcome kind name for logging.
func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome is the result of delivering one snapshot.
type Outcome struct {
	Kind     OutcomeKind
	Reason   string // populated for Rejected and Exhausted
	Attempts int    // number of network attempts actually made
}

// attemptResult classifies a single HTTP attempt.
type attemptResult int

const (
	attemptAccepted attemptResult = iota
	attemptRejected
	attemptTransient
)

// Sender delivers metric snapshots to the collection endpoint. Every
// Deliver call is independent: no session or connection state is carried
// between invocations.
type Sender struct {
	client *http.Client
	cfg    *config.Config
	logger *zap.Logger

	// sleep and uniform are injection points for tests; sleep returns
	// false when the context was cancelled before the delay elapsed.
	sleep   func(ctx context.Context, d time.Duration) bool
	uniform func() float64
}

// New creates a Sender with the configured per-request timeout.
func New(cfg *config.Config, logger *zap.Logger) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
		uniform: rand.Float64,
	}
}

// Deliver serializes the snapshot and attempts delivery with bounded
// retries. It never returns an error; every failure mode is folded into
// the Outcome.
func (s *Sender) Deliver(ctx context.Context, snapshot models.MetricSnapshot) Outcome {
	if s.cfg.Endpoint == config.Unset || s.cfg.Endpoint == "" {
		s.logger.Warn("Endpoint not configured, skipping delivery")
		return Outcome{Kind: Rejected, Reason: "unconfigured"}
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return Outcome{Kind: Rejected, Reason: fmt.Sprintf("marshal: %v", err)}
	}

	var reason string
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		result, detail := s.attempt(ctx, body)
		switch result {
		case attemptAccepted:
			s.logger.Info("Payload accepted",
				zap.Int("attempt", attempt),
				zap.String("status", detail))
			return Outcome{Kind: Delivered, Attempts: attempt}
		case attemptRejected:
			s.logger.Error("Payload rejected, not retrying",
				zap.Int("attempt", attempt),
				zap.String("reason", detail))
			return Outcome{Kind: Rejected, Reason: detail, Attempts: attempt}
		}

		// Transient failure
		reason = detail
		if attempt == s.cfg.MaxRetries {
			break
		}

		delay := s.backoffDelay(attempt)
		s.logger.Warn("Transient delivery failure, backing off",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", s.cfg.MaxRetries),
			zap.String("reason", detail),
			zap.Duration("delay", delay))

		if !s.sleep(ctx, delay) {
			s.logger.Info("Delivery cancelled during backoff",
				zap.Int("attempt", attempt))
			return Outcome{Kind: Exhausted, Reason: "cancelled", Attempts: attempt}
		}
	}

	s.logger.Error("All delivery attempts failed",
		zap.Int("attempts", s.cfg.MaxRetries),
		zap.String("reason", reason))
	return Outcome{Kind: Exhausted, Reason: reason, Attempts: s.cfg.MaxRetries}
}

// attempt performs one HTTP POST and classifies the response.
func (s *Sender) attempt(ctx context.Context, body []byte) (attemptResult, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		// Malformed endpoint URL — retrying cannot help
		return attemptRejected, fmt.Sprintf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return attemptTransient, fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode), fmt.Sprintf("status %d", resp.StatusCode)
}

// classifyStatus maps an HTTP status code to an attempt classification:
// 2xx is accepted, 4xx is a permanent rejection, everything else
// (5xx and unexpected codes) is transient.
func classifyStatus(code int) attemptResult {
	switch {
	case code >= 200 && code < 300:
		return attemptAccepted
	case code >= 400 && code < 500:
		return attemptRejected
	default:
		return attemptTransient
	}
}

// backoffDelay computes the sleep before the attempt following the given
// one: backoff_base^attempt seconds plus uniform additive jitter, capped.
func (s *Sender) backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(s.cfg.BackoffBase, float64(attempt)) + s.uniform()*s.cfg.Jitter
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// sleepContext waits for the duration or the context, whichever ends first.
// Returns false if the context was cancelled.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
