// Package agent implements the periodic sample-and-deliver loop.
// A single worker drives the loop: ticks never overlap, and the CPU tick
// state threaded between samples has exactly one owner. The loop runs
// until its context is cancelled.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sylon-io/agent/internal/config"
	"github.com/sylon-io/agent/internal/models"
	"github.com/sylon-io/agent/internal/sampler"
	"github.com/sylon-io/agent/internal/sender"
)

// Deliverer sends one snapshot to the collection endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, snapshot models.MetricSnapshot) sender.Outcome
}

// Agent ties the sampler and the delivery client together on a fixed interval.
type Agent struct {
	cfg     *config.Config
	sampler *sampler.Sampler
	sender  Deliverer
	logger  *zap.Logger
}

// New creates an Agent.
func New(cfg *config.Config, smp *sampler.Sampler, snd Deliverer, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:     cfg,
		sampler: smp,
		sender:  snd,
		logger:  logger,
	}
}

// Run executes the sampling/delivery loop until ctx is cancelled. The first
// tick fires immediately so a fresh install reports right away; subsequent
// ticks follow the configured interval. Drift from slow deliveries is not
// compensated. Per-tick errors are logged and never terminate the loop.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Info("Agent loop starting",
		zap.Duration("interval", a.cfg.Interval()))

	ticker := time.NewTicker(a.cfg.Interval())
	defer ticker.Stop()

	state := a.tick(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Agent loop stopping")
			return
		case <-ticker.C:
			state = a.tick(ctx, state)
		}
	}
}

// tick performs one sample-and-deliver cycle and returns the CPU state to
// carry into the next cycle.
func (a *Agent) tick(ctx context.Context, state *sampler.CPUState) *sampler.CPUState {
	snapshot, next, err := a.sampler.Sample(ctx, state)
	if err != nil {
		a.logger.Error("Sampling failed, skipping tick", zap.Error(err))
		return next
	}

	outcome := a.sender.Deliver(ctx, snapshot)
	switch outcome.Kind {
	case sender.Delivered:
		a.logger.Info("Snapshot delivered",
			zap.String("timestamp", snapshot.Timestamp),
			zap.Int("attempts", outcome.Attempts))
	case sender.Rejected:
		a.logger.Warn("Snapshot rejected",
			zap.String("timestamp", snapshot.Timestamp),
			zap.String("reason", outcome.Reason))
	case sender.Exhausted:
		a.logger.Error("Snapshot dropped after exhausting retries",
			zap.String("timestamp", snapshot.Timestamp),
			zap.Int("attempts", outcome.Attempts),
			zap.String("reason", outcome.Reason))
	}

	return next
}
