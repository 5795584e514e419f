// Package worker runs background jobs of the reservation service.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds how many reservations one sweep completes.
const DefaultBatchSize = 200

// Completer persists completion for reservations whose date has passed.
type Completer interface {
	CompleteDue(ctx context.Context, limit int) (int, error)
}

// CompletionSweeper periodically persists Completed for due reservations.
// Reads already present them as completed; the sweep makes it durable.
type CompletionSweeper struct {
	completer Completer
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewCompletionSweeper creates a sweeper running every interval.
func NewCompletionSweeper(completer Completer, interval time.Duration, batchSize int, logger *zap.Logger) *CompletionSweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CompletionSweeper{
		completer: completer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.Named("completion_sweeper"),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *CompletionSweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	// kick immediately
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep completes due reservations batch by batch until a batch comes back
// short, and returns the total completed.
func (s *CompletionSweeper) Sweep(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.completer.CompleteDue(ctx, s.batchSize)
		total += n
		if err != nil {
			s.logger.Error("completion sweep failed", zap.Error(err))
			break
		}
		if n < s.batchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Info("reservations completed", zap.Int("count", total))
	}
	return total
}
