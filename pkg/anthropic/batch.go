package anthropic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBatchPollInitial = 2 * time.Second
	defaultBatchPollCap     = 15 * time.Second
	defaultBatchPollTimeout = 30 * time.Minute
)

// PollOption adjusts batch polling.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultBatchPollInitial,
		cap:     defaultBatchPollCap,
		timeout: defaultBatchPollTimeout,
	}
}

// WithPollInterval sets the first poll delay.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap sets the largest poll delay.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout bounds the total time spent waiting for the batch.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollBatch calls GetBatch until the batch reaches a terminal status or the
// context expires, backing off exponentially with jitter between polls.
// Expired and canceled batches return an error alongside the final response.
func PollBatch(ctx context.Context, client Client, batchID string, opts ...PollOption) (*BatchResponse, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		batch, err := client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("anthropic: poll batch %s", batchID))
		}

		switch batch.ProcessingStatus {
		case "ended":
			return batch, nil
		case "expired":
			return batch, eris.Errorf("anthropic: batch %s expired", batchID)
		case "canceled", "canceling":
			return batch, eris.Errorf("anthropic: batch %s canceled", batchID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("anthropic: poll batch %s timed out", batchID))
		case <-time.After(interval):
		}

		// Double, cap, then spread by up to 20% so concurrent runs do not
		// poll in lockstep.
		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
		jitter := time.Duration(rand.Int64N(int64(interval) / 5))
		if rand.IntN(2) == 0 {
			interval += jitter
		} else {
			interval -= jitter
		}
	}
}

// CollectBatchResults drains a BatchResultIterator into a map keyed by
// custom_id. Only succeeded items are returned; errored, canceled, and
// expired items are logged and dropped, and callers detect them by the
// missing key.
func CollectBatchResults(iter BatchResultIterator) (map[string]*MessageResponse, error) {
	defer iter.Close()

	succeeded := make(map[string]*MessageResponse)
	failed := 0
	for iter.Next() {
		item := iter.Item()
		if item.Type == "succeeded" && item.Message != nil {
			succeeded[item.CustomID] = item.Message
			continue
		}
		if item.Type != "succeeded" {
			failed++
			zap.L().Warn("anthropic: batch item failed",
				zap.String("custom_id", item.CustomID),
				zap.String("type", item.Type),
			)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: collect batch results")
	}

	if failed > 0 {
		zap.L().Warn("anthropic: batch had failed items",
			zap.Int("succeeded", len(succeeded)),
			zap.Int("failed", failed),
		)
	}

	return succeeded, nil
}
