package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// TryBatchThenFallback runs batchFn over all items in one shot. If the batch
// call fails, or returns anything other than exactly one output per input,
// every item is retried individually with singleFn; an item whose individual
// call also fails degrades to defaultFn(item). The returned slice always has
// exactly one output per input, in input order. No item is ever dropped.
//
// The same shape recurs for classification chunks and signal persistence,
// so it lives here once.
func TryBatchThenFallback[I, O any](
	ctx context.Context,
	items []I,
	batchFn func(context.Context, []I) ([]O, error),
	singleFn func(context.Context, I) (O, error),
	defaultFn func(I) O,
) []O {
	if len(items) == 0 {
		return nil
	}

	out, err := batchFn(ctx, items)
	if err == nil && len(out) == len(items) {
		return out
	}
	if err != nil {
		zap.L().Warn("batch call failed, falling back to individual calls",
			zap.Int("items", len(items)),
			zap.Error(err),
		)
	} else {
		zap.L().Warn("batch call returned mismatched result count, falling back",
			zap.Int("items", len(items)),
			zap.Int("results", len(out)),
		)
	}

	out = make([]O, len(items))
	for i, item := range items {
		res, err := singleFn(ctx, item)
		if err != nil {
			zap.L().Warn("individual fallback call failed, using default",
				zap.Int("index", i),
				zap.Error(err),
			)
			out[i] = defaultFn(item)
			continue
		}
		out[i] = res
	}
	return out
}
