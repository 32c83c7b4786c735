package pipeline

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryBatchThenFallback_BatchSucceeds(t *testing.T) {
	singleCalls := 0
	out := TryBatchThenFallback(context.Background(), []int{1, 2, 3},
		func(_ context.Context, items []int) ([]string, error) {
			res := make([]string, len(items))
			for i, v := range items {
				res[i] = strconv.Itoa(v)
			}
			return res, nil
		},
		func(_ context.Context, v int) (string, error) {
			singleCalls++
			return strconv.Itoa(v), nil
		},
		func(int) string { return "default" },
	)

	assert.Equal(t, []string{"1", "2", "3"}, out)
	assert.Zero(t, singleCalls, "batch success must not touch the per-item path")
}

func TestTryBatchThenFallback_BatchErrorFallsBackPerItem(t *testing.T) {
	out := TryBatchThenFallback(context.Background(), []int{1, 2, 3},
		func(_ context.Context, _ []int) ([]string, error) {
			return nil, assert.AnError
		},
		func(_ context.Context, v int) (string, error) {
			if v == 2 {
				return "", assert.AnError
			}
			return strconv.Itoa(v), nil
		},
		func(v int) string { return "default-" + strconv.Itoa(v) },
	)

	require.Len(t, out, 3)
	assert.Equal(t, "1", out[0])
	assert.Equal(t, "default-2", out[1])
	assert.Equal(t, "3", out[2])
}

func TestTryBatchThenFallback_CountMismatchFallsBack(t *testing.T) {
	out := TryBatchThenFallback(context.Background(), []string{"a", "b"},
		func(_ context.Context, _ []string) ([]string, error) {
			return []string{"only-one"}, nil
		},
		func(_ context.Context, v string) (string, error) {
			return strings.ToUpper(v), nil
		},
		func(string) string { return "default" },
	)

	assert.Equal(t, []string{"A", "B"}, out)
}

func TestTryBatchThenFallback_AlwaysOneOutputPerInput(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := TryBatchThenFallback(context.Background(), items,
		func(_ context.Context, _ []int) ([]int, error) { return nil, assert.AnError },
		func(_ context.Context, _ int) (int, error) { return 0, assert.AnError },
		func(v int) int { return -v },
	)

	require.Len(t, out, len(items))
	for i, v := range items {
		assert.Equal(t, -v, out[i])
	}
}

func TestTryBatchThenFallback_EmptyInput(t *testing.T) {
	out := TryBatchThenFallback(context.Background(), nil,
		func(_ context.Context, _ []int) ([]int, error) { return nil, assert.AnError },
		func(_ context.Context, v int) (int, error) { return v, nil },
		func(v int) int { return v },
	)
	assert.Empty(t, out)
}
