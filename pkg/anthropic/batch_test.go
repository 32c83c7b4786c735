package anthropic

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPollBatch_AlreadyEnded(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_run1").Return(&BatchResponse{
		ID:               "batch_run1",
		ProcessingStatus: "ended",
		RequestCounts:    RequestCounts{Succeeded: 4},
	}, nil)

	resp, err := PollBatch(context.Background(), mc, "batch_run1",
		WithPollInterval(10*time.Millisecond),
	)

	require.NoError(t, err)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int64(4), resp.RequestCounts.Succeeded)
	mc.AssertNumberOfCalls(t, "GetBatch", 1)
}

// pollCountClient ends the batch after a fixed number of polls.
type pollCountClient struct {
	MockClient
	calls   atomic.Int32
	endsAt  int32
	final   *BatchResponse
	polls []time.Time
}

func (c *pollCountClient) GetBatch(_ context.Context, batchID string) (*BatchResponse, error) {
	c.polls = append(c.polls, time.Now())
	if c.calls.Add(1) < c.endsAt {
		return &BatchResponse{ID: batchID, ProcessingStatus: "in_progress"}, nil
	}
	return c.final, nil
}

func TestPollBatch_WaitsForEnd(t *testing.T) {
	mc := &pollCountClient{
		endsAt: 3,
		final: &BatchResponse{
			ID:               "batch_run2",
			ProcessingStatus: "ended",
			RequestCounts:    RequestCounts{Succeeded: 16},
		},
	}

	resp, err := PollBatch(context.Background(), mc, "batch_run2",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(20*time.Millisecond),
	)

	require.NoError(t, err)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int32(3), mc.calls.Load())
}

func TestPollBatch_BackoffGrows(t *testing.T) {
	mc := &pollCountClient{
		endsAt: 4,
		final:  &BatchResponse{ID: "batch_run3", ProcessingStatus: "ended"},
	}

	_, err := PollBatch(context.Background(), mc, "batch_run3",
		WithPollInterval(20*time.Millisecond),
		WithPollCap(100*time.Millisecond),
	)
	require.NoError(t, err)
	require.Len(t, mc.polls, 4)

	// 20ms then 40ms, allowing jitter and scheduler slack.
	gap1 := mc.polls[1].Sub(mc.polls[0])
	gap2 := mc.polls[2].Sub(mc.polls[1])
	assert.Greater(t, gap2.Milliseconds(), gap1.Milliseconds()-5,
		"backoff should grow: gap1=%v gap2=%v", gap1, gap2)
}

func TestPollBatch_Expired(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_old").Return(&BatchResponse{
		ID:               "batch_old",
		ProcessingStatus: "expired",
	}, nil)

	resp, err := PollBatch(context.Background(), mc, "batch_old",
		WithPollInterval(10*time.Millisecond),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
	// The final response still comes back for request-count logging.
	require.NotNil(t, resp)
	assert.Equal(t, "expired", resp.ProcessingStatus)
}

func TestPollBatch_Canceled(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_stop").Return(&BatchResponse{
		ID:               "batch_stop",
		ProcessingStatus: "canceling",
	}, nil)

	_, err := PollBatch(context.Background(), mc, "batch_stop",
		WithPollInterval(10*time.Millisecond),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestPollBatch_DeadlineExpires(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_slow").Return(&BatchResponse{
		ID:               "batch_slow",
		ProcessingStatus: "in_progress",
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := PollBatch(ctx, mc, "batch_slow",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(15*time.Millisecond),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollBatch_DefaultTimeoutApplies(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_slow").Return(&BatchResponse{
		ID:               "batch_slow",
		ProcessingStatus: "in_progress",
	}, nil)

	_, err := PollBatch(context.Background(), mc, "batch_slow",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollBatch_GetBatchError(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_err").Return(nil, eris.New("api error: 500"))

	_, err := PollBatch(context.Background(), mc, "batch_err",
		WithPollInterval(10*time.Millisecond),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api error: 500")
}

func TestPollBatch_ContextAlreadyCanceled(t *testing.T) {
	mc := new(MockClient)
	mc.On("GetBatch", mock.Anything, "batch_gone").Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PollBatch(ctx, mc, "batch_gone",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
}

func TestCollectBatchResults_KeyedByCustomID(t *testing.T) {
	iter := newStubIterator(
		succeededItem("chunk-0", `[{"index":0,"signal_type":"earnings_miss"}]`),
		BatchResultItem{CustomID: "chunk-1", Type: "errored"},
		succeededItem("chunk-2", `[{"index":0,"signal_type":"neutral"}]`),
		BatchResultItem{CustomID: "chunk-3", Type: "expired"},
	)

	results, err := CollectBatchResults(iter)

	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results["chunk-0"].Content[0].Text, "earnings_miss")
	assert.Contains(t, results["chunk-2"].Content[0].Text, "neutral")
	// Failed chunks show up only as missing keys.
	assert.Nil(t, results["chunk-1"])
	assert.Nil(t, results["chunk-3"])
}

func TestCollectBatchResults_Empty(t *testing.T) {
	results, err := CollectBatchResults(newStubIterator())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCollectBatchResults_StreamError(t *testing.T) {
	iter := newFailingIterator(eris.New("stream interrupted"),
		succeededItem("chunk-0", "partial"),
	)

	_, err := CollectBatchResults(iter)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream interrupted")
}
