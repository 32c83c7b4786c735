package anthropic

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for tests in this package.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func (m *MockClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(BatchResultIterator), args.Error(1)
}

// stubIterator replays canned batch results, optionally surfacing an error
// once the items are drained.
type stubIterator struct {
	items []BatchResultItem
	idx   int
	err   error
}

func newStubIterator(items ...BatchResultItem) *stubIterator {
	return &stubIterator{items: items, idx: -1}
}

func newFailingIterator(err error, items ...BatchResultItem) *stubIterator {
	return &stubIterator{items: items, idx: -1, err: err}
}

func (s *stubIterator) Next() bool {
	if s.idx+1 < len(s.items) {
		s.idx++
		return true
	}
	return false
}

func (s *stubIterator) Item() BatchResultItem { return s.items[s.idx] }

func (s *stubIterator) Err() error {
	if s.idx+1 >= len(s.items) {
		return s.err
	}
	return nil
}

func (s *stubIterator) Close() error { return nil }

// succeededItem builds the shape CollectBatchResults consumes for one
// classified chunk.
func succeededItem(customID, text string) BatchResultItem {
	return BatchResultItem{
		CustomID: customID,
		Type:     "succeeded",
		Message: &MessageResponse{
			ID:         "msg_" + customID,
			Content:    []ContentBlock{{Type: "text", Text: text}},
			StopReason: "end_turn",
		},
	}
}
