// Package anthropic wraps the official SDK behind a small interface sized
// for the radar's needs: single messages for small chunk counts and the
// Message Batches API for full monitoring runs.
package anthropic

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/jsonl"
	"github.com/rotisserie/eris"
)

// Client is the surface the classification and synthesis stages call.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	GetBatch(ctx context.Context, batchID string) (*BatchResponse, error)
	GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error)
}

// BatchResultIterator streams individual results from a completed batch.
type BatchResultIterator interface {
	Next() bool
	Item() BatchResultItem
	Err() error
	Close() error
}

// MessageRequest carries everything CreateMessage needs, decoupled from the
// SDK's parameter types.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is one system prompt block, optionally cache-controlled.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl sets the prompt cache TTL for a block, "5m" or "1h".
type CacheControl struct {
	TTL string
}

// Message is a single conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse mirrors the API response fields the pipeline reads.
type MessageResponse struct {
	ID           string
	Model        string
	Content      []ContentBlock
	StopReason   string
	Usage        TokenUsage
	StopSequence string
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string
	Text string
}

// BatchRequest is the input to CreateBatch.
type BatchRequest struct {
	Requests []BatchRequestItem
}

// BatchRequestItem pairs a caller-chosen custom ID with its request, so
// results can be matched back to the articles they classify.
type BatchRequestItem struct {
	CustomID string
	Params   MessageRequest
}

// BatchResponse reports a batch's identity and progress.
type BatchResponse struct {
	ID               string
	ProcessingStatus string
	ResultsURL       string
	RequestCounts    RequestCounts
}

// RequestCounts tallies batch items by status.
type RequestCounts struct {
	Processing int64
	Succeeded  int64
	Errored    int64
	Canceled   int64
	Expired    int64
}

// BatchResultItem is one result from a completed batch. Message is set only
// when Type is "succeeded".
type BatchResultItem struct {
	CustomID string
	Type     string // "succeeded", "errored", "canceled", "expired"
	Message  *MessageResponse
}

// sdkClient backs Client with the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient builds the production client.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  sdkMessageParams(req.Messages),
	}

	if len(req.System) > 0 {
		params.System = sdkSystemBlocks(req.System)
	}

	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	return messageFromSDK(msg), nil
}

func (c *sdkClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	items := make([]sdk.MessageBatchNewParamsRequest, len(req.Requests))
	for i, r := range req.Requests {
		items[i] = sdk.MessageBatchNewParamsRequest{
			CustomID: r.CustomID,
			Params: sdk.MessageBatchNewParamsRequestParams{
				Model:     sdk.Model(r.Params.Model),
				MaxTokens: r.Params.MaxTokens,
				Messages:  sdkMessageParams(r.Params.Messages),
			},
		}
		if len(r.Params.System) > 0 {
			items[i].Params.System = sdkSystemBlocks(r.Params.System)
		}
		if r.Params.Temperature != nil {
			items[i].Params.Temperature = sdk.Float(*r.Params.Temperature)
		}
	}

	batch, err := c.client.Messages.Batches.New(ctx, sdk.MessageBatchNewParams{
		Requests: items,
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create batch")
	}

	return batchFromSDK(batch), nil
}

func (c *sdkClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	batch, err := c.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("anthropic: get batch %s", batchID))
	}

	return batchFromSDK(batch), nil
}

func (c *sdkClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	stream := c.client.Messages.Batches.ResultsStreaming(ctx, batchID)
	if err := stream.Err(); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("anthropic: get batch results %s", batchID))
	}
	return &sdkBatchResultIterator{stream: stream}, nil
}

// sdkBatchResultIterator adapts the SDK's jsonl stream to BatchResultIterator.
type sdkBatchResultIterator struct {
	stream *jsonl.Stream[sdk.MessageBatchIndividualResponse]
	item   BatchResultItem
}

func (it *sdkBatchResultIterator) Next() bool {
	if !it.stream.Next() {
		return false
	}
	it.item = batchResultFromSDK(it.stream.Current())
	return true
}

func (it *sdkBatchResultIterator) Item() BatchResultItem { return it.item }
func (it *sdkBatchResultIterator) Err() error            { return it.stream.Err() }
func (it *sdkBatchResultIterator) Close() error          { return it.stream.Close() }

func sdkMessageParams(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func sdkSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{
			Text: b.Text,
		}
		if b.CacheControl != nil {
			cc := sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
			out[i].CacheControl = cc
		}
	}
	return out
}

func messageFromSDK(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{
			Type: b.Type,
			Text: b.Text,
		})
	}

	return &MessageResponse{
		ID:           msg.ID,
		Model:        string(msg.Model),
		Content:      blocks,
		StopReason:   string(msg.StopReason),
		StopSequence: msg.StopSequence,
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}

func batchFromSDK(batch *sdk.MessageBatch) *BatchResponse {
	return &BatchResponse{
		ID:               batch.ID,
		ProcessingStatus: string(batch.ProcessingStatus),
		ResultsURL:       batch.ResultsURL,
		RequestCounts: RequestCounts{
			Processing: batch.RequestCounts.Processing,
			Succeeded:  batch.RequestCounts.Succeeded,
			Errored:    batch.RequestCounts.Errored,
			Canceled:   batch.RequestCounts.Canceled,
			Expired:    batch.RequestCounts.Expired,
		},
	}
}

func batchResultFromSDK(resp sdk.MessageBatchIndividualResponse) BatchResultItem {
	item := BatchResultItem{
		CustomID: resp.CustomID,
		Type:     resp.Result.Type,
	}

	if resp.Result.Type == "succeeded" {
		msg := resp.Result.Message
		item.Message = messageFromSDK(&msg)
	}

	return item
}
