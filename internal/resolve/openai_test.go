package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semweave/semweave/internal/matrix"
)

// scriptedCompleter replays canned responses in order and records requests.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []openai.ChatCompletionRequest
}

type scriptedResponse struct {
	content string
	err     error
}

func (s *scriptedCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response left")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.err != nil {
		return openai.ChatCompletionResponse{}, next.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: next.content}},
		},
	}, nil
}

// cellEchoCompleter answers every cell request with a fixed payload and
// counts calls. Safe for concurrent use.
type cellEchoCompleter struct {
	calls atomic.Int32
}

func (c *cellEchoCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls.Add(1)
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"text": "resolved"}`}},
		},
	}, nil
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.ErrorContains(t, err, "API key")
}

func TestOpenAIDescriptor(t *testing.T) {
	o := newOpenAIWithClient(&scriptedCompleter{}, OpenAIConfig{Model: "gpt-4o-mini"})
	assert.Equal(t, matrix.ResolverDescriptor{Vendor: "openai", Name: "gpt-4o-mini", Version: "1"}, o.Descriptor())
}

func TestOpenAIGridMode(t *testing.T) {
	client := &scriptedCompleter{responses: []scriptedResponse{
		{content: `{"shape": [2, 2], "cells": [["w", "x"], ["y", "  z  z  "]]}`},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 1})

	grid, err := o.Resolve(context.Background(), matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)},
		Instructions{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"w", "x"}, {"y", "z z"}}, grid, "values are canonicalized")

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Contains(t, req.Messages[0].Content, "sys")
	assert.Contains(t, req.Messages[0].Content, `"shape": [2, 2]`, "system prompt pins the required shape")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
}

func TestOpenAIGridModeRejectsWrongShape(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"declared shape mismatch", `{"shape": [3, 3], "cells": [["a"]]}`},
		{"grid shorter than declared", `{"shape": [2, 2], "cells": [["a", "b"]]}`},
		{"ragged row", `{"shape": [2, 2], "cells": [["a", "b"], ["c"]]}`},
		{"not json", `here you go: a, b, c, d`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedCompleter{responses: []scriptedResponse{{content: tt.content}}}
			o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 1})

			_, err := o.Resolve(context.Background(), matrix.KindMultiply,
				[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
			assert.True(t, IsResolutionError(err), "got %v", err)
		})
	}
}

func TestOpenAIRetriesUnusableBody(t *testing.T) {
	// A response the backend returns successfully but that cannot be used
	// consumes an attempt and is re-requested, exactly like a transport
	// failure.
	tests := []struct {
		name string
		bad  string
	}{
		{"malformed json", `here is your grid: a, b, c, d`},
		{"wrong declared shape", `{"shape": [3, 3], "cells": [["a"]]}`},
		{"ragged grid", `{"shape": [2, 2], "cells": [["a", "b"], ["c"]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedCompleter{responses: []scriptedResponse{
				{content: tt.bad},
				{content: `{"shape": [2, 2], "cells": [["a", "b"], ["c", "d"]]}`},
			}}
			o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 2})

			grid, err := o.Resolve(context.Background(), matrix.KindMultiply,
				[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
			require.NoError(t, err)
			assert.Equal(t, "a", grid[0][0])
			assert.Len(t, client.requests, 2, "the bad body must trigger a second request")
		})
	}
}

func TestOpenAICellModeRetriesMalformedBody(t *testing.T) {
	client := &scriptedCompleter{responses: []scriptedResponse{
		{content: `not json at all`},
		{content: `{"text": "recovered"}`},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{CellMode: true, MaxInFlight: 1, MaxAttempts: 2})

	grid, err := o.Resolve(context.Background(), matrix.KindInterpret,
		[]*matrix.Matrix{shaped("C", 1, 1)}, Instructions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", grid[0][0])
	assert.Len(t, client.requests, 2)
}

func TestOpenAIRetriesTransientFailure(t *testing.T) {
	client := &scriptedCompleter{responses: []scriptedResponse{
		{err: errors.New("upstream 500")},
		{content: `{"shape": [2, 2], "cells": [["a", "b"], ["c", "d"]]}`},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 2})

	grid, err := o.Resolve(context.Background(), matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
	require.NoError(t, err)
	assert.Equal(t, "a", grid[0][0])
	assert.Len(t, client.requests, 2)
}

func TestOpenAIExhaustsRetryBudget(t *testing.T) {
	upstream := errors.New("upstream 500")
	client := &scriptedCompleter{responses: []scriptedResponse{
		{err: upstream},
		{err: upstream},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 2})

	_, err := o.Resolve(context.Background(), matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.Attempts)
	assert.ErrorIs(t, err, upstream)
	assert.Len(t, client.requests, 2)
}

func TestOpenAICancellationNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedCompleter{responses: []scriptedResponse{
		{err: context.Canceled},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{MaxAttempts: 3})

	cancel()
	_, err := o.Resolve(ctx, matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, len(client.requests), 1, "a cancelled context never consumes retries")
}

func TestOpenAICellMode(t *testing.T) {
	// Four cells, one request each. Responses carry their own coordinates so
	// ordering does not matter.
	client := &cellEchoCompleter{}
	o := newOpenAIWithClient(client, OpenAIConfig{CellMode: true, MaxInFlight: 2, MaxAttempts: 1})

	grid, err := o.Resolve(context.Background(), matrix.KindInterpret,
		[]*matrix.Matrix{shaped("C", 2, 2)}, Instructions{System: "sys"})
	require.NoError(t, err)
	require.NoError(t, CheckGrid(grid, matrix.Shape{2, 2}))
	for r := range grid {
		for c := range grid[r] {
			assert.NotEmpty(t, grid[r][c])
		}
	}
	assert.Equal(t, int32(4), client.calls.Load())
}

func TestOpenAICellModeFailureAborts(t *testing.T) {
	client := &scriptedCompleter{responses: []scriptedResponse{
		{content: `{"text": "ok"}`},
		{err: errors.New("upstream 500")},
		{content: `{"text": "ok"}`},
		{content: `{"text": "ok"}`},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{CellMode: true, MaxInFlight: 1, MaxAttempts: 1})

	_, err := o.Resolve(context.Background(), matrix.KindInterpret,
		[]*matrix.Matrix{shaped("C", 2, 2)}, Instructions{})
	assert.Error(t, err, "one failed cell fails the whole operation")
}

func TestOpenAICrossAlwaysGridMode(t *testing.T) {
	client := &scriptedCompleter{responses: []scriptedResponse{
		{content: `{"shape": [4, 4], "cells": [
			["a","b","c","d"], ["e","f","g","h"], ["i","j","k","l"], ["m","n","o","p"]]}`},
	}}
	o := newOpenAIWithClient(client, OpenAIConfig{CellMode: true, MaxAttempts: 1})

	grid, err := o.Resolve(context.Background(), matrix.KindCross,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
	require.NoError(t, err)
	require.NoError(t, CheckGrid(grid, matrix.Shape{4, 4}))
	assert.Len(t, client.requests, 1, "cross expands positions, so cell mode never applies")
}
