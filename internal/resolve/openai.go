package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/semweave/semweave/internal/ident"
	"github.com/semweave/semweave/internal/matrix"
)

// OpenAIConfig configures the generative strategy.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxAttempts int           // retry budget per call
	CallTimeout time.Duration // per-request deadline
	MaxInFlight int           // bound on concurrent cell calls
	CellMode    bool          // one request per output cell
}

func (c *OpenAIConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = openai.GPT4o
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 4
	}
}

// OpenAI delegates value computation to a chat-completion backend. The
// backend must answer with a JSON object holding the exact target grid;
// anything else is rejected and retried until the budget runs out.
type OpenAI struct {
	client completer
	cfg    OpenAIConfig
}

// completer is the slice of the OpenAI client the resolver uses. Tests
// substitute a scripted implementation.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAI creates the generative strategy.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai resolver requires an API key")
	}
	return &OpenAI{client: openai.NewClient(cfg.APIKey), cfg: cfg}, nil
}

// newOpenAIWithClient wires a substitute backend. Used by tests.
func newOpenAIWithClient(client completer, cfg OpenAIConfig) *OpenAI {
	cfg.applyDefaults()
	return &OpenAI{client: client, cfg: cfg}
}

// Descriptor implements Resolver.
func (o *OpenAI) Descriptor() matrix.ResolverDescriptor {
	return matrix.ResolverDescriptor{Vendor: "openai", Name: o.cfg.Model, Version: "1"}
}

// Resolve implements Resolver. In grid mode one request produces the whole
// grid; in cell mode each output cell is resolved by its own request, with
// bounded concurrent in-flight calls. Cell mode only applies to kinds whose
// cells are independent pointwise derivations; cross always uses grid mode.
func (o *OpenAI) Resolve(ctx context.Context, kind matrix.Kind, inputs []*matrix.Matrix, instr Instructions) ([][]string, error) {
	shape, err := ShapeFor(kind, inputs)
	if err != nil {
		return nil, err
	}

	if o.cfg.CellMode && kind != matrix.KindCross {
		return o.resolveCells(ctx, kind, inputs, instr, shape)
	}
	return o.resolveGrid(ctx, kind, inputs, instr, shape)
}

// gridPayload is the required response body in grid mode.
type gridPayload struct {
	Shape [2]int     `json:"shape"`
	Cells [][]string `json:"cells"`
}

func (o *OpenAI) resolveGrid(ctx context.Context, kind matrix.Kind, inputs []*matrix.Matrix, instr Instructions, shape matrix.Shape) ([][]string, error) {
	system := fmt.Sprintf("%s\nRespond with a single JSON object {\"shape\": [%d, %d], \"cells\": [[...]]} and nothing else. cells must be a %dx%d grid of strings.",
		instr.System, shape.Rows(), shape.Cols(), shape.Rows(), shape.Cols())

	var grid [][]string
	err := o.retry(ctx, kind, func() error {
		content, err := o.completeOnce(ctx, system, instr.User)
		if err != nil {
			return err
		}

		var payload gridPayload
		if err := json.Unmarshal([]byte(content), &payload); err != nil {
			return fmt.Errorf("malformed grid response: %w", err)
		}
		if payload.Shape != [2]int(shape) {
			return fmt.Errorf("backend declared shape %v, want %v", payload.Shape, shape)
		}

		g := payload.Cells
		for r := range g {
			for c := range g[r] {
				g[r][c] = ident.Canonical(g[r][c])
			}
		}
		if err := CheckGrid(g, shape); err != nil {
			return err
		}
		grid = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grid, nil
}

// resolveCells issues one request per output cell. Cells within a single
// operation never depend on one another, so the calls run concurrently up
// to MaxInFlight. Cancellation stops new calls being issued; in-flight
// calls complete or time out on their own deadline.
func (o *OpenAI) resolveCells(ctx context.Context, kind matrix.Kind, inputs []*matrix.Matrix, instr Instructions, shape matrix.Shape) ([][]string, error) {
	grid := make([][]string, shape.Rows())
	for r := range grid {
		grid[r] = make([]string, shape.Cols())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxInFlight)

	for r := 0; r < shape.Rows(); r++ {
		for c := 0; c < shape.Cols(); c++ {
			if err := gctx.Err(); err != nil {
				break
			}
			r, c := r, c
			g.Go(func() error {
				user := cellPrompt(kind, inputs, r, c)
				return o.retry(gctx, kind, func() error {
					content, err := o.completeOnce(gctx, instr.System, user)
					if err != nil {
						return err
					}
					var payload struct {
						Text string `json:"text"`
					}
					if err := json.Unmarshal([]byte(content), &payload); err != nil {
						return fmt.Errorf("cell (%d,%d): malformed response: %w", r, c, err)
					}
					grid[r][c] = ident.Canonical(payload.Text)
					return nil
				})
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

// cellPrompt renders the per-cell instruction for one output position.
func cellPrompt(kind matrix.Kind, inputs []*matrix.Matrix, r, c int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolve output cell (%d,%d) of the %s operation.\n", r, c, kind.Symbol())
	switch kind {
	case matrix.KindMultiply:
		a, bm := inputs[0], inputs[1]
		fmt.Fprintf(&b, "Combine the term pairs, then integrate the products into one statement:\n")
		for k := 0; k < a.Shape.Cols(); k++ {
			va, vb := "", ""
			if cell := a.Cell(r, k); cell != nil {
				va = cell.Value
			}
			if cell := bm.Cell(k, c); cell != nil {
				vb = cell.Value
			}
			fmt.Fprintf(&b, "- %q %s %q\n", va, kind.Symbol(), vb)
		}
	case matrix.KindInterpret:
		if cell := inputs[0].Cell(r, c); cell != nil {
			fmt.Fprintf(&b, "Rewrite for clarity, preserving meaning: %q\n", cell.Value)
		}
	default:
		for _, in := range inputs {
			if cell := in.Cell(r, c); cell != nil {
				fmt.Fprintf(&b, "- %s[%d,%d] = %q\n", in.Name, r, c, cell.Value)
			}
		}
	}
	b.WriteString(`Respond with a single JSON object {"text": "..."} and nothing else.`)
	return b.String()
}

// retry runs one resolution attempt up to MaxAttempts times with
// exponential backoff. Every failure consumes an attempt: transport errors
// and responses the backend returned but that cannot be used (malformed
// body, wrong declared shape, ragged grid) are re-requested alike, since a
// generative backend may well answer correctly on the next try. Context
// cancellation is propagated immediately, never retried.
func (o *OpenAI) retry(ctx context.Context, kind matrix.Kind, attempt func() error) error {
	var lastErr error
	for i := 0; i < o.cfg.MaxAttempts; i++ {
		if i > 0 {
			// 1s, 2s, 4s...
			delay := time.Duration(1<<(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return &ResolutionError{Kind: kind, Attempts: o.cfg.MaxAttempts, Err: lastErr}
}

// completeOnce performs a single chat completion with a per-call timeout.
// Retry policy lives in the caller.
func (o *OpenAI) completeOnce(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	resp, err := o.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
