// Package anthropic implements the C2 translation backend adapter backed
// by github.com/anthropics/anthropic-sdk-go, for deployments that select
// Claude as the translation model. It does not implement contract.Embedder;
// jobs that pick this backend and the semantic aligner (4.5.a) must
// configure a separate embedder, or fall back to the LLM-mapping aligner.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"deckxlate/pkg/contract"
)

// Options is the minimal required configuration for the Anthropic backend.
type Options struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	APIKeyEnv      string `json:"api_key_env"`
	APIKey         string `json:"api_key"`
	MaxOutputTokens int   `json:"max_output_tokens,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "claude-3-5-haiku-latest"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 2048
	}
}

// Client wraps an anthropic-sdk-go Client.
type Client struct {
	api             anthropic.Client
	model           string
	maxOutputTokens int64
}

// New constructs a Client from raw JSON options.
func New(raw json.RawMessage) (contract.TranslationBackend, error) {
	var opts Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("anthropic options: %w", err)
		}
	}
	opts.defaults()
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("anthropic: %w: missing api key", contract.ErrInvalidInput)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(key)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:             anthropic.NewClient(clientOpts...),
		model:           opts.Model,
		maxOutputTokens: int64(opts.MaxOutputTokens),
	}, nil
}

// Translate issues a single Messages call carrying the glossary fragment
// and (optional) slide context as the system prompt.
func (c *Client) Translate(ctx context.Context, req contract.TranslateRequest) (contract.TranslateResponse, error) {
	if req.Text == "" {
		return contract.TranslateResponse{}, contract.ErrInvalidInput
	}

	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxOutputTokens,
		System:    []anthropic.TextBlockParam{{Text: buildSystemPrompt(req)}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text))},
	})
	if err != nil {
		return contract.TranslateResponse{}, classifyError(err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		out.WriteString(block.Text)
	}
	if out.Len() == 0 {
		return contract.TranslateResponse{}, contract.ErrResponseInvalid
	}
	return contract.TranslateResponse{Text: out.String()}, nil
}

func buildSystemPrompt(req contract.TranslateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the user's message from %s to %s. Preserve meaning and tone; return only the translation.", req.SourceLang, req.TargetLang)
	if req.GlossaryFragment != "" {
		b.WriteString("\n\nGlossary:\n")
		b.WriteString(req.GlossaryFragment)
	}
	if req.SlideContext != "" {
		b.WriteString("\n\nSlide context:\n")
		b.WriteString(req.SlideContext)
	}
	return b.String()
}

type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("anthropic upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool           { return e.status == 408 }
func (e upstreamError) Temporary() bool         { return e.status == 429 || e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", contract.ErrTranslationCancelled, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return fmt.Errorf("%w: %v", contract.ErrRateLimited, upstreamError{status: apiErr.StatusCode, msg: apiErr.Message})
		}
		if apiErr.StatusCode/100 == 5 || apiErr.StatusCode == 408 {
			return fmt.Errorf("%w: %v", contract.ErrTranslationTransient, upstreamError{status: apiErr.StatusCode, msg: apiErr.Message})
		}
		return fmt.Errorf("%w: %v", contract.ErrTranslationPermanent, upstreamError{status: apiErr.StatusCode, msg: apiErr.Message})
	}
	return fmt.Errorf("%w: %v", contract.ErrTranslationTransient, err)
}

var (
	_ contract.TranslationBackend = (*Client)(nil)
	_ contract.UpstreamError      = upstreamError{}
)
