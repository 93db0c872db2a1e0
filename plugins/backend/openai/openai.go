// Package openai implements the C2 translation backend adapter backed by
// github.com/openai/openai-go/v3. One Client satisfies both
// contract.TranslationBackend.Translate and contract.Embedder.Embed so the
// orchestrator never has to construct a second client for the semantic
// aligner's embedding step.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"

	"deckxlate/pkg/contract"
)

// Options is the minimal required configuration for the OpenAI backend.
type Options struct {
	BaseURL        string  `json:"base_url"`
	Model          string  `json:"model"`
	EmbeddingModel string  `json:"embedding_model"`
	APIKeyEnv      string  `json:"api_key_env"`
	APIKey         string  `json:"api_key"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxInputTokens int     `json:"max_input_tokens,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = "gpt-4.1-mini"
	}
	if o.EmbeddingModel == "" {
		o.EmbeddingModel = "text-embedding-3-small"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OPENAI_API_KEY"
	}
}

// Client wraps an openai-go Client plus the model names to use.
type Client struct {
	api            openai.Client
	model          string
	embeddingModel string
	temperature    float64
	maxInputTokens int
	enc            *tiktoken.Tiktoken
}

// New constructs a Client from raw JSON options.
func New(raw json.RawMessage) (contract.TranslationBackend, error) {
	var opts Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("openai options: %w", err)
		}
	}
	opts.defaults()
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("openai: %w: missing api key", contract.ErrInvalidInput)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(key)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("openai: tokenizer: %w", err)
	}

	return &Client{
		api:            openai.NewClient(clientOpts...),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		temperature:    opts.Temperature,
		maxInputTokens: opts.MaxInputTokens,
		enc:            enc,
	}, nil
}

// Translate issues a single chat-completion call carrying the glossary
// fragment and (optional) slide context as extra system content.
func (c *Client) Translate(ctx context.Context, req contract.TranslateRequest) (contract.TranslateResponse, error) {
	if req.Text == "" {
		return contract.TranslateResponse{}, contract.ErrInvalidInput
	}
	if c.maxInputTokens > 0 && len(c.enc.Encode(req.Text, nil, nil)) > c.maxInputTokens {
		return contract.TranslateResponse{}, contract.ErrTranslationTooLong
	}

	sys := buildSystemPrompt(req)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(req.Text),
		},
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return contract.TranslateResponse{}, classifyError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return contract.TranslateResponse{}, contract.ErrResponseInvalid
	}
	return contract.TranslateResponse{Text: resp.Choices[0].Message.Content}, nil
}

// Embed satisfies contract.Embedder for the semantic aligner, sharing this
// same client rather than requiring a second one to be constructed.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
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

// upstreamError carries the HTTP status and message of an openai-go SDK
// error and implements contract.UpstreamError. classifyError formats it
// into the text of the error it returns; the contract sentinel wrapped
// alongside it is what internal/diag.Classify reads.
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string          { return fmt.Sprintf("openai upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool          { return e.status == 408 }
func (e upstreamError) Temporary() bool        { return e.status == 429 || e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int    { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", contract.ErrTranslationCancelled, err)
	}
	var apiErr *openai.Error
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
	_ contract.Embedder           = (*Client)(nil)
	_ contract.UpstreamError      = upstreamError{}
)
