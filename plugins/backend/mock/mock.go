// Package mock implements a deterministic contract.TranslationBackend used
// for property tests and offline pipeline wiring: no network calls, no
// randomness, output derived purely from the request.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"deckxlate/pkg/contract"
)

// Options is the mock backend's minimal debug configuration.
type Options struct {
	// Prefix is prepended to every translated string. Defaults to "MOCK".
	Prefix string `json:"prefix"`
	// APIKey is used only for rate-limit grouping in debug runs; it never
	// reaches a network call.
	APIKey string `json:"api_key"`
}

// Client is a deterministic TranslationBackend and Embedder.
type Client struct {
	prefix string
}

// New constructs a Client from raw JSON options.
func New(raw json.RawMessage) (contract.TranslationBackend, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("mock options: %w", err)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "MOCK"
	}
	return &Client{prefix: o.Prefix}, nil
}

// Translate returns "<prefix>[<source>-><target>]: <text>", a deterministic placeholder
// translation useful for tests and offline runs.
func (c *Client) Translate(ctx context.Context, req contract.TranslateRequest) (contract.TranslateResponse, error) {
	if req.Text == "" {
		return contract.TranslateResponse{}, contract.ErrInvalidInput
	}
	select {
	case <-ctx.Done():
		return contract.TranslateResponse{}, ctx.Err()
	default:
	}
	return contract.TranslateResponse{Text: fmt.Sprintf("%s[%s->%s]: %s", c.prefix, req.SourceLang, req.TargetLang, req.Text)}, nil
}

// Embed returns a low-dimensional deterministic vector for each text (its
// bytes summed into embedDims buckets by position, then normalized to unit
// length), good enough to exercise the
// semantic aligner's cosine-similarity matching without a real model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fingerprint(t)
	}
	return out, nil
}

const embedDims = 8

func fingerprint(s string) []float32 {
	v := make([]float32, embedDims)
	for i, b := range []byte(s) {
		v[i%embedDims] += float32(b)
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

var (
	_ contract.TranslationBackend = (*Client)(nil)
	_ contract.Embedder           = (*Client)(nil)
)
