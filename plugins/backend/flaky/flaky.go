// Package flaky implements a scripted-failure contract.TranslationBackend
// for exercising the retry path: the first call fails with a transient
// error, the second returns a permanent error, every call after succeeds.
package flaky

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"deckxlate/pkg/contract"
)

// Options configures the placeholder-translation prefix.
type Options struct {
	Prefix string `json:"prefix"`
}

// Client is a stateful TranslationBackend.
type Client struct {
	prefix string
	count  atomic.Int32
}

// New constructs a Client from raw JSON options.
func New(raw json.RawMessage) (contract.TranslationBackend, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("flaky options: %w", err)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "FLAKY"
	}
	return &Client{prefix: o.Prefix}, nil
}

// Translate fails the first two calls in a scripted way, then succeeds.
func (c *Client) Translate(ctx context.Context, req contract.TranslateRequest) (contract.TranslateResponse, error) {
	if req.Text == "" {
		return contract.TranslateResponse{}, contract.ErrInvalidInput
	}
	switch c.count.Add(1) {
	case 1:
		return contract.TranslateResponse{}, fmt.Errorf("%w: too many requests", contract.ErrTranslationTransient)
	case 2:
		return contract.TranslateResponse{}, fmt.Errorf("%w: content filtered", contract.ErrTranslationPermanent)
	default:
		return contract.TranslateResponse{Text: c.prefix + ": " + req.Text}, nil
	}
}

var _ contract.TranslationBackend = (*Client)(nil)
