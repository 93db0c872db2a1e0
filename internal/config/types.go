// Package config implements a Defaults/LoadJSON/Merge/EnvOverlay/Assemble
// cascade for deck-translation job configuration.
package config

import "encoding/json"

// Config is the run-time-immutable configuration: parsed once, never
// mutated after Assemble. JSON uses snake_case and rejects unknown keys.
type Config struct {
	Concurrency int     `json:"concurrency"`
	MaxTokens   int     `json:"max_tokens"`
	MaxRetries  int     `json:"max_retries"`
	Logging     Logging `json:"logging"`

	SourceLang           string `json:"source_lang"`
	TargetLang           string `json:"target_lang"`
	TranslateChartLabels bool   `json:"translate_chart_labels"`
	GlossaryPath         string `json:"glossary_path"`

	Components Components `json:"components"`

	Backend  string              `json:"backend"`
	Provider map[string]Provider `json:"provider"`

	Options Options `json:"options"`
}

// Logging configures only the level; output destination and rotation are
// fixed defaults owned by internal/diag.
type Logging struct {
	Level string `json:"level"`
}

// Components selects, by registry name, which implementation each
// pluggable stage uses.
type Components struct {
	Extractor string `json:"extractor"`
	Glossary  string `json:"glossary"`
	Aligner   string `json:"aligner"`
	Merger    string `json:"merger"`
	Writer    string `json:"writer"`
}

// Options carries each component's raw JSON options, unmarshalled
// strictly by its own factory in pkg/registry.
type Options struct {
	Extractor json.RawMessage `json:"extractor"`
	Glossary  json.RawMessage `json:"glossary"`
	Aligner   json.RawMessage `json:"aligner"`
	Merger    json.RawMessage `json:"merger"`
	Writer    json.RawMessage `json:"writer"`
}

// Provider names a translation backend implementation plus its limits.
type Provider struct {
	Client  string          `json:"client"`
	Options json.RawMessage `json:"options"`
	Limits  Limits          `json:"limits"`
}

// Limits carries rate-limit configuration; enforcement lives in
// internal/rate.Gate.
type Limits struct {
	RPM             int `json:"rpm"`
	TPM             int `json:"tpm"`
	MaxTokensPerReq int `json:"max_tokens_per_req"`
}
