package config

import "encoding/json"

// DefaultTemplateConfig returns a runnable default configuration: a mock
// backend with generous local limits, the repository's built-in
// component implementations, and a neutral default for every option key
// so operators can see the full surface to edit.
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Concurrency:          d.Concurrency,
		MaxTokens:            d.MaxTokens,
		MaxRetries:           d.MaxRetries,
		Logging:              Logging{Level: "info"},
		SourceLang:           "en",
		TargetLang:           "fr",
		TranslateChartLabels: true,
		Components:           d.Components,
		Backend:              "mock",
		Provider: map[string]Provider{
			"mock": {
				Client:  "mock",
				Options: json.RawMessage(`{"prefix":"MOCK","api_key":""}`),
				Limits:  Limits{RPM: 600, TPM: 1000000, MaxTokensPerReq: 8192},
			},
			"openai": {
				Client: "openai",
				Options: json.RawMessage(`{
  "base_url": "",
  "model": "",
  "embedding_model": "",
  "api_key_env": "OPENAI_API_KEY",
  "api_key": "",
  "temperature": 0.2,
  "max_input_tokens": 0
}`),
				Limits: Limits{RPM: 0, TPM: 0, MaxTokensPerReq: 0},
			},
			"anthropic": {
				Client: "anthropic",
				Options: json.RawMessage(`{
  "base_url": "",
  "model": "",
  "api_key_env": "ANTHROPIC_API_KEY",
  "api_key": "",
  "max_tokens": 1024
}`),
				Limits: Limits{RPM: 0, TPM: 0, MaxTokensPerReq: 0},
			},
		},
	}
	cfg.Options.Extractor = json.RawMessage(`{
  "include_chart_labels": true
}`)
	cfg.Options.Glossary = json.RawMessage(`{
  "path": ""
}`)
	cfg.Options.Aligner = json.RawMessage(`{
  "max_ngram": 4,
  "threshold": 0.3,
  "max_spans": 12
}`)
	cfg.Options.Merger = json.RawMessage(`{}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
