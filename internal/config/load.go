package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Defaults returns a Config seeded with safe defaults. Backend is left
// unset — it must come from JSON, env or CLI.
func Defaults() Config {
	return Config{
		Concurrency: 4,
		MaxRetries:  2,
		MaxTokens:   2048,
		SourceLang:  "auto",
		Components: Components{
			Extractor: "ooxml",
			Glossary:  "flatfile",
			Aligner:   "llmmap",
			Merger:    "ooxml",
			Writer:    "fs",
		},
	}
}

// LoadJSON parses a Config from a file path or raw bytes, rejecting
// unknown fields.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge overlays non-zero fields of over onto base. Scalars and raw JSON
// options replace; nothing is deep-merged.
func Merge(base, over Config) Config {
	out := base
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.MaxTokens != 0 {
		out.MaxTokens = over.MaxTokens
	}
	// MaxRetries=0 is meaningful (disables retry); Merge treats negative
	// as "unset" so callers can distinguish the two.
	if over.MaxRetries >= 0 {
		out.MaxRetries = over.MaxRetries
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.SourceLang) != "" {
		out.SourceLang = strings.TrimSpace(over.SourceLang)
	}
	if strings.TrimSpace(over.TargetLang) != "" {
		out.TargetLang = strings.TrimSpace(over.TargetLang)
	}
	if strings.TrimSpace(over.GlossaryPath) != "" {
		out.GlossaryPath = strings.TrimSpace(over.GlossaryPath)
	}
	if over.TranslateChartLabels {
		out.TranslateChartLabels = true
	}

	if over.Components.Extractor != "" {
		out.Components.Extractor = over.Components.Extractor
	}
	if over.Components.Glossary != "" {
		out.Components.Glossary = over.Components.Glossary
	}
	if over.Components.Aligner != "" {
		out.Components.Aligner = over.Components.Aligner
	}
	if over.Components.Merger != "" {
		out.Components.Merger = over.Components.Merger
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	if len(over.Provider) > 0 {
		if out.Provider == nil {
			out.Provider = make(map[string]Provider, len(over.Provider))
		}
		for k, v := range over.Provider {
			out.Provider[k] = v
		}
	}

	if len(over.Options.Extractor) > 0 {
		out.Options.Extractor = cloneRaw(over.Options.Extractor)
	}
	if len(over.Options.Glossary) > 0 {
		out.Options.Glossary = cloneRaw(over.Options.Glossary)
	}
	if len(over.Options.Aligner) > 0 {
		out.Options.Aligner = cloneRaw(over.Options.Aligner)
	}
	if len(over.Options.Merger) > 0 {
		out.Options.Merger = cloneRaw(over.Options.Merger)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}

	if strings.TrimSpace(over.Backend) != "" {
		out.Backend = strings.TrimSpace(over.Backend)
	}
	return out
}

// EnvOverlay builds a Config overlay from environment variables prefixed
// DECKXLATE_. Supports CONCURRENCY, MAX_TOKENS, MAX_RETRIES, SOURCE_LANG,
// TARGET_LANG, GLOSSARY_PATH, BACKEND, COMPONENTS_*, and
// PROVIDER__<name>__{CLIENT,LIMITS_RPM,LIMITS_TPM,LIMITS_MAX_TOKENS_PER_REQ,OPTIONS_JSON}.
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	over.MaxRetries = -1
	prov := map[string]Provider{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "DECKXLATE_") {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len("DECKXLATE_") {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, "DECKXLATE_")
		switch nk {
		case "CONCURRENCY":
			if v, err := atoi(val); err == nil {
				over.Concurrency = v
			}
		case "MAX_TOKENS":
			if v, err := atoi(val); err == nil {
				over.MaxTokens = v
			}
		case "MAX_RETRIES":
			if v, err := atoi(val); err == nil {
				over.MaxRetries = v
			}
		case "SOURCE_LANG":
			over.SourceLang = strings.TrimSpace(val)
		case "TARGET_LANG":
			over.TargetLang = strings.TrimSpace(val)
		case "GLOSSARY_PATH":
			over.GlossaryPath = strings.TrimSpace(val)
		case "TRANSLATE_CHART_LABELS":
			over.TranslateChartLabels = strings.EqualFold(strings.TrimSpace(val), "true")
		case "BACKEND":
			over.Backend = strings.TrimSpace(val)
		case "COMPONENTS_EXTRACTOR":
			over.Components.Extractor = strings.TrimSpace(val)
		case "COMPONENTS_GLOSSARY":
			over.Components.Glossary = strings.TrimSpace(val)
		case "COMPONENTS_ALIGNER":
			over.Components.Aligner = strings.TrimSpace(val)
		case "COMPONENTS_MERGER":
			over.Components.Merger = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		default:
			if strings.HasPrefix(nk, "PROVIDER__") {
				parts := strings.Split(nk, "__")
				if len(parts) >= 3 {
					name := strings.TrimSpace(parts[1])
					field := strings.Join(parts[2:], "__")
					p := prov[name]
					changed := false
					switch field {
					case "CLIENT":
						if tv := strings.TrimSpace(val); tv != "" {
							p.Client = tv
							changed = true
						}
					case "LIMITS_RPM":
						if v, err := atoi(val); err == nil {
							p.Limits.RPM = v
							changed = true
						}
					case "LIMITS_TPM":
						if v, err := atoi(val); err == nil {
							p.Limits.TPM = v
							changed = true
						}
					case "LIMITS_MAX_TOKENS_PER_REQ":
						if v, err := atoi(val); err == nil {
							p.Limits.MaxTokensPerReq = v
							changed = true
						}
					case "OPTIONS_JSON":
						if strings.TrimSpace(val) != "" {
							p.Options = json.RawMessage(val)
							changed = true
						}
					}
					if changed {
						prov[name] = p
					}
				}
			}
		}
	}
	if len(prov) > 0 {
		over.Provider = prov
	}
	return over, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
