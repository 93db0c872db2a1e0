// Package registry is the name→factory wiring point for every pluggable
// deckxlate component: explicit, zero-reflection registration maps keyed
// by config name.
package registry

import (
	"bytes"
	"encoding/json"

	"deckxlate/pkg/contract"
	anthropicbackend "deckxlate/plugins/backend/anthropic"
	flakybackend "deckxlate/plugins/backend/flaky"
	mockbackend "deckxlate/plugins/backend/mock"
	openaibackend "deckxlate/plugins/backend/openai"
	llmmapaligner "deckxlate/plugins/aligner/llmmap"
	semanticaligner "deckxlate/plugins/aligner/semantic"
	ooxmlextractor "deckxlate/plugins/extractor/ooxml"
	flatfileglossary "deckxlate/plugins/glossary/flatfile"
	ooxmlmerger "deckxlate/plugins/merger/ooxml"
	fswriter "deckxlate/plugins/writer/filesystem"
)

// strictUnmarshal decodes raw with DisallowUnknownFields, rejecting
// unrecognized option keys.
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type NewExtractor func(raw json.RawMessage) (contract.Extractor, error)
type NewGlossary func(raw json.RawMessage) (contract.Glossary, error)
type NewBackend func(raw json.RawMessage) (contract.TranslationBackend, error)
type NewAligner func(raw json.RawMessage) (contract.Aligner, error)
type NewMerger func(raw json.RawMessage) (contract.Merger, error)
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Extractor factory registry (C3).
var Extractor = map[string]NewExtractor{
	"ooxml": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts ooxmlextractor.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ooxmlextractor.New(&opts), nil
	},
}

// Glossary factory registry (C1).
var Glossary = map[string]NewGlossary{
	"flatfile": func(raw json.RawMessage) (contract.Glossary, error) {
		var opts flatfileglossary.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return flatfileglossary.New(&opts)
	},
}

// Backend factory registry (C2).
var Backend = map[string]NewBackend{
	"openai":    func(raw json.RawMessage) (contract.TranslationBackend, error) { return openaibackend.New(raw) },
	"anthropic": func(raw json.RawMessage) (contract.TranslationBackend, error) { return anthropicbackend.New(raw) },
	"mock":      func(raw json.RawMessage) (contract.TranslationBackend, error) { return mockbackend.New(raw) },
	"flaky":     func(raw json.RawMessage) (contract.TranslationBackend, error) { return flakybackend.New(raw) },
}

// Aligner factory registry (C5).
var Aligner = map[string]NewAligner{
	"semantic": func(raw json.RawMessage) (contract.Aligner, error) { return semanticaligner.New(raw) },
	"llmmap":   func(raw json.RawMessage) (contract.Aligner, error) { return llmmapaligner.New(raw) },
}

// Merger factory registry (C8).
var Merger = map[string]NewMerger{
	"ooxml": func(raw json.RawMessage) (contract.Merger, error) { return ooxmlmerger.New(raw) },
}

// Writer factory registry (C8 sink, C9 sidecar).
var Writer = map[string]NewWriter{
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts fswriter.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return fswriter.New(&opts)
	},
}
