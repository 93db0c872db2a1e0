package config

import (
	"errors"
	"fmt"

	"deckxlate/internal/pipeline"
	"deckxlate/internal/rate"
	"deckxlate/pkg/contract"
	"deckxlate/pkg/registry"
)

// Validate applies the static boundary checks a job must pass before a
// pipeline is assembled: required fields, registered component names,
// and a provider entry for the selected backend.
func Validate(cfg Config) error {
	if cfg.SourceLang == "" {
		return errors.New("config: source_lang not set")
	}
	if cfg.TargetLang == "" {
		return errors.New("config: target_lang not set")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.MaxTokens <= 0 {
		return errors.New("config: max_tokens must be > 0")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("config: max_retries must be >= 0")
	}
	if cfg.Backend == "" {
		return errors.New("config: backend not set")
	}
	prov, ok := cfg.Provider[cfg.Backend]
	if !ok {
		return fmt.Errorf("config: provider %q not found", cfg.Backend)
	}
	if prov.Client == "" {
		return fmt.Errorf("config: provider %q missing client", cfg.Backend)
	}
	if prov.Limits.MaxTokensPerReq > 0 && cfg.MaxTokens > prov.Limits.MaxTokensPerReq {
		return fmt.Errorf("config: max_tokens(%d) exceeds provider.max_tokens_per_req(%d)", cfg.MaxTokens, prov.Limits.MaxTokensPerReq)
	}

	d := Defaults()
	if name := effName(cfg.Components.Extractor, d.Components.Extractor); registry.Extractor[name] == nil {
		return fmt.Errorf("config: extractor %q not registered", name)
	}
	if cfg.GlossaryPath != "" {
		if name := effName(cfg.Components.Glossary, d.Components.Glossary); registry.Glossary[name] == nil {
			return fmt.Errorf("config: glossary %q not registered", name)
		}
	}
	if name := effName(cfg.Components.Aligner, d.Components.Aligner); registry.Aligner[name] == nil {
		return fmt.Errorf("config: aligner %q not registered", name)
	}
	if name := effName(cfg.Components.Merger, d.Components.Merger); registry.Merger[name] == nil {
		return fmt.Errorf("config: merger %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	if registry.Backend[prov.Client] == nil {
		return fmt.Errorf("config: backend client %q not registered", prov.Client)
	}
	return nil
}

// Assemble constructs pipeline.Components and pipeline.Settings for one
// job, plus the rate.Gate/rate.LimitKey the pipeline throttles calls
// against. Strict option parsing happens in pkg/registry's factories;
// this layer only routes raw JSON to them.
func Assemble(cfg Config, job contract.JobOptions) (pipeline.Components, pipeline.Settings, rate.Gate, rate.LimitKey, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	d := Defaults()
	extractorName := effName(cfg.Components.Extractor, d.Components.Extractor)
	glossaryName := effName(cfg.Components.Glossary, d.Components.Glossary)
	alignerName := effName(cfg.Components.Aligner, d.Components.Aligner)
	mergerName := effName(cfg.Components.Merger, d.Components.Merger)
	writerName := effName(cfg.Components.Writer, d.Components.Writer)

	extractor, err := registry.Extractor[extractorName](cfg.Options.Extractor)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	var glossary contract.Glossary
	if cfg.GlossaryPath != "" {
		glossary, err = registry.Glossary[glossaryName](cfg.Options.Glossary)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, nil, "", err
		}
	}

	aligner, err := registry.Aligner[alignerName](cfg.Options.Aligner)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	merger, err := registry.Merger[mergerName](cfg.Options.Merger)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	writer, err := registry.Writer[writerName](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	prov := cfg.Provider[cfg.Backend]
	newBackend := registry.Backend[prov.Client]
	backend, err := newBackend(prov.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, nil, "", err
	}

	// A job constructs exactly one backend instance; an aligner that
	// needs an embedder or the backend itself is injected here rather
	// than constructing its own.
	if aware, ok := aligner.(contract.EmbedderAware); ok {
		if embedder, ok := backend.(contract.Embedder); ok {
			aware.SetEmbedder(embedder)
		}
	}
	if aware, ok := aligner.(contract.BackendAware); ok {
		aware.SetBackend(backend)
	}
	if aware, ok := aligner.(contract.GlossaryAware); ok && glossary != nil {
		aware.SetGlossary(glossary)
	}

	comp := pipeline.Components{
		Extractor: extractor,
		Glossary:  glossary,
		Backend:   backend,
		Aligner:   aligner,
		Merger:    merger,
		Writer:    writer,
	}

	gmap := map[rate.LimitKey]rate.Limits{}
	key, derr := rate.DeriveKeyFromProviderOptions(prov.Client, prov.Options)
	if derr != nil {
		key = rate.LimitKey(cfg.Backend)
	}
	gmap[key] = rate.Limits{RPM: prov.Limits.RPM, TPM: prov.Limits.TPM, MaxTokensPerReq: prov.Limits.MaxTokensPerReq}
	gate := rate.NewGate(gmap, nil)

	set := pipeline.Settings{
		InputPath:            job.InputPath,
		OutputPath:           job.OutputPath,
		SourceLang:           cfg.SourceLang,
		TargetLang:           cfg.TargetLang,
		Concurrency:          cfg.Concurrency,
		MaxTokens:            cfg.MaxTokens,
		BytesPerToken:        0,
		MaxRetries:           cfg.MaxRetries,
		TranslateChartLabels: cfg.TranslateChartLabels,
		Gate:                 gate,
		GateKey:              key,
	}

	return comp, set, gate, key, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
