package config

import (
	"testing"
)

// UT-CFG-01: parse a complete config document
func TestLoadJSON(t *testing.T) {
	raw := []byte(`{
  "concurrency": 2,
  "max_tokens": 1024,
  "max_retries": 1,
  "source_lang": "en",
  "target_lang": "fr",
  "backend": "mock",
  "components": {"extractor": "ooxml"},
  "provider": {"mock": {"client": "mock"}}
}`)
	cfg, err := LoadJSON("", raw)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Backend != "mock" {
		t.Fatalf("backend: want mock, got %s", cfg.Backend)
	}
	if len(cfg.Provider) != 1 || cfg.Components.Extractor != "ooxml" {
		t.Fatalf("field mapping wrong: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

// UT-CFG-02: environment overrides some fields
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"DECKXLATE_SOURCE_LANG=en",
		"DECKXLATE_CONCURRENCY=3",
		"DECKXLATE_BACKEND=mock",
		"DECKXLATE_COMPONENTS_WRITER=fs",
		"DECKXLATE_PROVIDER__mock__CLIENT=mock",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay error: %v", err)
	}
	if over.Backend != "mock" || over.Concurrency != 3 || over.Provider["mock"].Client != "mock" {
		t.Fatalf("overlay result wrong: %+v", over)
	}
}

// UT-CFG-03: unknown field is rejected
func TestLoadJSONUnknown(t *testing.T) {
	raw := []byte(`{"unknown":1}`)
	if _, err := LoadJSON("", raw); err == nil {
		t.Fatalf("expected an error")
	}
}

// Extra coverage: effName and atoi
func TestEffNameAtoi(t *testing.T) {
	if effName("", "ooxml") != "ooxml" || effName("x", "ooxml") != "x" {
		t.Fatalf("effName result wrong: %q %q", effName("", "ooxml"), effName("x", "ooxml"))
	}
	if v, err := atoi("10"); err != nil || v != 10 {
		t.Fatalf("atoi failed: %v %d", err, v)
	}
}

// Extra coverage: Defaults and cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Extractor != "ooxml" {
		t.Fatalf("default extractor wrong: %v", d.Components.Extractor)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw did not copy")
	}
}

// Extra coverage: Validate error branches
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("empty config should fail")
	}
	cfg := DefaultTemplateConfig()
	cfg.Concurrency = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("Concurrency<1 should fail")
	}
	cfg = DefaultTemplateConfig()
	cfg.MaxTokens = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("MaxTokens<=0 should fail")
	}
	cfg = DefaultTemplateConfig()
	cfg.Provider = map[string]Provider{"mock": {Client: "", Limits: Limits{}}}
	if err := Validate(cfg); err == nil {
		t.Fatal("empty client should fail")
	}
}
