package prompt

import "testing"

func TestMakeEstimatorDefault(t *testing.T) {
	est := MakeEstimator(0)
	if est("abcdef") != 2 { // 6 bytes -> 2 tokens at the default 4 bytes/token
		t.Fatalf("expected 2 tokens")
	}
}

func TestMakeEstimatorEmpty(t *testing.T) {
	est := MakeEstimator(4)
	if est("") != 0 {
		t.Fatalf("expected 0 tokens for empty input")
	}
}

func TestEffectiveMaxTokensZero(t *testing.T) {
	eff, over := EffectiveMaxTokens("", 0, 0)
	if eff != 0 || over != 0 {
		t.Fatalf("expected 0,0, got %d,%d", eff, over)
	}
}

func TestEffectiveMaxTokensOverhead(t *testing.T) {
	eff, over := EffectiveMaxTokens("12345678901234567890", 4, 10) // 20 bytes -> 5 tokens
	if eff != 5 || over != 5 {
		t.Fatalf("expected 5,5, got %d,%d", eff, over)
	}
}
