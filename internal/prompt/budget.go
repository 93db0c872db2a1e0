// Package prompt holds the token-budget accounting shared by the paragraph
// translator, the slide context builder and the chart/table translator.
package prompt

import "deckxlate/pkg/contract"

// MakeEstimator returns an approximate token estimator:
// tokens ≈ ceil(len(utf8_bytes)/bytesPerToken). bytesPerToken<=0 defaults to 4.
func MakeEstimator(bytesPerToken int) contract.TokenEstimator {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = 4
	}
	return func(s string) int {
		n := len([]byte(s))
		if n == 0 {
			return 0
		}
		return (n + bpt - 1) / bpt
	}
}

// EffectiveMaxTokens subtracts a fixed prompt overhead from maxTokens,
// returning (effectiveMax, overheadTokens). Returns (0,0) if maxTokens<=0.
func EffectiveMaxTokens(overheadText string, bytesPerToken int, maxTokens int) (int, int) {
	if maxTokens <= 0 {
		return 0, 0
	}
	est := MakeEstimator(bytesPerToken)
	overhead := est(overheadText)
	return maxTokens - overhead, overhead
}
