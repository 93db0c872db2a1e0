// Package slidecontext implements the slide context builder (C6): it
// groups the paragraph translator's output by slide index and produces a
// size-capped summary consumed by the chart/table translator (and
// optionally fed back into paragraph translation as extra prompt context).
package slidecontext

import (
	"sort"
	"strings"
	"unicode/utf8"

	"deckxlate/internal/prompt"
	"deckxlate/pkg/contract"
)

// maxSummaryTokens bounds how much of a slide's translated text feeds
// downstream prompts; slides with more paragraphs than this fit are
// truncated at a paragraph boundary, and a first paragraph longer than
// the cap on its own is cut to fit it.
const maxSummaryTokens = 256

// Build groups runs (the paragraph translator's output, keyed by
// ElementID) by slide index and returns one capped SlideContext per slide
// that has at least one paragraph. Table cells contribute to their slide's
// context the same as paragraphs; chart labels do not, since C7 is their
// consumer rather than their source.
func Build(deck *contract.Deck, runs map[contract.ElementID][]contract.Run, bytesPerToken int) map[int]contract.SlideContext {
	est := prompt.MakeEstimator(bytesPerToken)
	bySlide := map[int][]contract.ElementID{}
	for id := range runs {
		if id.Kind == contract.KindChartLabel {
			continue
		}
		bySlide[id.SlideIndex] = append(bySlide[id.SlideIndex], id)
	}

	out := make(map[int]contract.SlideContext, len(bySlide))
	for slide, ids := range bySlide {
		sort.Slice(ids, func(i, j int) bool {
			if ids[i].ShapeID != ids[j].ShapeID {
				return ids[i].ShapeID < ids[j].ShapeID
			}
			if ids[i].Row != ids[j].Row {
				return ids[i].Row < ids[j].Row
			}
			return ids[i].Col < ids[j].Col
		})

		var b strings.Builder
		tokens := 0
		for _, id := range ids {
			text := concat(runs[id])
			if text == "" {
				continue
			}
			t := est(text)
			if tokens+t > maxSummaryTokens {
				if b.Len() > 0 {
					break
				}
				// A first paragraph that alone exceeds the cap is cut to fit it.
				for text != "" && est(text) > maxSummaryTokens {
					_, size := utf8.DecodeLastRuneInString(text)
					text = text[:len(text)-size]
				}
				t = est(text)
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(text)
			tokens += t
		}
		out[slide] = contract.SlideContext{SlideIndex: slide, Summary: b.String(), Tokens: tokens}
	}
	return out
}

func concat(runs []contract.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
