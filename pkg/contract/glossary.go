package contract

// Glossary (C1) is the compiled, queryable form of a loaded glossary file.
type Glossary interface {
	// LookupMatches returns every entry whose source term occurs in text,
	// longest-source-first, ties broken by descending priority.
	LookupMatches(text string) []GlossaryEntry
	// PromptFragment renders the matched entries into the text block a
	// PromptBuilder embeds in the translation request.
	PromptFragment(text string) string
	// PhrasePairs returns every loaded entry, for tests and for the
	// "glossary" CLI subcommand.
	PhrasePairs() []GlossaryEntry
	// Verify reports every entry whose source term appears in source but
	// whose target term does not appear in translated — a glossary
	// compliance violation.
	Verify(source, translated string) []GlossaryEntry
}
