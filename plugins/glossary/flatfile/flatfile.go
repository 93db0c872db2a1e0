// Package flatfile implements the C1 glossary: a JSON, YAML or CSV document
// compiled once into a match-ordered, Unicode-fold-matched entry list.
package flatfile

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"deckxlate/pkg/contract"
)

// Options configures the glossary loader.
type Options struct {
	// Path is the glossary file on disk. Required.
	Path string `json:"path"`
}

// document is the JSON/YAML shape a glossary file is unmarshalled into.
type document struct {
	Entries []contract.GlossaryEntry `json:"entries" yaml:"entries"`
}

// Glossary implements contract.Glossary over a compiled entry list.
type Glossary struct {
	entries []contract.GlossaryEntry
	fold    cases.Caser
}

// New loads and compiles the glossary named by opts.Path. The extension
// selects the format: ".json" for JSON, ".yaml"/".yml" for YAML, anything
// else is parsed as CSV with header columns
// source,target,case_sensitive,priority,notes.
func New(opts *Options) (contract.Glossary, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("%w: glossary path required", contract.ErrGlossaryLoad)
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", contract.ErrGlossaryLoad, opts.Path, err)
	}

	var entries []contract.GlossaryEntry
	switch ext := strings.ToLower(filepath.Ext(opts.Path)); ext {
	case ".json":
		entries, err = parseJSON(data)
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	default:
		entries, err = parseCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrGlossaryLoad, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return len(entries[i].Source) > len(entries[j].Source)
	})

	return &Glossary{entries: entries, fold: cases.Fold()}, nil
}

func parseJSON(data []byte) ([]contract.GlossaryEntry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

func parseYAML(data []byte) ([]contract.GlossaryEntry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

func parseCSV(data []byte) ([]contract.GlossaryEntry, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	entries := make([]contract.GlossaryEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e := contract.GlossaryEntry{
			Source: get(row, "source"),
			Target: get(row, "target"),
			Notes:  get(row, "notes"),
		}
		if v := get(row, "case_sensitive"); v != "" {
			e.CaseSensitive, _ = strconv.ParseBool(v)
		}
		if v := get(row, "priority"); v != "" {
			e.Priority, _ = strconv.Atoi(v)
		}
		if e.Source == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LookupMatches returns every entry whose source term occurs in text,
// in the compiled (priority desc, length desc) order.
func (g *Glossary) LookupMatches(text string) []contract.GlossaryEntry {
	var out []contract.GlossaryEntry
	for _, e := range g.entries {
		if g.contains(text, e.Source, e.CaseSensitive) {
			out = append(out, e)
		}
	}
	return out
}

func (g *Glossary) contains(haystack, needle string, caseSensitive bool) bool {
	if needle == "" {
		return false
	}
	if caseSensitive {
		return strings.Contains(haystack, needle)
	}
	return strings.Contains(g.fold.String(haystack), g.fold.String(needle))
}

// PromptFragment renders the matched entries as a block a backend prompt
// embeds to steer terminology.
func (g *Glossary) PromptFragment(text string) string {
	matches := g.LookupMatches(text)
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Glossary (use these exact translations):\n")
	for _, e := range matches {
		fmt.Fprintf(&b, "- %q -> %q\n", e.Source, e.Target)
	}
	return b.String()
}

// PhrasePairs returns every loaded entry.
func (g *Glossary) PhrasePairs() []contract.GlossaryEntry {
	out := make([]contract.GlossaryEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Verify reports every entry whose source term appears in source but
// whose target term does not appear in translated.
func (g *Glossary) Verify(source, translated string) []contract.GlossaryEntry {
	var violations []contract.GlossaryEntry
	for _, e := range g.LookupMatches(source) {
		if !g.contains(translated, e.Target, e.CaseSensitive) {
			violations = append(violations, e)
		}
	}
	return violations
}

var _ contract.Glossary = (*Glossary)(nil)
