package stages

import (
	"sort"
	"strings"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// PhraseEntry is a dictionary entry: the canonical form, its variants and
// the entity type it produces.
type PhraseEntry struct {
	Canonical string   `yaml:"canonical"`
	Variants  []string `yaml:"variants,omitempty"`
	Category  string   `yaml:"category"`
}

// PhraseMatcher recognizes dictionary phrases in tokenized text with greedy
// longest match and annotates them as entities. Phrase chunks the default
// tokenizer would break apart (e.g. "AT&T", "U.S.") are exported as
// tokenizer special cases.
type PhraseMatcher struct {
	desc    model.Descriptor
	entries []PhraseEntry

	dict    map[string]PhraseEntry // token norms joined by " " → entry
	maxLen  int
	special []process.SpecialCase
}

// NewPhraseMatcher creates a matcher over the given entries.
func NewPhraseMatcher(lang model.Language, tag string, entries []PhraseEntry) *PhraseMatcher {
	m := &PhraseMatcher{desc: model.New(lang, model.KindEntityRecognizer, tag, 0)}
	m.setEntries(entries)
	return m
}

func (m *PhraseMatcher) setEntries(entries []PhraseEntry) {
	m.entries = append([]PhraseEntry(nil), entries...)
	m.special = phraseSpecialCases(entries)

	keyer := NewTokenizer(m.desc.Language)
	keyer.ImportSpecialCases(m.special)

	m.dict = make(map[string]PhraseEntry)
	m.maxLen = 1
	for _, e := range entries {
		for _, phrase := range append([]string{e.Canonical}, e.Variants...) {
			toks := keyer.Tokenize(phrase)
			if len(toks) == 0 {
				continue
			}
			m.dict[joinNorms(toks)] = e
			if len(toks) > m.maxLen {
				m.maxLen = len(toks)
			}
		}
	}
}

// Descriptor implements process.Process.
func (m *PhraseMatcher) Descriptor() model.Descriptor { return m.desc }

// SetVersion changes the version the matcher reports.
func (m *PhraseMatcher) SetVersion(v int) { m.desc.Version = v }

// Entries returns the dictionary entries.
func (m *PhraseMatcher) Entries() []PhraseEntry {
	return append([]PhraseEntry(nil), m.entries...)
}

// SpecialCases implements process.HasSpecialCases.
func (m *PhraseMatcher) SpecialCases() []process.SpecialCase {
	return append([]process.SpecialCase(nil), m.special...)
}

// ProducedEntityTypes implements process.EntityRecognizer.
func (m *PhraseMatcher) ProducedEntityTypes() []string {
	seen := make(map[string]struct{})
	for _, e := range m.entries {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Process annotates matched phrases as entities.
func (m *PhraseMatcher) Process(doc *document.Document) error {
	toks := doc.Tokens
	i := 0
	for i < len(toks) {
		maxPhrase := m.maxLen
		if remaining := len(toks) - i; maxPhrase > remaining {
			maxPhrase = remaining
		}
		matched := 0
		// Try matching from longest phrase to shortest
		for n := maxPhrase; n >= 1; n-- {
			if e, ok := m.dict[joinNorms(toks[i:i+n])]; ok {
				doc.Entities = append(doc.Entities, document.Entity{
					Type:  e.Category,
					Value: e.Canonical,
					Begin: i,
					End:   i + n,
				})
				matched = n
				break
			}
		}
		if matched > 0 {
			i += matched
		} else {
			i++
		}
	}
	return nil
}

func joinNorms(toks []document.Token) string {
	var b strings.Builder
	for k, t := range toks {
		if k > 0 {
			b.WriteByte(' ')
		}
		norm := t.Norm
		if norm == "" {
			norm = strings.ToLower(t.Value)
		}
		b.WriteString(norm)
	}
	return b.String()
}

// phraseSpecialCases lists whitespace chunks of the phrases that a plain
// tokenizer would split into several tokens.
func phraseSpecialCases(entries []PhraseEntry) []process.SpecialCase {
	plain := NewTokenizer(model.Any)
	seen := make(map[string]struct{})
	var out []process.SpecialCase
	for _, e := range entries {
		for _, phrase := range append([]string{e.Canonical}, e.Variants...) {
			for _, chunk := range strings.Fields(phrase) {
				if _, ok := seen[chunk]; ok {
					continue
				}
				seen[chunk] = struct{}{}
				if len(plain.Tokenize(chunk)) > 1 {
					out = append(out, process.SpecialCase{Text: chunk, Tokens: []string{chunk}})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}
