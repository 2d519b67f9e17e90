package stages

import (
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

// Universal part-of-speech tags produced by the Tagger.
var universalTags = []string{
	"ADJ", "ADP", "ADV", "AUX", "CCONJ", "DET", "INTJ", "NOUN", "NUM",
	"PART", "PRON", "PROPN", "PUNCT", "SCONJ", "SYM", "VERB", "X",
}

// suffixRule maps a word ending to a tag when the lexicon has no entry.
type suffixRule struct {
	Suffix string `yaml:"suffix"`
	Tag    string `yaml:"tag"`
}

var englishSuffixes = []suffixRule{
	{"able", "ADJ"}, {"tion", "NOUN"}, {"ment", "NOUN"}, {"ness", "NOUN"},
	{"ing", "VERB"}, {"ous", "ADJ"}, {"ful", "ADJ"}, {"ive", "ADJ"},
	{"ity", "NOUN"}, {"ed", "VERB"}, {"ly", "ADV"},
}

// Tagger assigns part-of-speech tags from a lexicon, falling back to
// suffix rules and token shape.
type Tagger struct {
	desc     model.Descriptor
	lexicon  map[string]string
	suffixes []suffixRule
}

// NewTagger creates a tagger. English gets a built-in suffix table.
func NewTagger(lang model.Language, tag string) *Tagger {
	t := &Tagger{
		desc:    model.New(lang, model.KindTagger, tag, 0),
		lexicon: make(map[string]string),
	}
	if lang == model.English {
		t.suffixes = append(t.suffixes, englishSuffixes...)
	}
	return t
}

// Descriptor implements process.Process.
func (t *Tagger) Descriptor() model.Descriptor { return t.desc }

// SetVersion changes the version the tagger reports.
func (t *Tagger) SetVersion(v int) { t.desc.Version = v }

// TagSet implements process.Tagger.
func (t *Tagger) TagSet() []string {
	return append([]string(nil), universalTags...)
}

// AddWord maps a word (case-insensitive) to a tag.
func (t *Tagger) AddWord(word, tag string) {
	t.lexicon[strings.ToLower(word)] = strings.ToUpper(tag)
}

// AddSuffix registers a suffix rule. Longer suffixes are tried first.
func (t *Tagger) AddSuffix(suffix, tag string) {
	t.suffixes = append(t.suffixes, suffixRule{Suffix: strings.ToLower(suffix), Tag: strings.ToUpper(tag)})
	sort.SliceStable(t.suffixes, func(i, j int) bool {
		return len(t.suffixes[i].Suffix) > len(t.suffixes[j].Suffix)
	})
}

// Process implements process.Process.
func (t *Tagger) Process(doc *document.Document) error {
	for i := range doc.Tokens {
		doc.Tokens[i].Tag = t.tagToken(doc.Tokens, i)
	}
	return nil
}

func (t *Tagger) tagToken(toks []document.Token, i int) string {
	tok := toks[i]
	norm := tok.Norm
	if norm == "" {
		norm = strings.ToLower(tok.Value)
	}
	if tag, ok := t.lexicon[norm]; ok {
		return tag
	}

	r, _ := utf8.DecodeRuneInString(tok.Value)
	switch {
	case isNumeric(tok.Value):
		return "NUM"
	case !isWordRune(r):
		if unicode.IsPunct(r) {
			return "PUNCT"
		}
		return "SYM"
	case unicode.IsUpper(r) && i > 0 && !isTerminal(toks[i-1].Value):
		return "PROPN"
	}

	for _, s := range t.suffixes {
		if len(norm) > len(s.Suffix)+1 && strings.HasSuffix(norm, s.Suffix) {
			return s.Tag
		}
	}
	return "NOUN"
}

func isNumeric(s string) bool {
	seenDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			seenDigit = true
		case r == '.' || r == ',' || r == '-':
		default:
			return false
		}
	}
	return seenDigit
}

// taggerLexicon is the YAML layout of a tagger lexicon file.
//
// Expected format:
//
//	words:
//	  the: DET
//	  run: VERB
//	suffixes:
//	  - suffix: ing
//	    tag: VERB
type taggerLexicon struct {
	Words    map[string]string `yaml:"words"`
	Suffixes []suffixRule      `yaml:"suffixes"`
}

// LoadLexiconYAML reads a tagger lexicon file into t.
func (t *Tagger) LoadLexiconYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var lex taggerLexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return err
	}
	for w, tag := range lex.Words {
		t.AddWord(w, tag)
	}
	for _, s := range lex.Suffixes {
		t.AddSuffix(s.Suffix, s.Tag)
	}
	return nil
}
