package stages

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// Tokenizer splits text into word and punctuation tokens with byte offsets.
// Special cases (exact surface form -> tokens) override the default rules.
type Tokenizer struct {
	desc model.Descriptor

	mu      sync.RWMutex
	special map[string][]string
}

// NewTokenizer creates a tokenizer for the given language.
func NewTokenizer(lang model.Language) *Tokenizer {
	return &Tokenizer{
		desc:    model.New(lang, model.KindTokenizer, "", 0),
		special: make(map[string][]string),
	}
}

// Descriptor implements process.Process.
func (t *Tokenizer) Descriptor() model.Descriptor { return t.desc }

// SetVersion changes the version the tokenizer reports.
func (t *Tokenizer) SetVersion(v int) { t.desc.Version = v }

// Process tokenizes doc.Text. Previous annotations are discarded because
// their token indexes would no longer be valid.
func (t *Tokenizer) Process(doc *document.Document) error {
	doc.Tokens = t.Tokenize(doc.Text)
	doc.Spans = nil
	doc.Entities = nil
	return nil
}

// ImportSpecialCases adds exceptions; later imports win on conflicts.
func (t *Tokenizer) ImportSpecialCases(cases []process.SpecialCase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range cases {
		if c.Text == "" || len(c.Tokens) == 0 {
			continue
		}
		t.special[c.Text] = append([]string(nil), c.Tokens...)
	}
}

// SpecialCases returns the tokenizer's exceptions sorted by text.
func (t *Tokenizer) SpecialCases() []process.SpecialCase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]process.SpecialCase, 0, len(t.special))
	for text, toks := range t.special {
		out = append(out, process.SpecialCase{Text: text, Tokens: append([]string(nil), toks...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []document.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var tokens []document.Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = t.chunk(text, start, i, tokens)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	// Don't forget the last chunk
	if start >= 0 {
		tokens = t.chunk(text, start, len(text), tokens)
	}
	return tokens
}

// chunk tokenizes the whitespace-free range [b, e). Leading and trailing
// punctuation is peeled off one rune at a time, checking special cases
// against the remaining core after each step.
func (t *Tokenizer) chunk(text string, b, e int, tokens []document.Token) []document.Token {
	var suffix []document.Token
	for b < e {
		if toks, ok := t.special[text[b:e]]; ok {
			tokens = appendSpecial(tokens, text, b, e, toks)
			return appendReversed(tokens, suffix)
		}
		r, size := utf8.DecodeRuneInString(text[b:e])
		if !isWordRune(r) {
			tokens = append(tokens, newToken(text, b, b+size))
			b += size
			continue
		}
		r, size = utf8.DecodeLastRuneInString(text[b:e])
		if !isWordRune(r) {
			suffix = append(suffix, newToken(text, e-size, e))
			e -= size
			continue
		}
		tokens = splitCore(text, b, e, tokens)
		break
	}
	return appendReversed(tokens, suffix)
}

// splitCore splits a range that starts and ends with word runes. Hyphens and
// apostrophes join word runes; '.' and ',' join digits only.
func splitCore(text string, b, e int, tokens []document.Token) []document.Token {
	start := b
	var prev rune
	for i := b; i < e; {
		r, size := utf8.DecodeRuneInString(text[i:e])
		if isWordRune(r) {
			prev = r
			i += size
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i+size : e])
		if isJoiner(prev, r, next) {
			prev = r
			i += size
			continue
		}
		if start < i {
			tokens = append(tokens, newToken(text, start, i))
		}
		tokens = append(tokens, newToken(text, i, i+size))
		i += size
		start = i
		prev = r
	}
	if start < e {
		tokens = append(tokens, newToken(text, start, e))
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func isJoiner(prev, r, next rune) bool {
	switch r {
	case '-', '\'', '’':
		return isWordRune(prev) && isWordRune(next)
	case '.', ',':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	}
	return false
}

func newToken(text string, b, e int) document.Token {
	v := text[b:e]
	return document.Token{Begin: b, End: e, Value: v, Norm: strings.ToLower(v)}
}

// appendSpecial emits the tokens of a special case. When the tokens spell the
// surface form exactly they get their own offsets, otherwise each one spans
// the whole surface form.
func appendSpecial(tokens []document.Token, text string, b, e int, toks []string) []document.Token {
	if strings.Join(toks, "") == text[b:e] {
		pos := b
		for _, tok := range toks {
			tokens = append(tokens, document.Token{Begin: pos, End: pos + len(tok), Value: tok, Norm: strings.ToLower(tok)})
			pos += len(tok)
		}
		return tokens
	}
	for _, tok := range toks {
		tokens = append(tokens, document.Token{Begin: b, End: e, Value: tok, Norm: strings.ToLower(tok)})
	}
	return tokens
}

func appendReversed(tokens, suffix []document.Token) []document.Token {
	for i := len(suffix) - 1; i >= 0; i-- {
		tokens = append(tokens, suffix[i])
	}
	return tokens
}
