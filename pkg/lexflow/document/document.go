package document

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Token is a single unit of text. Begin and End are byte offsets into Document.Text.
type Token struct {
	Begin int    `json:"begin"`
	End   int    `json:"end"`
	Value string `json:"value"`
	Norm  string `json:"norm,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Span is a sentence-equivalent range of tokens, [Begin, End).
type Span struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Len returns the number of tokens covered by the span.
func (s Span) Len() int { return s.End - s.Begin }

// Entity annotates a token range [Begin, End) with a type.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
}

// Document is annotated, language-tagged text. Stages mutate it in place.
// A Document is not safe for concurrent mutation; the pipeline hands each
// document to one goroutine at a time.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Tokens   []Token           `json:"tokens,omitempty"`
	Spans    []Span            `json:"spans,omitempty"`
	Entities []Entity          `json:"entities,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	language model.Language
}

// New creates a document with a fresh ULID. The text is NFC-normalized so
// offsets written by stages are stable across equivalent inputs.
func New(text string, lang model.Language) *Document {
	if lang == "" {
		lang = model.Any
	}
	return &Document{
		ID:       newID(),
		Text:     norm.NFC.String(text),
		language: lang,
	}
}

// Language returns the document's language tag.
func (d *Document) Language() model.Language { return d.language }

// SetLanguage assigns a language to a document that still carries the
// wildcard. It reports false when the language was already fixed.
func (d *Document) SetLanguage(lang model.Language) bool {
	if !d.language.IsAny() {
		return d.language == lang
	}
	d.language = lang
	return true
}

// Length returns the byte length of the text.
func (d *Document) Length() int { return len(d.Text) }

// Empty reports whether the document has no text.
func (d *Document) Empty() bool { return len(d.Text) == 0 }

func (d *Document) TokensCount() int   { return len(d.Tokens) }
func (d *Document) SpansCount() int    { return len(d.Spans) }
func (d *Document) EntitiesCount() int { return len(d.Entities) }

// TokenText returns the surface text of token i.
func (d *Document) TokenText(i int) string {
	t := d.Tokens[i]
	return d.Text[t.Begin:t.End]
}

// SpanTokens returns the tokens of span s.
func (d *Document) SpanTokens(s Span) []Token {
	return d.Tokens[s.Begin:s.End]
}

// SetMeta stores a metadata value, allocating the map on first use.
func (d *Document) SetMeta(key, value string) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	d.Metadata[key] = value
}

// Wire is the serialized form of a Document, with the language exposed.
type Wire struct {
	ID       string            `json:"id"`
	Language model.Language    `json:"language"`
	Text     string            `json:"text"`
	Tokens   []Token           `json:"tokens,omitempty"`
	Spans    []Span            `json:"spans,omitempty"`
	Entities []Entity          `json:"entities,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToWire converts the document for serialization.
func (d *Document) ToWire() Wire {
	return Wire{
		ID:       d.ID,
		Language: d.language,
		Text:     d.Text,
		Tokens:   d.Tokens,
		Spans:    d.Spans,
		Entities: d.Entities,
		Metadata: d.Metadata,
	}
}

// FromWire rebuilds a document. The text is kept byte for byte so token
// offsets stay valid. A missing id gets a fresh ULID.
func FromWire(w Wire) *Document {
	lang := w.Language
	if lang == "" {
		lang = model.Any
	}
	id := w.ID
	if id == "" {
		id = newID()
	}
	return &Document{
		ID:       id,
		Text:     w.Text,
		Tokens:   w.Tokens,
		Spans:    w.Spans,
		Entities: w.Entities,
		Metadata: w.Metadata,
		language: lang,
	}
}
