// Package process defines the capability contract every pipeline stage
// implements, and the optional capabilities the pipeline probes for.
package process

import (
	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

// Process is one stage of document annotation.
type Process interface {
	Descriptor() model.Descriptor
	// Process mutates doc in place.
	Process(doc *document.Document) error
}

// SpecialCase is a tokenizer exception: Text is always split into Tokens.
type SpecialCase struct {
	Text   string   `yaml:"text"`
	Tokens []string `yaml:"tokens"`
}

// Tokenizer splits document text into tokens.
type Tokenizer interface {
	Process
	Tokenize(text string) []document.Token
	ImportSpecialCases(cases []SpecialCase)
}

// SentenceDetector groups tokens into sentence spans.
type SentenceDetector interface {
	Process
	DetectSentences(doc *document.Document) []document.Span
}

// Tagger assigns a tag to each token.
type Tagger interface {
	Process
	TagSet() []string
}

// EntityRecognizer annotates entities.
type EntityRecognizer interface {
	Process
	ProducedEntityTypes() []string
}

// HasSpecialCases is implemented by stages that carry tokenizer exceptions.
type HasSpecialCases interface {
	SpecialCases() []SpecialCase
}

// Neuralyzer post-processes a document after the whole chain ran.
type Neuralyzer interface {
	Language() model.Language
	Neuralyze(doc *document.Document)
}

// Language returns the language a process is scoped to.
func Language(p Process) model.Language { return p.Descriptor().Language }

// AppliesTo reports whether p should run on doc.
func AppliesTo(p Process, doc *document.Document) bool {
	return Language(p).Matches(doc.Language())
}

// IsTokenizer reports whether p provides the Tokenizer capability.
func IsTokenizer(p Process) bool {
	_, ok := p.(Tokenizer)
	return ok
}
