package corpus

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// GoldDocument builds a training document from a record's gold sentences:
// the sentences are joined by single spaces, tokenized with tok, and every
// sentence becomes a span over the tokens that start inside it. Records
// without sentences yield nil.
func GoldDocument(rec Record, tok process.Tokenizer, lang model.Language) *document.Document {
	var sentences []string
	for _, s := range rec.Sentences {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, norm.NFC.String(s))
		}
	}
	if len(sentences) == 0 {
		return nil
	}

	rec.Text = strings.Join(sentences, " ")
	doc := rec.Document(lang)
	doc.Tokens = tok.Tokenize(doc.Text)

	ends := make([]int, len(sentences))
	pos := 0
	for i, s := range sentences {
		pos += len(s)
		ends[i] = pos
		pos++
	}

	start, sent := 0, 0
	for i, t := range doc.Tokens {
		for sent < len(ends) && t.Begin >= ends[sent] {
			if start < i {
				doc.Spans = append(doc.Spans, document.Span{Begin: start, End: i})
			}
			start = i
			sent++
		}
	}
	if start < len(doc.Tokens) {
		doc.Spans = append(doc.Spans, document.Span{Begin: start, End: len(doc.Tokens)})
	}
	return doc
}
