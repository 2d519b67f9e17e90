package stages

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

func roundTrip(t *testing.T, p process.Process) process.Process {
	t.Helper()
	var c Codec
	data, err := c.Encode(p)
	if err != nil {
		t.Fatalf("Encode %s: %v", p.Descriptor(), err)
	}
	got, err := c.Decode(p.Descriptor(), data)
	if err != nil {
		t.Fatalf("Decode %s: %v", p.Descriptor(), err)
	}
	if got.Descriptor() != p.Descriptor() {
		t.Errorf("descriptor changed: %s -> %s", p.Descriptor(), got.Descriptor())
	}
	return got
}

func TestCodecTokenizer(t *testing.T) {
	tok := NewTokenizer(model.English)
	tok.SetVersion(2)
	tok.ImportSpecialCases([]process.SpecialCase{{Text: "can't", Tokens: []string{"ca", "n't"}}})

	got := roundTrip(t, tok).(*Tokenizer)
	if !reflect.DeepEqual(got.SpecialCases(), tok.SpecialCases()) {
		t.Errorf("special cases lost: %v", got.SpecialCases())
	}
}

func TestCodecTrainedSentenceDetector(t *testing.T) {
	sd := NewSentenceDetector(model.English, "trained")
	if _, err := sd.Train(context.Background(), trainingCorpus(), TrainOptions{Epochs: 5}); err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, sd).(*SentenceDetector)
	if !got.Trained() {
		t.Fatal("decoded detector lost its weights")
	}
	doc := tokenized("Mr. Green left. Nobody knew why!")
	if !reflect.DeepEqual(got.DetectSentences(doc), sd.DetectSentences(doc)) {
		t.Error("decoded detector disagrees with the original")
	}
}

func TestCodecTaggerAndMatcher(t *testing.T) {
	tg := NewTagger(model.English, "pos")
	tg.AddWord("the", "DET")
	gotTagger := roundTrip(t, tg).(*Tagger)

	doc := tokenized("the quickly")
	gotTagger.Process(doc)
	if doc.Tokens[0].Tag != "DET" || doc.Tokens[1].Tag != "ADV" {
		t.Errorf("decoded tagger lost lexicon or suffixes: %+v", doc.Tokens)
	}

	m := newsMatcher()
	gotMatcher := roundTrip(t, m).(*PhraseMatcher)
	if !reflect.DeepEqual(gotMatcher.Entries(), m.Entries()) {
		t.Error("decoded matcher lost entries")
	}
}

type unknownStage struct{}

func (unknownStage) Descriptor() model.Descriptor         { return model.New(model.Any, "custom", "", 0) }
func (unknownStage) Process(doc *document.Document) error { return nil }

func TestCodecRejectsUnknown(t *testing.T) {
	var c Codec
	if _, err := c.Encode(unknownStage{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := c.Decode(model.New(model.Any, "custom", "", 0), nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
