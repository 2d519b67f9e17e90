package stages

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// Codec encodes the stages of this package as YAML model artifacts.
// It satisfies store.Codec.
type Codec struct{}

type tokenizerModel struct {
	SpecialCases []process.SpecialCase `yaml:"special_cases,omitempty"`
}

type sentenceModel struct {
	Abbreviations []string        `yaml:"abbreviations"`
	FeatureBits   int             `yaml:"feature_bits"`
	Bias          float32         `yaml:"bias"`
	Weights       map[int]float32 `yaml:"weights,omitempty"` // sparse, non-zero only
}

type taggerModel struct {
	Words    map[string]string `yaml:"words,omitempty"`
	Suffixes []suffixRule      `yaml:"suffixes,omitempty"`
}

type phraseModel struct {
	Entries []PhraseEntry `yaml:"entries"`
}

// Encode serializes a stage model.
func (Codec) Encode(p process.Process) ([]byte, error) {
	var m any
	switch s := p.(type) {
	case *Tokenizer:
		m = tokenizerModel{SpecialCases: s.SpecialCases()}
	case *SentenceDetector:
		sm := sentenceModel{Abbreviations: s.Abbreviations(), FeatureBits: s.bits, Bias: s.bias}
		if s.Trained() {
			sm.Weights = make(map[int]float32)
			for i, w := range s.weights {
				if w != 0 {
					sm.Weights[i] = w
				}
			}
		}
		m = sm
	case *Tagger:
		m = taggerModel{Words: s.lexicon, Suffixes: s.suffixes}
	case *PhraseMatcher:
		m = phraseModel{Entries: s.entries}
	default:
		return nil, fmt.Errorf("encode %s: unsupported stage %T: %w", p.Descriptor(), p, internalerr.ErrInvalidInput)
	}
	return yaml.Marshal(m)
}

// Decode rebuilds a stage from its descriptor and encoded model.
func (Codec) Decode(d model.Descriptor, data []byte) (process.Process, error) {
	switch d.Kind {
	case model.KindTokenizer:
		var m tokenizerModel
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d, err)
		}
		t := NewTokenizer(d.Language)
		t.desc = d
		t.ImportSpecialCases(m.SpecialCases)
		return t, nil

	case model.KindSentenceDetector:
		var m sentenceModel
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d, err)
		}
		sd := NewSentenceDetector(d.Language, d.Tag)
		sd.desc = d
		sd.abbreviations = make(map[string]struct{})
		sd.AddAbbreviations(m.Abbreviations...)
		if m.FeatureBits > 0 {
			sd.bits = m.FeatureBits
		}
		if len(m.Weights) > 0 {
			sd.weights = make([]float32, 1<<sd.bits)
			for i, w := range m.Weights {
				if i < 0 || i >= len(sd.weights) {
					return nil, fmt.Errorf("decode %s: weight index %d out of range: %w", d, i, internalerr.ErrInvalidInput)
				}
				sd.weights[i] = w
			}
			sd.bias = m.Bias
		}
		return sd, nil

	case model.KindTagger:
		var m taggerModel
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d, err)
		}
		t := NewTagger(d.Language, d.Tag)
		t.desc = d
		t.suffixes = nil
		for w, tag := range m.Words {
			t.AddWord(w, tag)
		}
		for _, s := range m.Suffixes {
			t.AddSuffix(s.Suffix, s.Tag)
		}
		return t, nil

	case model.KindEntityRecognizer:
		var m phraseModel
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d, err)
		}
		pm := NewPhraseMatcher(d.Language, d.Tag, m.Entries)
		pm.desc = d
		return pm, nil
	}
	return nil, fmt.Errorf("decode %s: unknown kind: %w", d, internalerr.ErrInvalidInput)
}
