package stages

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/fastmath"
	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// DefaultFeatureBits sizes the hashed feature space of a trained detector.
const DefaultFeatureBits = 12

var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc", "inc", "ltd",
	"co", "corp", "e.g", "i.e", "fig", "no", "jan", "feb", "mar", "apr", "jun",
	"jul", "aug", "sep", "sept", "oct", "nov", "dec",
}

// SentenceDetector splits tokens into sentence spans. Without trained weights
// it uses punctuation rules; after Train it scores each boundary candidate
// with a logistic model over hashed context features.
type SentenceDetector struct {
	desc model.Descriptor

	abbreviations map[string]struct{}
	bits          int
	weights       []float32
	bias          float32
}

// NewSentenceDetector creates a rule-based detector.
func NewSentenceDetector(lang model.Language, tag string) *SentenceDetector {
	sd := &SentenceDetector{
		desc:          model.New(lang, model.KindSentenceDetector, tag, 0),
		abbreviations: make(map[string]struct{}),
		bits:          DefaultFeatureBits,
	}
	sd.AddAbbreviations(defaultAbbreviations...)
	return sd
}

// Descriptor implements process.Process.
func (sd *SentenceDetector) Descriptor() model.Descriptor { return sd.desc }

// SetVersion changes the version the detector reports.
func (sd *SentenceDetector) SetVersion(v int) { sd.desc.Version = v }

// AddAbbreviations registers tokens after which a period does not end a sentence.
func (sd *SentenceDetector) AddAbbreviations(abbrevs ...string) {
	for _, a := range abbrevs {
		sd.abbreviations[strings.ToLower(strings.TrimSuffix(a, "."))] = struct{}{}
	}
}

// Abbreviations returns the registered abbreviations, sorted.
func (sd *SentenceDetector) Abbreviations() []string {
	out := make([]string, 0, len(sd.abbreviations))
	for a := range sd.abbreviations {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Retarget returns an independent copy of the detector scoped to lang.
func (sd *SentenceDetector) Retarget(lang model.Language) process.Process {
	cp := *sd
	cp.desc.Language = lang
	cp.abbreviations = maps.Clone(sd.abbreviations)
	cp.weights = slices.Clone(sd.weights)
	return &cp
}

// Trained reports whether the detector carries a learned model.
func (sd *SentenceDetector) Trained() bool { return len(sd.weights) > 0 }

// Process implements process.Process.
func (sd *SentenceDetector) Process(doc *document.Document) error {
	doc.Spans = sd.DetectSentences(doc)
	return nil
}

// DetectSentences returns sentence spans covering every token of doc.
func (sd *SentenceDetector) DetectSentences(doc *document.Document) []document.Span {
	toks := doc.Tokens
	if len(toks) == 0 {
		return nil
	}
	var spans []document.Span
	start := 0
	for i := 0; i < len(toks); i++ {
		if !isTerminal(toks[i].Value) || !sd.isBoundary(toks, i) {
			continue
		}
		end := extendBoundary(toks, i)
		spans = append(spans, document.Span{Begin: start, End: end})
		start = end
		i = end - 1
	}
	if start < len(toks) {
		spans = append(spans, document.Span{Begin: start, End: len(toks)})
	}
	return spans
}

func (sd *SentenceDetector) isBoundary(toks []document.Token, i int) bool {
	if sd.Trained() {
		z := float64(sd.bias)
		for _, f := range sd.features(toks, i, sd.bits) {
			z += float64(sd.weights[f])
		}
		return 1/(1+math.Exp(-z)) > 0.5
	}
	return sd.ruleBoundary(toks, i)
}

func (sd *SentenceDetector) ruleBoundary(toks []document.Token, i int) bool {
	if toks[i].Value != "." {
		return true
	}
	if i > 0 && sd.isAbbreviation(toks[i-1].Norm) && toks[i-1].End == toks[i].Begin {
		return false
	}
	next := nextWord(toks, i)
	if next < 0 {
		return true
	}
	r, _ := utf8.DecodeRuneInString(toks[next].Value)
	return !unicode.IsLower(r)
}

func (sd *SentenceDetector) isAbbreviation(norm string) bool {
	_, ok := sd.abbreviations[norm]
	return ok
}

// features hashes the context of candidate i into a space of 1<<bits weights.
func (sd *SentenceDetector) features(toks []document.Token, i, bits int) []uint32 {
	prev, next := "<s>", "</s>"
	prevAttached := false
	if i > 0 {
		prev = toks[i-1].Norm
		prevAttached = toks[i-1].End == toks[i].Begin
	}
	nextShape := "none"
	if j := nextWord(toks, i); j >= 0 {
		next = toks[j].Norm
		nextShape = shape(toks[j].Value)
	}
	raw := []string{
		"bias",
		"punct=" + toks[i].Value,
		"prev=" + prev,
		"next=" + next,
		"next_shape=" + nextShape,
		fmt.Sprintf("prev_len=%d", min(utf8.RuneCountInString(prev), 5)),
		fmt.Sprintf("prev_abbr=%t", sd.isAbbreviation(prev)),
		fmt.Sprintf("prev_attached=%t", prevAttached),
		"punct_next_shape=" + toks[i].Value + "|" + nextShape,
	}
	mask := uint32(1)<<bits - 1
	out := make([]uint32, len(raw))
	for k, f := range raw {
		h := fnv.New32a()
		h.Write([]byte(f))
		out[k] = h.Sum32() & mask
	}
	return out
}

// TrainOptions configures SentenceDetector.Train.
type TrainOptions struct {
	Epochs       int
	Workers      int
	LearningRate float32
	FeatureBits  int
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.Epochs <= 0 {
		o.Epochs = 10
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.5
	}
	if o.FeatureBits <= 0 {
		o.FeatureBits = DefaultFeatureBits
	}
	return o
}

type boundaryExample struct {
	features []uint32
	label    float32
}

// Train fits the logistic boundary model on documents with gold Tokens and
// Spans. Each worker owns a fastmath.ThreadState: it copies the current
// weights into its Hidden buffer, accumulates gradients over its shard with
// table sigmoid/log, and the gradients are averaged after every epoch.
// The returned history belongs to worker 0.
func (sd *SentenceDetector) Train(ctx context.Context, docs []*document.Document, opts TrainOptions) (*fastmath.History, error) {
	opts = opts.withDefaults()
	bits := opts.FeatureBits
	dims := 1 << bits

	examples := sd.collectExamples(docs, bits)
	if len(examples) == 0 {
		return nil, fmt.Errorf("train sentence detector: no boundary candidates: %w", internalerr.ErrInvalidInput)
	}

	weights := make([]float32, dims)
	var bias float32
	states := fastmath.NewThreadStates(ctx, opts.Workers, fastmath.Sizes{Hidden: dims, Output: 1})

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		var wg sync.WaitGroup
		for w, st := range states {
			wg.Add(1)
			go func(w int, st *fastmath.ThreadState) {
				defer wg.Done()
				st.Reset()
				st.Output[0] = 0
				copy(st.Hidden, weights)
				n := 0
				for k := w; k < len(examples); k += len(states) {
					if n++; n%256 == 0 && st.Cancelled() {
						return
					}
					ex := examples[k]
					z := bias
					for _, f := range ex.features {
						z += st.Hidden[f]
					}
					p := st.Sigmoid(z)
					g := p - ex.label
					for _, f := range ex.features {
						st.Gradient[f] += g
					}
					st.Output[0] += g
					if ex.label > 0 {
						st.AddLoss(float64(-st.Log(p)))
					} else {
						st.AddLoss(float64(-st.Log(1 - p)))
					}
				}
			}(w, st)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return states[0].History, err
		}

		var lossSum float64
		var seen int64
		scale := opts.LearningRate / float32(len(examples))
		for _, st := range states {
			for f, g := range st.Gradient {
				if g != 0 {
					weights[f] -= scale * g
				}
			}
			bias -= scale * st.Output[0]
			lossSum += st.Loss() * float64(st.Examples())
			seen += st.Examples()
		}
		states[0].History.Record(epoch, lossSum/float64(seen), seen)
	}

	sd.bits = bits
	sd.weights = weights
	sd.bias = bias
	return states[0].History, nil
}

// collectExamples labels every terminal punctuation token: positive when a
// gold span ends right after it, allowing trailing terminals and closers.
func (sd *SentenceDetector) collectExamples(docs []*document.Document, bits int) []boundaryExample {
	var out []boundaryExample
	for _, doc := range docs {
		ends := make(map[int]bool, len(doc.Spans))
		for _, s := range doc.Spans {
			ends[s.End] = true
		}
		for i, tok := range doc.Tokens {
			if !isTerminal(tok.Value) {
				continue
			}
			var label float32
			if ends[extendBoundary(doc.Tokens, i)] {
				label = 1
			}
			out = append(out, boundaryExample{features: sd.features(doc.Tokens, i, bits), label: label})
		}
	}
	return out
}

func isTerminal(v string) bool {
	switch v {
	case ".", "!", "?", "…":
		return true
	}
	return false
}

func isCloser(v string) bool {
	switch v {
	case "\"", "'", ")", "]", "}", "”", "’", "»":
		return true
	}
	return false
}

// extendBoundary returns the exclusive end of a sentence whose last terminal
// is at i, absorbing following terminals and closing quotes or brackets.
func extendBoundary(toks []document.Token, i int) int {
	end := i + 1
	for end < len(toks) && (isTerminal(toks[end].Value) || isCloser(toks[end].Value)) {
		end++
	}
	return end
}

func nextWord(toks []document.Token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if !isTerminal(toks[j].Value) && !isCloser(toks[j].Value) {
			return j
		}
	}
	return -1
}

func shape(v string) string {
	r, _ := utf8.DecodeRuneInString(v)
	switch {
	case unicode.IsUpper(r):
		return "upper"
	case unicode.IsLower(r):
		return "lower"
	case unicode.IsDigit(r):
		return "digit"
	default:
		return "other"
	}
}
