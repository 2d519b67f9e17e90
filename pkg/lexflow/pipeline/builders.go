package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
)

// Include selects the optional stages of the construction helpers.
type Include struct {
	SentenceDetector bool
	Tagger           bool
	// Tag selects which tagged models to load; empty means the default models.
	Tag string
}

// retargetable is implemented by stages whose model can serve another language.
type retargetable interface {
	Retarget(lang model.Language) process.Process
}

// ForLanguage builds a pipeline for one language: a tokenizer, then the
// requested sentence detector and tagger loaded at their latest stored version.
func ForLanguage(ctx context.Context, st store.Store, lang model.Language, inc Include, opts Options) (*Pipeline, error) {
	opts.Language = lang
	p := New(opts)
	if err := p.addLanguage(ctx, st, lang, inc); err != nil {
		return nil, err
	}
	p.stored = dedupDescriptors(p.processes)
	return p, nil
}

// ForLanguages builds a wildcard pipeline with the stages of every language.
// Each stage keeps its own language, so documents only meet their own stages.
func ForLanguages(ctx context.Context, st store.Store, langs []model.Language, inc Include, opts Options) (*Pipeline, error) {
	opts.Language = model.Any
	p := New(opts)
	for _, lang := range langs {
		if err := p.addLanguage(ctx, st, lang, inc); err != nil {
			return nil, err
		}
	}
	p.stored = dedupDescriptors(p.processes)
	return p, nil
}

// TokenizerWithSentenceDetector builds a tokenizer plus sentence detector
// pipeline. When lang has no stored detector the English one is used; when
// neither exists the pipeline proceeds with the tokenizer alone.
func TokenizerWithSentenceDetector(ctx context.Context, st store.Store, lang model.Language, opts Options) (*Pipeline, error) {
	opts.Language = lang
	p := New(opts)

	tok, err := loadTokenizer(ctx, st, lang)
	if err != nil {
		return nil, err
	}
	p.appendLocked(tok)

	sd, found, err := loadLatest(ctx, st, model.Family{Language: lang, Kind: model.KindSentenceDetector})
	if err != nil {
		return nil, err
	}
	if !found && lang != model.English {
		sd, found, err = loadLatest(ctx, st, model.Family{Language: model.English, Kind: model.KindSentenceDetector})
		if err != nil {
			return nil, err
		}
		if found {
			p.log.Warn("no sentence detector for language, falling back to English", "language", string(lang))
			if rt, ok := sd.(retargetable); ok {
				sd = rt.Retarget(lang)
			}
		}
	}
	if found {
		p.appendLocked(sd)
	} else {
		p.log.Warn("no sentence detector available, continuing without one", "language", string(lang))
	}

	p.stored = dedupDescriptors(p.processes)
	return p, nil
}

func (p *Pipeline) addLanguage(ctx context.Context, st store.Store, lang model.Language, inc Include) error {
	tok, err := loadTokenizer(ctx, st, lang)
	if err != nil {
		return err
	}
	p.appendLocked(tok)

	var kinds []model.Kind
	if inc.SentenceDetector {
		kinds = append(kinds, model.KindSentenceDetector)
	}
	if inc.Tagger {
		kinds = append(kinds, model.KindTagger)
	}
	for _, kind := range kinds {
		f := model.Family{Language: lang, Kind: kind, Tag: inc.Tag}
		proc, found, err := loadLatest(ctx, st, f)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s model for %s: %w", kind, lang, internalerr.ErrNotFound)
		}
		p.appendLocked(proc)
	}
	return nil
}

// loadTokenizer returns the latest stored tokenizer for lang, or a fresh one.
func loadTokenizer(ctx context.Context, st store.Store, lang model.Language) (process.Process, error) {
	proc, found, err := loadLatest(ctx, st, model.Family{Language: lang, Kind: model.KindTokenizer})
	if err != nil {
		return nil, err
	}
	if !found {
		return stages.NewTokenizer(lang), nil
	}
	return proc, nil
}

func loadLatest(ctx context.Context, st store.Store, f model.Family) (process.Process, bool, error) {
	if st == nil {
		return nil, false, nil
	}
	d, ok, err := st.Latest(ctx, f)
	if err != nil {
		return nil, false, fmt.Errorf("latest %s/%s: %w", f.Kind, f.Language, err)
	}
	if !ok {
		return nil, false, nil
	}
	proc, err := st.Load(ctx, d)
	if errors.Is(err, internalerr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", d, err)
	}
	return proc, true, nil
}
