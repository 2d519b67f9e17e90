package config

import (
	"fmt"

	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
)

// Loader loads resource files and constructs stages
type Loader struct {
	Language         model.Language
	Tag              string
	LexiconPath      string
	DictPath         string
	TaxonomyPath     string
	SpecialCasesPath string
	NeuralyzerPath   string
}

// Components holds the stages built from resource files.
// Matcher and Neuralyzer are nil when no file feeds them.
type Components struct {
	Tokenizer  *stages.Tokenizer
	Tagger     *stages.Tagger
	Matcher    *stages.PhraseMatcher
	Neuralyzer *stages.Neuralyzer
}

// Processes returns the stages in pipeline order.
func (c *Components) Processes() []process.Process {
	procs := []process.Process{c.Tokenizer, c.Tagger}
	if c.Matcher != nil {
		procs = append(procs, c.Matcher)
	}
	return procs
}

// Load reads all resource files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	lang := l.Language
	if lang == "" {
		lang = model.Any
	}
	comp := &Components{
		Tokenizer: stages.NewTokenizer(lang),
		Tagger:    stages.NewTagger(lang, l.Tag),
	}

	if l.SpecialCasesPath != "" {
		cases, err := LoadSpecialCases(l.SpecialCasesPath)
		if err != nil {
			return nil, fmt.Errorf("load special cases: %w", err)
		}
		comp.Tokenizer.ImportSpecialCases(cases)
	}

	if l.LexiconPath != "" {
		if err := comp.Tagger.LoadLexiconYAML(l.LexiconPath); err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
	}

	var entries []stages.PhraseEntry
	if l.DictPath != "" {
		dict, err := LoadDict(l.DictPath)
		if err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
		entries = append(entries, dict.Entries...)
	}
	if l.TaxonomyPath != "" {
		tax, err := LoadTaxonomy(l.TaxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		entries = append(entries, tax.PhraseEntries()...)
	}
	if l.DictPath != "" || l.TaxonomyPath != "" {
		comp.Matcher = stages.NewPhraseMatcher(lang, l.Tag, entries)
		comp.Tokenizer.ImportSpecialCases(comp.Matcher.SpecialCases())
	}

	if l.NeuralyzerPath != "" {
		rules, err := LoadNeuralyzerRules(l.NeuralyzerPath)
		if err != nil {
			return nil, fmt.Errorf("load neuralyzer rules: %w", err)
		}
		n := stages.NewNeuralyzer(lang)
		for typ, values := range rules.Forget {
			for _, v := range values {
				n.ForgetEntity(typ, v)
			}
		}
		for _, typ := range rules.ForgetTypes {
			n.ForgetType(typ)
		}
		for typ, values := range rules.Add {
			for _, v := range values {
				n.AddEntity(v, typ)
			}
		}
		comp.Neuralyzer = n
	}

	return comp, nil
}
