package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
)

// Taxonomy maps entity types to canonical names and their variants.
type Taxonomy struct {
	Entities map[string]map[string][]string `yaml:"entities"`
}

// LoadTaxonomy loads a taxonomy from a YAML file
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, err
	}

	return &tax, nil
}

// PhraseEntries flattens the taxonomy into matcher entries, ordered by type then name.
func (t *Taxonomy) PhraseEntries() []stages.PhraseEntry {
	var out []stages.PhraseEntry
	types := make([]string, 0, len(t.Entities))
	for typ := range t.Entities {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		names := make([]string, 0, len(t.Entities[typ]))
		for name := range t.Entities[typ] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, stages.PhraseEntry{Canonical: name, Variants: t.Entities[typ][name], Category: typ})
		}
	}
	return out
}

// Dict represents the phrase dictionary
type Dict struct {
	Entries []stages.PhraseEntry
}

// LoadDict loads the phrase dictionary from a file
// Format: canonical|variant1|variant2|category
func LoadDict(path string) (*Dict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dict := &Dict{Entries: []stages.PhraseEntry{}}
	lines := strings.Split(string(data), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}

		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		dict.Entries = append(dict.Entries, stages.PhraseEntry{
			Canonical: parts[0],
			Variants:  parts[1 : len(parts)-1],
			Category:  parts[len(parts)-1],
		})
	}

	return dict, nil
}

type specialCaseFile struct {
	SpecialCases []process.SpecialCase `yaml:"special_cases"`
}

// LoadSpecialCases reads tokenizer exceptions from a YAML file.
//
// Expected format:
//
//	special_cases:
//	  - text: "can't"
//	    tokens: ["ca", "n't"]
func LoadSpecialCases(path string) ([]process.SpecialCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f specialCaseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i, sc := range f.SpecialCases {
		if sc.Text == "" || len(sc.Tokens) == 0 {
			return nil, fmt.Errorf("special case %d in %s: empty text or tokens: %w", i, path, internalerr.ErrInvalidConfig)
		}
	}
	return f.SpecialCases, nil
}

// NeuralyzerRules is the YAML layout of post-processing rules.
type NeuralyzerRules struct {
	// Forget maps an entity type to the values to drop.
	Forget      map[string][]string `yaml:"forget"`
	ForgetTypes []string            `yaml:"forget_types"`
	// Add maps an entity type to token values that always carry it.
	Add map[string][]string `yaml:"add"`
}

// LoadNeuralyzerRules loads neuralyzer rules from a YAML file
func LoadNeuralyzerRules(path string) (*NeuralyzerRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rules NeuralyzerRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}

	return &rules, nil
}
