package model

import (
	"fmt"
	"strings"
)

// Language is a language code such as "en" or "fr".
type Language string

// Any is the wildcard language: a stage or document tagged Any applies to every language.
const Any Language = "*"

// Common languages used by construction helpers and defaults.
const (
	English    Language = "en"
	French     Language = "fr"
	German     Language = "de"
	Spanish    Language = "es"
	Portuguese Language = "pt"
	Italian    Language = "it"
)

// ParseLanguage normalizes a language code. Empty input maps to Any.
func ParseLanguage(s string) Language {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "*" || s == "any" {
		return Any
	}
	return Language(s)
}

// IsAny reports whether l is the wildcard.
func (l Language) IsAny() bool { return l == Any || l == "" }

// Matches reports whether a stage tagged l may act on a document tagged other.
// Only two non-wildcard, different languages fail to match.
func (l Language) Matches(other Language) bool {
	return l.IsAny() || other.IsAny() || l == other
}

// Kind identifies the role of a persisted model.
type Kind string

const (
	KindTokenizer        Kind = "tokenizer"
	KindSentenceDetector Kind = "sentence-detector"
	KindTagger           Kind = "tagger"
	KindEntityRecognizer Kind = "entity-recognizer"
	KindPipeline         Kind = "pipeline"
)

// Family is a descriptor's identity ignoring version.
type Family struct {
	Language Language `yaml:"language"`
	Kind     Kind     `yaml:"kind"`
	Tag      string   `yaml:"tag"`
}

// Descriptor is the versioned identity of a persisted model.
type Descriptor struct {
	Language Language `yaml:"language"`
	Kind     Kind     `yaml:"kind"`
	Tag      string   `yaml:"tag"`
	Version  int      `yaml:"version"`
}

// New builds a descriptor.
func New(lang Language, kind Kind, tag string, version int) Descriptor {
	return Descriptor{Language: lang, Kind: kind, Tag: tag, Version: version}
}

// Family returns the version-less identity of d.
func (d Descriptor) Family() Family {
	return Family{Language: d.Language, Kind: d.Kind, Tag: d.Tag}
}

// SameFamily reports whether d and other differ at most by version.
func (d Descriptor) SameFamily(other Descriptor) bool {
	return d.Family() == other.Family()
}

// WithVersion returns a copy of d at version v.
func (d Descriptor) WithVersion(v int) Descriptor {
	d.Version = v
	return d
}

func (d Descriptor) String() string {
	tag := d.Tag
	if tag == "" {
		tag = "-"
	}
	return fmt.Sprintf("%s/%s/%s@v%d", d.Kind, d.Language, tag, d.Version)
}

// Descriptor returns f at the given version.
func (f Family) Descriptor(version int) Descriptor {
	return Descriptor{Language: f.Language, Kind: f.Kind, Tag: f.Tag, Version: version}
}
