// Package config loads the YAML configuration of lexflow and the resource
// files (lexicons, phrase dictionaries, special cases) that stages are built from.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/logging"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/pipeline"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
	"github.com/cognicore/lexflow/pkg/lexflow/store/memstore"
	"github.com/cognicore/lexflow/pkg/lexflow/store/sqlite"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the top-level configuration file.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Streaming StreamingConfig `yaml:"streaming"`
	Logging   logging.Config  `yaml:"logging"`
	Resources Resources       `yaml:"resources"`
}

// StoreConfig selects where models are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// PipelineConfig identifies the pipeline and the stages it includes.
type PipelineConfig struct {
	Language         string   `yaml:"language"`
	Languages        []string `yaml:"languages"`
	Tag              string   `yaml:"tag"`
	Version          int      `yaml:"version"`
	SentenceDetector bool     `yaml:"sentence_detector"`
	Tagger           bool     `yaml:"tagger"`
}

// StreamingConfig tunes pipeline.Options. Zero values keep the defaults.
type StreamingConfig struct {
	BlockSize   int `yaml:"block_size"`
	BatchSize   int `yaml:"batch_size"`
	Parallelism int `yaml:"parallelism"`
	ReportEvery int `yaml:"report_every"`
}

// Resources lists the files stages are built from. Empty paths are skipped.
type Resources struct {
	Lexicon      string `yaml:"lexicon"`
	Dict         string `yaml:"dict"`
	Taxonomy     string `yaml:"taxonomy"`
	SpecialCases string `yaml:"special_cases"`
	Neuralyzer   string `yaml:"neuralyzer"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{Driver: DriverSQLite, Path: "lexflow.db"},
		Pipeline: PipelineConfig{Language: string(model.English), SentenceDetector: true},
		Logging:  logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file on top of Default and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver: %w", internalerr.ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q: %w", c.Store.Driver, internalerr.ErrInvalidConfig)
	}
	if c.Pipeline.Version < 0 {
		return fmt.Errorf("pipeline.version must not be negative: %w", internalerr.ErrInvalidConfig)
	}
	s := c.Streaming
	if s.BlockSize < 0 || s.BatchSize < 0 || s.Parallelism < 0 || s.ReportEvery < 0 {
		return fmt.Errorf("streaming sizes must not be negative: %w", internalerr.ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %v: %w", err, internalerr.ErrInvalidConfig)
	}
	return nil
}

// Language returns the pipeline language; empty means the wildcard.
func (c *Config) Language() model.Language {
	return model.ParseLanguage(c.Pipeline.Language)
}

// Languages returns the configured language list.
func (c *Config) Languages() []model.Language {
	out := make([]model.Language, 0, len(c.Pipeline.Languages))
	for _, l := range c.Pipeline.Languages {
		out = append(out, model.ParseLanguage(l))
	}
	return out
}

// Descriptor identifies the configured pipeline in the store.
func (c *Config) Descriptor() model.Descriptor {
	lang := c.Language()
	if len(c.Pipeline.Languages) > 0 {
		lang = model.Any
	}
	return model.New(lang, model.KindPipeline, c.Pipeline.Tag, c.Pipeline.Version)
}

// Include returns the optional stages the construction helpers load.
func (c *Config) Include() pipeline.Include {
	return pipeline.Include{
		SentenceDetector: c.Pipeline.SentenceDetector,
		Tagger:           c.Pipeline.Tagger,
		Tag:              c.Pipeline.Tag,
	}
}

// Options returns pipeline options for the configured pipeline.
func (c *Config) Options(logger *slog.Logger) pipeline.Options {
	d := c.Descriptor()
	return pipeline.Options{
		Language:    d.Language,
		Tag:         d.Tag,
		Version:     d.Version,
		Logger:      logger,
		BlockSize:   c.Streaming.BlockSize,
		BatchSize:   c.Streaming.BatchSize,
		Parallelism: c.Streaming.Parallelism,
		ReportEvery: c.Streaming.ReportEvery,
	}
}

// Loader returns a resource loader for the configured language and tag.
func (c *Config) Loader() *Loader {
	return &Loader{
		Language:         c.Language(),
		Tag:              c.Pipeline.Tag,
		LexiconPath:      c.Resources.Lexicon,
		DictPath:         c.Resources.Dict,
		TaxonomyPath:     c.Resources.Taxonomy,
		SpecialCasesPath: c.Resources.SpecialCases,
		NeuralyzerPath:   c.Resources.Neuralyzer,
	}
}

// OpenStore opens the configured model store with the stage codec.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Store.Driver {
	case DriverMemory:
		return memstore.New(stages.Codec{}), nil
	case DriverSQLite:
		return sqlite.OpenSQLite(ctx, c.Store.Path, stages.Codec{})
	}
	return nil, fmt.Errorf("unknown store.driver %q: %w", c.Store.Driver, internalerr.ErrInvalidConfig)
}
