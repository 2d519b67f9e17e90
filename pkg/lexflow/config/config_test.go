package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "lexflow.yaml", `store:
  driver: sqlite
  path: /var/lib/lexflow/models.db
pipeline:
  language: FR
  tag: news
  version: 3
  tagger: true
streaming:
  block_size: 500
  parallelism: 4
logging:
  level: debug
  format: json
resources:
  dict: dict.txt
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Language() != model.French {
		t.Errorf("Language() = %q, want fr", cfg.Language())
	}
	want := model.New(model.French, model.KindPipeline, "news", 3)
	if cfg.Descriptor() != want {
		t.Errorf("Descriptor() = %v, want %v", cfg.Descriptor(), want)
	}
	// Defaults survive fields the file leaves out.
	if !cfg.Pipeline.SentenceDetector {
		t.Error("sentence_detector default should be kept")
	}
	inc := cfg.Include()
	if !inc.Tagger || !inc.SentenceDetector || inc.Tag != "news" {
		t.Errorf("Include() = %+v", inc)
	}

	opts := cfg.Options(nil)
	if opts.BlockSize != 500 || opts.Parallelism != 4 || opts.BatchSize != 0 {
		t.Errorf("Options() = %+v", opts)
	}
	if opts.Version != 3 || opts.Language != model.French {
		t.Errorf("Options() identity = %v/%d", opts.Language, opts.Version)
	}
	if cfg.Loader().DictPath != "dict.txt" {
		t.Errorf("Loader().DictPath = %q", cfg.Loader().DictPath)
	}
}

func TestConfigMultipleLanguagesUseWildcard(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Languages = []string{"en", "de"}

	if got := cfg.Descriptor().Language; got != model.Any {
		t.Errorf("Descriptor().Language = %q, want wildcard", got)
	}
	langs := cfg.Languages()
	if len(langs) != 2 || langs[0] != model.English || langs[1] != model.German {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"negative version", func(c *Config) { c.Pipeline.Version = -1 }},
		{"negative batch", func(c *Config) { c.Streaming.BatchSize = -10 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{Driver: DriverMemory}
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory driver should validate: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := Load("/nonexistent/lexflow.yaml"); err == nil {
		t.Error("Should error on non-existent file")
	}

	bad := writeFile(t, "bad.yaml", "store: [unclosed\n")
	if _, err := Load(bad); err == nil {
		t.Error("Should error on malformed YAML")
	}

	invalid := writeFile(t, "invalid.yaml", "store:\n  driver: etcd\n")
	if _, err := Load(invalid); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Load() = %v, want ErrInvalidConfig", err)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	cfg.Store = StoreConfig{Driver: DriverMemory}
	st, err := cfg.OpenStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	cfg.Store = StoreConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "models.db")}
	st, err = cfg.OpenStore(ctx)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer st.Close()

	ok, err := st.Exists(ctx, model.New(model.English, model.KindTokenizer, "", 0))
	if err != nil || ok {
		t.Errorf("fresh store Exists() = %v, %v", ok, err)
	}

	cfg.Store.Driver = "etcd"
	if _, err := cfg.OpenStore(ctx); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("OpenStore() = %v, want ErrInvalidConfig", err)
	}
}
