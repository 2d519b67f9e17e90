package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/cognicore/lexflow/internal/corpus"
	"github.com/cognicore/lexflow/pkg/lexflow/config"
	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/logging"
	"github.com/cognicore/lexflow/pkg/lexflow/pipeline"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file (optional)")
		inPath     = flag.String("in", "", "Input JSONL file (default stdin)")
		outPath    = flag.String("out", "", "Output JSONL file (default stdout)")
		dbPath     = flag.String("db", "", "Model database path, overrides store.path")
		lang       = flag.String("lang", "", "Pipeline language, overrides pipeline.language")
		parallel   = flag.Bool("parallel", false, "Process batches in parallel")
		save       = flag.Bool("save", false, "Store the assembled pipeline before processing")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load configuration: ", err)
		}
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *lang != "" {
		cfg.Pipeline.Language = *lang
	}

	logger := logging.New(cfg.Logging)
	ctx := context.Background()

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Fatal("Failed to open model store: ", err)
	}
	defer st.Close()

	p, err := buildPipeline(ctx, cfg, st, logger)
	if err != nil {
		log.Fatal("Failed to build pipeline: ", err)
	}
	for _, line := range p.GetModelsDescriptions() {
		logger.Info("stage", "model", line)
	}

	if *save {
		if err := p.Store(ctx, st); err != nil {
			log.Fatal("Failed to store pipeline: ", err)
		}
	}

	in := io.Reader(os.Stdin)
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.Fatal("Failed to open input: ", err)
		}
		defer f.Close()
		in = f
	}
	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal("Failed to create output: ", err)
		}
		defer f.Close()
		out = f
	}

	reader := corpus.NewReader(in, logger)
	writer := corpus.NewWriter(out)

	docs := reader.Documents(cfg.Language())
	processed := p.ProcessStream(docs)
	if *parallel {
		processed = p.ProcessParallel(docs)
	}
	for doc := range processed {
		if err := writer.Write(doc); err != nil {
			log.Fatal("Failed to write output: ", err)
		}
	}
	if err := writer.Flush(); err != nil {
		log.Fatal("Failed to flush output: ", err)
	}
	if err := reader.Err(); err != nil {
		log.Fatal("Failed to read input: ", err)
	}

	logger.Info("processing complete", "written", writer.Count(), "skipped_lines", reader.Skipped())
}

// buildPipeline reconstructs the configured pipeline from the store, or
// assembles a fresh one from stored models and resource files.
func buildPipeline(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	opts := cfg.Options(logger)

	p, err := pipeline.FromStore(ctx, st, cfg.Descriptor(), opts)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, internalerr.ErrNotFound) {
		return nil, err
	}
	logger.Info("no stored pipeline, assembling one", "pipeline", cfg.Descriptor().String())

	if langs := cfg.Languages(); len(langs) > 0 {
		p, err = pipeline.ForLanguages(ctx, st, langs, cfg.Include(), opts)
	} else {
		p, err = pipeline.ForLanguage(ctx, st, cfg.Language(), cfg.Include(), opts)
	}
	if err != nil {
		return nil, err
	}

	comp, err := cfg.Loader().Load()
	if err != nil {
		return nil, err
	}
	if cases := comp.Tokenizer.SpecialCases(); len(cases) > 0 {
		for _, proc := range p.Processes() {
			if tok, ok := proc.(process.Tokenizer); ok {
				tok.ImportSpecialCases(cases)
			}
		}
	}
	if cfg.Resources.Lexicon != "" && !cfg.Pipeline.Tagger {
		p.Add(comp.Tagger)
	}
	if comp.Matcher != nil {
		p.Add(comp.Matcher)
	}
	if comp.Neuralyzer != nil {
		p.UseNeuralyzer(comp.Neuralyzer)
	}
	return p, nil
}
