package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/cognicore/lexflow/internal/corpus"
	"github.com/cognicore/lexflow/pkg/lexflow/config"
	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file (optional)")
		dataPath   = flag.String("data", "", "JSONL file with gold sentences (required)")
		dbPath     = flag.String("db", "", "Model database path, overrides store.path")
		lang       = flag.String("lang", "en", "Language of the corpus")
		tag        = flag.String("tag", "", "Model tag")
		epochs     = flag.Int("epochs", 10, "Training epochs")
		workers    = flag.Int("workers", 4, "Training workers")
		rate       = flag.Float64("rate", 0.5, "Learning rate")
	)
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("--data required")
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Fatal("Failed to open model store: ", err)
	}
	defer st.Close()

	records, err := corpus.LoadFromJSONL(*dataPath)
	if err != nil {
		log.Fatal("Failed to load training data: ", err)
	}

	language := model.ParseLanguage(*lang)
	tok := stages.NewTokenizer(language)
	var docs []*document.Document
	for _, rec := range records {
		if doc := corpus.GoldDocument(rec, tok, language); doc != nil {
			docs = append(docs, doc)
		}
	}
	log.Printf("Loaded %d gold documents from %s", len(docs), *dataPath)

	sd := stages.NewSentenceDetector(language, *tag)
	latest, found, err := st.Latest(ctx, sd.Descriptor().Family())
	if err != nil {
		log.Fatal("Failed to look up stored versions: ", err)
	}
	if found {
		sd.SetVersion(latest.Version + 1)
	}

	history, err := sd.Train(ctx, docs, stages.TrainOptions{
		Epochs:       *epochs,
		Workers:      *workers,
		LearningRate: float32(*rate),
	})
	if err != nil {
		log.Fatal("Training failed: ", err)
	}
	for _, pt := range history.Points() {
		log.Printf("epoch %d: loss %.4f over %d examples (%s)", pt.Epoch, pt.Loss, pt.Examples, pt.Elapsed)
	}

	if err := st.Save(ctx, sd.Descriptor(), sd); err != nil {
		log.Fatal("Failed to save model: ", err)
	}
	log.Printf("Saved %s", sd.Descriptor())
}
