package config

import (
	"testing"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

func TestLoaderAllEmpty(t *testing.T) {
	loader := Loader{Language: model.English}

	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Empty loader should succeed: %v", err)
	}

	if comp.Tokenizer == nil || comp.Tagger == nil {
		t.Fatal("Should always have a tokenizer and a tagger")
	}
	if comp.Matcher != nil {
		t.Error("Matcher should be nil without a dictionary")
	}
	if comp.Neuralyzer != nil {
		t.Error("Neuralyzer should be nil without rules")
	}
	if got := len(comp.Processes()); got != 2 {
		t.Errorf("Processes() has %d stages, want 2", got)
	}
}

func TestLoaderDefaultsToWildcard(t *testing.T) {
	comp, err := (&Loader{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	if lang := comp.Tokenizer.Descriptor().Language; lang != model.Any {
		t.Errorf("tokenizer language = %q, want wildcard", lang)
	}
}

func TestLoaderNonExistentFiles(t *testing.T) {
	loaders := map[string]Loader{
		"lexicon":       {LexiconPath: "/nonexistent/lexicon.yaml"},
		"dict":          {DictPath: "/nonexistent/dict.txt"},
		"taxonomy":      {TaxonomyPath: "/nonexistent/taxonomy.yaml"},
		"special cases": {SpecialCasesPath: "/nonexistent/special.yaml"},
		"neuralyzer":    {NeuralyzerPath: "/nonexistent/neuralyzer.yaml"},
	}
	for name, loader := range loaders {
		if _, err := loader.Load(); err == nil {
			t.Errorf("Should error on nonexistent %s", name)
		}
	}
}

func TestLoaderMalformedLexicon(t *testing.T) {
	path := writeFile(t, "bad.yaml", "words: [unclosed\n")

	loader := Loader{LexiconPath: path}
	if _, err := loader.Load(); err == nil {
		t.Error("Should error on malformed YAML")
	}
}

func TestLoaderValidFiles(t *testing.T) {
	lexicon := writeFile(t, "lexicon.yaml", `words:
  the: DET
  runs: verb
suffixes:
  - suffix: ism
    tag: NOUN
`)
	dict := writeFile(t, "dict.txt", "machine learning|ml|topic\nAT&T|org\n")
	special := writeFile(t, "special.yaml", "special_cases:\n  - text: \"cannot\"\n    tokens: [\"can\", \"not\"]\n")
	rules := writeFile(t, "neuralyzer.yaml", "add:\n  lang:\n    - golang\n")

	loader := Loader{
		Language:         model.English,
		LexiconPath:      lexicon,
		DictPath:         dict,
		SpecialCasesPath: special,
		NeuralyzerPath:   rules,
	}

	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Valid files should load: %v", err)
	}
	if comp.Matcher == nil || comp.Neuralyzer == nil {
		t.Fatal("Matcher and Neuralyzer should be initialized")
	}

	doc := document.New("The team cannot use ML at AT&T without golang.", model.English)
	for _, proc := range comp.Processes() {
		if err := proc.Process(doc); err != nil {
			t.Fatal(err)
		}
	}
	comp.Neuralyzer.Neuralyze(doc)

	values := make([]string, len(doc.Tokens))
	for i, tok := range doc.Tokens {
		values[i] = tok.Value
	}
	want := []string{"The", "team", "can", "not", "use", "ML", "at", "AT&T", "without", "golang", "."}
	if len(values) != len(want) {
		t.Fatalf("tokens = %q, want %q", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("tokens = %q, want %q", values, want)
		}
	}

	if doc.Tokens[0].Tag != "DET" {
		t.Errorf("lexicon tag for 'The' = %q, want DET", doc.Tokens[0].Tag)
	}

	types := map[string]string{}
	for _, e := range doc.Entities {
		types[e.Value] = e.Type
	}
	if types["machine learning"] != "topic" || types["AT&T"] != "org" || types["golang"] != "lang" {
		t.Errorf("Unexpected entities: %+v", doc.Entities)
	}
}
