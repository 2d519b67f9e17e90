package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/logging"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
)

const sample = `{"id":"a1","lang":"fr","text":"Bonjour tout le monde.","url":"https://example.com/a"}
not json at all

{"title":"Post","html":"<p>Hello <b>there</b></p>"}
`

func TestReaderDocuments(t *testing.T) {
	r := NewReader(strings.NewReader(sample), logging.Discard())

	var docs []*document.Document
	for doc := range r.Documents(model.English) {
		docs = append(docs, doc)
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if r.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", r.Skipped())
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	if docs[0].ID != "a1" || docs[0].Language() != model.French {
		t.Errorf("first doc = %s/%s", docs[0].ID, docs[0].Language())
	}
	if docs[0].Metadata["url"] != "https://example.com/a" {
		t.Errorf("url metadata = %q", docs[0].Metadata["url"])
	}

	if docs[1].Text != "Hello there" {
		t.Errorf("html body = %q", docs[1].Text)
	}
	if docs[1].Language() != model.English || docs[1].ID == "" {
		t.Errorf("second doc should default to english with a fresh id, got %s/%q", docs[1].Language(), docs[1].ID)
	}
}

func TestReaderStopsEarly(t *testing.T) {
	r := NewReader(strings.NewReader(sample), logging.Discard())
	n := 0
	for range r.Records() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected to stop after one record, got %d", n)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReaderReportsIOError(t *testing.T) {
	r := NewReader(failingReader{}, logging.Discard())
	for range r.Records() {
		t.Fatal("no record expected")
	}
	if r.Err() == nil {
		t.Error("Err() should report the read failure")
	}
}

func TestLoadFromJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := LoadFromJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Title != "Post" {
		t.Errorf("unexpected records: %+v", records)
	}

	empty := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(empty, []byte("garbage\n"), 0644)
	if _, err := LoadFromJSONL(empty); err == nil {
		t.Error("Should error when no valid record is found")
	}
	if _, err := LoadFromJSONL("/nonexistent/docs.jsonl"); err == nil {
		t.Error("Should error on non-existent file")
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	doc := document.New("Hi there.", model.English)
	doc.Tokens = stages.NewTokenizer(model.English).Tokenize(doc.Text)
	if err := w.Write(doc); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Count() != 1 {
		t.Errorf("Count() = %d", w.Count())
	}

	var wire document.Wire
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &wire); err != nil {
		t.Fatalf("output is not one JSON line: %v", err)
	}
	if wire.ID != doc.ID || wire.Language != model.English || len(wire.Tokens) != 3 {
		t.Errorf("unexpected wire document: %+v", wire)
	}
}

func TestGoldDocument(t *testing.T) {
	rec := Record{Sentences: []string{"Dr. Smith arrived.", " ", "He left!", "Did he?"}}
	doc := GoldDocument(rec, stages.NewTokenizer(model.English), model.English)
	if doc == nil {
		t.Fatal("expected a document")
	}

	if doc.Text != "Dr. Smith arrived. He left! Did he?" {
		t.Errorf("Text = %q", doc.Text)
	}
	want := []document.Span{{Begin: 0, End: 5}, {Begin: 5, End: 8}, {Begin: 8, End: 11}}
	if len(doc.Spans) != len(want) {
		t.Fatalf("Spans = %v, want %v", doc.Spans, want)
	}
	for i := range want {
		if doc.Spans[i] != want[i] {
			t.Errorf("Spans = %v, want %v", doc.Spans, want)
		}
	}

	if GoldDocument(Record{Text: "no gold"}, stages.NewTokenizer(model.English), model.English) != nil {
		t.Error("records without sentences should yield nil")
	}
}
