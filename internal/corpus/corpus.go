// Package corpus reads and writes JSONL document collections.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/logging"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

// Record is one input line
type Record struct {
	ID    string `json:"id,omitempty"`
	Lang  string `json:"lang,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	// HTML is used when Text is empty.
	HTML string `json:"html,omitempty"`
	// Sentences carries gold sentence boundaries for training.
	Sentences []string `json:"sentences,omitempty"`
}

// Body returns the record text, extracting it from HTML when needed.
func (r Record) Body() string {
	if r.Text == "" && r.HTML != "" {
		return StripHTML(r.HTML)
	}
	return r.Text
}

// Document converts the record. An unset language falls back to lang.
func (r Record) Document(lang model.Language) *document.Document {
	if r.Lang != "" {
		lang = model.ParseLanguage(r.Lang)
	}
	doc := document.New(r.Body(), lang)
	if r.ID != "" {
		doc.ID = r.ID
	}
	if r.URL != "" {
		doc.SetMeta("url", r.URL)
	}
	if r.Title != "" {
		doc.SetMeta("title", r.Title)
	}
	return doc
}

// LoadFromJSONL loads records from a JSONL file, skipping malformed lines
func LoadFromJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := NewReader(f, nil)
	var records []Record
	for rec := range r.Records() {
		records = append(records, rec)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return records, nil
}

// Reader streams records from JSONL input. Malformed lines are logged and
// skipped; I/O errors stop the stream and are reported by Err.
type Reader struct {
	sc      *bufio.Scanner
	log     *slog.Logger
	line    int
	skipped int
	err     error
}

// NewReader wraps r. A nil logger uses slog.Default().
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc, log: logging.OrDefault(logger)}
}

// Records yields the decoded records. It can be ranged over once.
func (r *Reader) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for r.sc.Scan() {
			r.line++
			line := strings.TrimSpace(r.sc.Text())
			if line == "" {
				continue
			}
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				r.skipped++
				r.log.Warn("skipping malformed JSON", "line", r.line, "error", err)
				continue
			}
			if !yield(rec) {
				return
			}
		}
		r.err = r.sc.Err()
	}
}

// Documents yields one document per record, tagged lang unless the record
// names its own language.
func (r *Reader) Documents(lang model.Language) iter.Seq[*document.Document] {
	return func(yield func(*document.Document) bool) {
		for rec := range r.Records() {
			if !yield(rec.Document(lang)) {
				return
			}
		}
	}
}

// Err returns the first I/O error encountered.
func (r *Reader) Err() error { return r.err }

// Skipped returns the number of malformed lines.
func (r *Reader) Skipped() int { return r.skipped }

// Writer writes processed documents as JSONL.
type Writer struct {
	w   *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter creates a writer; call Flush when done.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{w: bw, enc: json.NewEncoder(bw)}
}

// Write encodes doc on its own line.
func (w *Writer) Write(doc *document.Document) error {
	if err := w.enc.Encode(doc.ToWire()); err != nil {
		return fmt.Errorf("encode %s: %w", doc.ID, err)
	}
	w.n++
	return nil
}

// Count returns the number of documents written.
func (w *Writer) Count() int { return w.n }

// Flush writes buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }
