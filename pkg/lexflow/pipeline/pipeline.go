// Package pipeline orchestrates an ordered chain of language-scoped stages.
//
// The chain and the per-language neuralyzers form one unit guarded by a
// single RWMutex: structural changes take the write lock, traversal takes
// the read lock. Stages never run with the write lock held, so
// ReplaceWith is observed atomically by concurrent ProcessSingle calls.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/logging"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
)

// Default streaming parameters.
const (
	DefaultBlockSize   = 1000
	DefaultBatchSize   = 10000
	DefaultReportEvery = 10000
)

// Options configures a Pipeline
type Options struct {
	Language model.Language
	Tag      string
	Version  int
	Logger   *slog.Logger

	// BlockSize is the number of documents ProcessStream handles per lock acquisition.
	BlockSize int
	// BatchSize is the number of documents ProcessParallel buffers before fanning out.
	BatchSize int
	// Parallelism bounds the goroutines working on one batch.
	Parallelism int
	// ReportEvery is the document interval between throughput logs.
	ReportEvery int
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = model.Any
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.ReportEvery <= 0 {
		o.ReportEvery = DefaultReportEvery
	}
	o.Logger = logging.OrDefault(o.Logger)
	return o
}

// Pipeline is an ordered chain of stages plus per-language neuralyzers.
type Pipeline struct {
	opts Options
	log  *slog.Logger

	mu          sync.RWMutex
	desc        model.Descriptor
	processes   []process.Process
	neuralyzers map[model.Language]process.Neuralyzer
	// stored is the descriptor list as last persisted or reconstructed.
	stored []model.Descriptor
}

// New creates a pipeline holding the given stages, in order.
func New(opts Options, processes ...process.Process) *Pipeline {
	opts = opts.withDefaults()
	p := &Pipeline{
		opts:        opts,
		log:         opts.Logger.With("pipeline", string(opts.Language)),
		desc:        model.New(opts.Language, model.KindPipeline, opts.Tag, opts.Version),
		neuralyzers: make(map[model.Language]process.Neuralyzer),
	}
	for _, proc := range processes {
		p.appendLocked(proc)
	}
	p.stored = dedupDescriptors(p.processes)
	return p
}

// Descriptor implements process.Process.
func (p *Pipeline) Descriptor() model.Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.desc
}

// Process implements process.Process, so a pipeline can be nested as a stage.
func (p *Pipeline) Process(doc *document.Document) error {
	return p.ProcessSingle(doc)
}

// Add appends a stage to the chain.
func (p *Pipeline) Add(proc process.Process) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appendLocked(proc)
	return p
}

// AddToBegin prepends a stage to the chain. If the stage carries special
// cases they are imported into every tokenizer whose language matches.
func (p *Pipeline) AddToBegin(proc process.Process) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncSpecialCasesLocked(proc)
	p.processes = append([]process.Process{proc}, p.processes...)
	return p
}

func (p *Pipeline) appendLocked(proc process.Process) {
	p.syncSpecialCasesLocked(proc)
	p.processes = append(p.processes, proc)
}

// syncSpecialCasesLocked keeps tokenizers consistent with special-case
// sources in both directions: a new source feeds the present tokenizers, a
// new tokenizer learns from the present sources.
func (p *Pipeline) syncSpecialCasesLocked(proc process.Process) {
	lang := process.Language(proc)
	if sc, ok := proc.(process.HasSpecialCases); ok {
		if cases := sc.SpecialCases(); len(cases) > 0 {
			for _, existing := range p.processes {
				if tok, ok := existing.(process.Tokenizer); ok && process.Language(tok).Matches(lang) {
					tok.ImportSpecialCases(cases)
				}
			}
		}
	}
	if tok, ok := proc.(process.Tokenizer); ok {
		for _, existing := range p.processes {
			if sc, ok := existing.(process.HasSpecialCases); ok && process.Language(existing).Matches(lang) {
				tok.ImportSpecialCases(sc.SpecialCases())
			}
		}
	}
}

// RemoveAll removes every stage matching pred and returns how many were removed.
func (p *Pipeline) RemoveAll(pred func(process.Process) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.processes[:0:0]
	for _, proc := range p.processes {
		if !pred(proc) {
			kept = append(kept, proc)
		}
	}
	removed := len(p.processes) - len(kept)
	p.processes = kept
	return removed
}

// ReplaceWith swaps in other's stages, persisted descriptor list and version.
// Concurrent readers see either the old chain or the new one, never a mix.
// other should not be used afterwards: its stages now belong to p.
func (p *Pipeline) ReplaceWith(other *Pipeline) {
	if other == p {
		return
	}
	other.mu.RLock()
	processes := append([]process.Process(nil), other.processes...)
	stored := append([]model.Descriptor(nil), other.stored...)
	version := other.desc.Version
	other.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.processes = processes
	p.stored = stored
	p.desc.Version = version
	p.log.Info("pipeline replaced", "version", version, "stages", len(processes))
}

// Processes returns a snapshot of the chain.
func (p *Pipeline) Processes() []process.Process {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]process.Process(nil), p.processes...)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.processes)
}

// UseNeuralyzer installs n for its language, replacing any previous one.
// A neuralyzer for model.Any applies to every document.
func (p *Pipeline) UseNeuralyzer(n process.Neuralyzer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.neuralyzers[neuralyzerKey(n)] = n
}

// UseNeuralyzers replaces all neuralyzers with ns.
func (p *Pipeline) UseNeuralyzers(ns ...process.Neuralyzer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.neuralyzers = make(map[model.Language]process.Neuralyzer, len(ns))
	for _, n := range ns {
		p.neuralyzers[neuralyzerKey(n)] = n
	}
}

// RemoveAllNeuralyzers drops every neuralyzer.
func (p *Pipeline) RemoveAllNeuralyzers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.neuralyzers = make(map[model.Language]process.Neuralyzer)
}

func neuralyzerKey(n process.Neuralyzer) model.Language {
	if n.Language().IsAny() {
		return model.Any
	}
	return n.Language()
}

// ProcessSingle runs doc through the chain in order, skipping stages scoped
// to another language, then applies the wildcard neuralyzer and the one for
// the document's language. Empty documents are returned untouched.
func (p *Pipeline) ProcessSingle(doc *document.Document) error {
	if doc.Empty() {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processLocked(doc)
}

// processLocked expects the read lock to be held. It never re-acquires it:
// a recursive RLock deadlocks behind a waiting writer.
func (p *Pipeline) processLocked(doc *document.Document) error {
	trace := p.log.Enabled(context.Background(), logging.LevelTrace)
	for _, proc := range p.processes {
		if !process.AppliesTo(proc, doc) {
			if trace {
				p.log.Log(context.Background(), logging.LevelTrace, "skipping stage", "stage", proc.Descriptor().String(), "doc", doc.ID, "language", string(doc.Language()))
			}
			continue
		}
		if err := proc.Process(doc); err != nil {
			return fmt.Errorf("%s: %w", proc.Descriptor(), err)
		}
	}
	if n, ok := p.neuralyzers[model.Any]; ok {
		n.Neuralyze(doc)
	}
	if lang := doc.Language(); !lang.IsAny() {
		if n, ok := p.neuralyzers[lang]; ok {
			n.Neuralyze(doc)
		}
	}
	return nil
}

// safeProcess isolates a document: errors and panics are returned.
func (p *Pipeline) safeProcess(doc *document.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()
	if doc.Empty() {
		return nil
	}
	return p.processLocked(doc)
}
