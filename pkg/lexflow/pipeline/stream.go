package pipeline

import (
	"iter"
	"sync"
	"time"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
)

// streamStats accumulates the cumulative counters of one streaming call.
type streamStats struct {
	start  time.Time
	docs   int
	spans  int
	tokens int
}

func newStreamStats() *streamStats {
	return &streamStats{start: time.Now()}
}

func (s *streamStats) add(doc *document.Document) {
	s.docs++
	s.spans += doc.SpansCount()
	s.tokens += doc.TokensCount()
}

func (p *Pipeline) report(s *streamStats, msg string) {
	elapsed := time.Since(s.start).Seconds()
	var tps float64
	if elapsed > 0 {
		tps = float64(s.tokens) / elapsed
	}
	p.log.Info(msg, "docs", s.docs, "spans", s.spans, "tokens", s.tokens, "tokens_per_second", int64(tps))
}

// ProcessStream runs docs through the chain sequentially in blocks of
// Options.BlockSize. The read lock is held while a block is processed and
// released before its documents are yielded. Documents that fail are logged
// and dropped; the rest keep their input order.
func (p *Pipeline) ProcessStream(docs iter.Seq[*document.Document]) iter.Seq[*document.Document] {
	return func(yield func(*document.Document) bool) {
		stats := newStreamStats()
		block := make([]*document.Document, 0, p.opts.BlockSize)

		flush := func() bool {
			out := block[:0]
			p.mu.RLock()
			for _, doc := range block {
				if err := p.safeProcess(doc); err != nil {
					p.log.Error("document processing failed, dropping", "doc", doc.ID, "error", err)
					continue
				}
				out = append(out, doc)
			}
			p.mu.RUnlock()

			block = block[:0]
			for _, doc := range out {
				stats.add(doc)
				if stats.docs%p.opts.ReportEvery == 0 {
					p.report(stats, "stream progress")
				}
				if !yield(doc) {
					return false
				}
			}
			return true
		}

		for doc := range docs {
			if doc == nil {
				continue
			}
			block = append(block, doc)
			if len(block) < p.opts.BlockSize {
				continue
			}
			if !flush() {
				return
			}
		}
		if len(block) > 0 {
			flush()
		}
	}
}

// ProcessParallel buffers Options.BatchSize documents, processes each batch
// with up to Options.Parallelism goroutines under the read lock, then yields
// the batch in input order once the lock is released. Failing documents are
// logged and dropped. Throughput is reported after every batch.
func (p *Pipeline) ProcessParallel(docs iter.Seq[*document.Document]) iter.Seq[*document.Document] {
	return func(yield func(*document.Document) bool) {
		stats := newStreamStats()
		batch := make([]*document.Document, 0, p.opts.BatchSize)

		flush := func() bool {
			ok := p.processBatch(batch)
			for i, doc := range batch {
				if !ok[i] {
					continue
				}
				stats.add(doc)
				if !yield(doc) {
					return false
				}
			}
			batch = batch[:0]
			p.report(stats, "batch processed")
			return true
		}

		for doc := range docs {
			if doc == nil {
				continue
			}
			batch = append(batch, doc)
			if len(batch) < p.opts.BatchSize {
				continue
			}
			if !flush() {
				return
			}
		}
		if len(batch) > 0 {
			flush()
		}
	}
}

// processBatch fans batch out over a semaphore of Options.Parallelism
// slots. Each goroutine only touches its own document and ok slot.
func (p *Pipeline) processBatch(batch []*document.Document) []bool {
	ok := make([]bool, len(batch))
	sem := make(chan struct{}, p.opts.Parallelism)
	var wg sync.WaitGroup

	p.mu.RLock()
	for i, doc := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, doc *document.Document) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if err := p.safeProcess(doc); err != nil {
				p.log.Error("document processing failed, dropping", "doc", doc.ID, "error", err)
				return
			}
			ok[i] = true
		}(i, doc)
	}
	wg.Wait()
	p.mu.RUnlock()
	return ok
}
