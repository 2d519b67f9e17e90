package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
)

// HasModel reports whether a stage of d's family is present. With
// matchVersion the version must be equal too.
func (p *Pipeline) HasModel(d model.Descriptor, matchVersion bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, proc := range p.processes {
		pd := proc.Descriptor()
		if pd.SameFamily(d) && (!matchVersion || pd.Version == d.Version) {
			return true
		}
	}
	return false
}

// HasModelToUpdate reports whether a stage of d's family has an older version than d.
func (p *Pipeline) HasModelToUpdate(d model.Descriptor) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexToUpdateLocked(d) >= 0
}

func (p *Pipeline) indexToUpdateLocked(d model.Descriptor) int {
	for i, proc := range p.processes {
		pd := proc.Descriptor()
		if pd.SameFamily(d) && pd.Version < d.Version {
			return i
		}
	}
	return -1
}

// UpdateModel replaces, in place, the first stage of d's family whose
// version is older than d's. It fails with internalerr.ErrInvalidOperation,
// without touching the chain, when replacement is not a usable
// process.Process. The replacement takes part in special-case sync like a
// stage passed to Add. It reports whether a stage was replaced.
func (p *Pipeline) UpdateModel(d model.Descriptor, replacement any) (bool, error) {
	proc, ok := replacement.(process.Process)
	if !ok || !describable(proc) {
		return false, fmt.Errorf("update %s with %T: %w", d, replacement, internalerr.ErrInvalidOperation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexToUpdateLocked(d)
	if i < 0 {
		return false, nil
	}
	old := p.processes[i].Descriptor()
	p.syncSpecialCasesLocked(proc)
	p.processes[i] = proc
	p.log.Info("model updated", "from", old.String(), "to", proc.Descriptor().String())
	return true, nil
}

// describable reports whether proc answers Descriptor, which rules out nil
// interfaces and nil pointers to stage types.
func describable(proc process.Process) (ok bool) {
	if proc == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	proc.Descriptor()
	return true
}

// RemoveModel removes every stage of d's family regardless of version.
func (p *Pipeline) RemoveModel(d model.Descriptor) bool {
	return p.RemoveAll(func(proc process.Process) bool {
		return proc.Descriptor().SameFamily(d)
	}) > 0
}

// GetModelsList returns the descriptors of the chain, in order.
func (p *Pipeline) GetModelsList() []model.Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Descriptor, len(p.processes))
	for i, proc := range p.processes {
		out[i] = proc.Descriptor()
	}
	return out
}

// GetModelsDescriptions returns a readable line per stage.
func (p *Pipeline) GetModelsDescriptions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.processes))
	for i, proc := range p.processes {
		line := proc.Descriptor().String()
		if er, ok := proc.(process.EntityRecognizer); ok {
			line = fmt.Sprintf("%s entities=%v", line, er.ProducedEntityTypes())
		}
		out[i] = line
	}
	return out
}

// GetPossibleEntityTypes returns the sorted union of entity types the
// chain's recognizers can produce.
func (p *Pipeline) GetPossibleEntityTypes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, proc := range p.processes {
		if er, ok := proc.(process.EntityRecognizer); ok {
			for _, t := range er.ProducedEntityTypes() {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// StoredModels returns the persisted descriptor list.
func (p *Pipeline) StoredModels() []model.Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Descriptor(nil), p.stored...)
}

// dedupDescriptors keeps the first stage of each family.
func dedupDescriptors(processes []process.Process) []model.Descriptor {
	families := make(map[model.Family]struct{}, len(processes))
	out := make([]model.Descriptor, 0, len(processes))
	for _, proc := range processes {
		d := proc.Descriptor()
		if _, dup := families[d.Family()]; dup {
			continue
		}
		families[d.Family()] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Store rebuilds the persisted descriptor list from the current chain, one
// descriptor per family with the first occurrence winning, then saves each
// retained stage and the manifest to st.
func (p *Pipeline) Store(ctx context.Context, st store.Store) error {
	p.mu.RLock()
	desc := p.desc
	descriptors := dedupDescriptors(p.processes)
	retained := make([]process.Process, 0, len(descriptors))
	for _, d := range descriptors {
		for _, proc := range p.processes {
			if proc.Descriptor() == d {
				retained = append(retained, proc)
				break
			}
		}
	}
	p.mu.RUnlock()

	for _, proc := range retained {
		if err := st.Save(ctx, proc.Descriptor(), proc); err != nil {
			return fmt.Errorf("store %s: %w", proc.Descriptor(), err)
		}
	}
	if err := st.SaveManifest(ctx, desc, descriptors); err != nil {
		return fmt.Errorf("store manifest %s: %w", desc, err)
	}

	p.mu.Lock()
	p.stored = descriptors
	p.mu.Unlock()
	p.log.Info("pipeline stored", "descriptor", desc.String(), "models", len(descriptors))
	return nil
}

// FromStore reconstructs the pipeline persisted under d. Missing models are
// dropped silently, later duplicates of a family are discarded, and models
// that vanish between the existence check and the load are dropped with an
// error log. A pipeline left without a tokenizer gets a default one at the head.
func FromStore(ctx context.Context, st store.Store, d model.Descriptor, opts Options) (*Pipeline, error) {
	manifest, err := st.LoadManifest(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", d, err)
	}

	opts.Language, opts.Tag, opts.Version = d.Language, d.Tag, d.Version
	p := New(opts)

	families := make(map[model.Family]struct{}, len(manifest))
	var kept []model.Descriptor
	for _, md := range manifest {
		ok, err := st.Exists(ctx, md)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", md, err)
		}
		if !ok {
			p.log.Info("model not found in store, dropping", "model", md.String())
			continue
		}
		if _, dup := families[md.Family()]; dup {
			p.log.Debug("discarding duplicate model", "model", md.String())
			continue
		}
		proc, err := st.Load(ctx, md)
		if errors.Is(err, internalerr.ErrNotFound) {
			p.log.Error("model vanished after existence check, dropping", "model", md.String(), "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", md, err)
		}
		families[md.Family()] = struct{}{}
		kept = append(kept, md)
		p.appendLocked(proc)
	}

	if !hasTokenizer(p.processes) {
		tok := stages.NewTokenizer(d.Language)
		p.log.Warn("pipeline has no tokenizer, adding default", "language", string(d.Language))
		p.syncSpecialCasesLocked(tok)
		p.processes = append([]process.Process{tok}, p.processes...)
		kept = append([]model.Descriptor{tok.Descriptor()}, kept...)
	}
	p.stored = kept
	return p, nil
}

func hasTokenizer(processes []process.Process) bool {
	for _, proc := range processes {
		if process.IsTokenizer(proc) {
			return true
		}
	}
	return false
}
