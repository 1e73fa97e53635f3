package domain

import (
	"slices"
	"sync"

	"github.com/dop251/goja"
	"go.trai.ch/zerr"
)

// Owner identifies which loader created a registry record.
type Owner uint8

const (
	// OwnerEngine marks records created by the JIT engine.
	OwnerEngine Owner = iota
	// OwnerNative marks records created by the host's native loader. The engine never overwrites them.
	OwnerNative
)

// ModuleRecord is one entry of the module registry.
type ModuleRecord struct {
	ID       string
	Filename string
	Owner    Owner
	// Module is the JS `module` object handed to the module function. Nil for native records.
	Module *goja.Object
	// Loaded is false while the module body is still executing.
	Loaded   bool
	Children []*ModuleRecord
	// Parent is a back-reference only; the registry owns records, not their parents.
	Parent *ModuleRecord

	exports goja.Value
}

// Exports returns the record's current export value. For engine records this
// is read from module.exports so reassignments inside the module are honored.
func (m *ModuleRecord) Exports() goja.Value {
	if m.Module != nil {
		return m.Module.Get("exports")
	}
	return m.exports
}

// SetExports stores the export value of a record without a module object.
func (m *ModuleRecord) SetExports(v goja.Value) {
	m.exports = v
}

// AddChild appends child unless it is already present.
func (m *ModuleRecord) AddChild(child *ModuleRecord) {
	if child == nil || slices.Contains(m.Children, child) {
		return
	}
	m.Children = append(m.Children, child)
}

// Registry maps absolute module paths to records. It is created with an engine
// and torn down with Close; there is no process-wide instance.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*ModuleRecord
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*ModuleRecord)}
}

// Get returns the record registered under id.
func (r *Registry) Get(id string) (*ModuleRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Insert registers rec under rec.ID. Records owned by the native loader are
// never replaced by engine records.
func (r *Registry) Insert(rec *ModuleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if existing, ok := r.records[rec.ID]; ok && existing != rec &&
		existing.Owner == OwnerNative && rec.Owner != OwnerNative {
		return zerr.Wrap(ErrRegistryConflict, rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

// Delete removes the engine-owned record registered under id and reports
// whether one was removed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Owner == OwnerNative {
		return false
	}
	delete(r.records, id)
	return true
}

// DeleteWithDependents removes the engine-owned records under ids together
// with every engine-owned record that transitively required one of them.
// It returns the removed ids in sorted order.
func (r *Registry) DeleteWithDependents(ids ...string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[*ModuleRecord]struct{})
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.Owner == OwnerEngine {
			removed[rec] = struct{}{}
		}
	}

	for changed := len(removed) > 0; changed; {
		changed = false
		for _, rec := range r.records {
			if _, ok := removed[rec]; ok || rec.Owner != OwnerEngine {
				continue
			}
			for _, child := range rec.Children {
				if _, ok := removed[child]; ok {
					removed[rec] = struct{}{}
					changed = true
					break
				}
			}
		}
	}

	out := make([]string, 0, len(removed))
	for rec := range removed {
		delete(r.records, rec.ID)
		out = append(out, rec.ID)
	}
	slices.Sort(out)
	return out
}

// DeleteIf removes rec only if it is still the record registered under its ID.
func (r *Registry) DeleteIf(rec *ModuleRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.records[rec.ID]; ok && cur == rec {
		delete(r.records, rec.ID)
	}
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Close drops every record. Later inserts fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*ModuleRecord)
	r.closed = true
}
