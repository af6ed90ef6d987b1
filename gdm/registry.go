package gdm

import (
	"fmt"
	"sync"
)

// SourceRecord is the registry entry for one dataset origin.
type SourceRecord struct {
	ID     SourceID
	Origin Origin
	Parser Parser
}

// SourceRegistry maps dataset origins to stable source identifiers for the
// lifetime of a session.
//
// For a given origin at most one record ever exists; every lookup of that
// origin yields the same identifier. Records are never removed.
// SourceRegistry is safe for concurrent use.
type SourceRegistry struct {
	mu       sync.Mutex
	byID     []SourceRecord
	byOrigin map[Origin]SourceID
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{byOrigin: make(map[Origin]SourceID)}
}

// Search returns the identifier registered for origin, if any.
func (r *SourceRegistry) Search(origin Origin) (SourceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byOrigin[origin]
	return id, ok
}

// Add registers origin with parser and returns its identifier.
// If origin is already registered the existing identifier is returned.
func (r *SourceRegistry) Add(origin Origin, parser Parser) (SourceID, error) {
	id, _, err := r.SearchOrAdd(origin, parser)
	return id, err
}

// SearchOrAdd returns the identifier of origin, registering it first when it
// is unknown. created reports whether a new record was made. A parser is
// attached to an existing record that has none.
func (r *SourceRegistry) SearchOrAdd(origin Origin, parser Parser) (id SourceID, created bool, err error) {
	if err := origin.Validate(); err != nil {
		return 0, false, fmt.Errorf("gdm: register %s: %w", origin, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byOrigin[origin]; ok {
		if r.byID[id].Parser == nil && parser != nil {
			r.byID[id].Parser = parser
		}
		return id, false, nil
	}

	id = SourceID(len(r.byID))
	r.byID = append(r.byID, SourceRecord{ID: id, Origin: origin, Parser: parser})
	r.byOrigin[origin] = id
	return id, true, nil
}

// Record returns the record registered under id.
func (r *SourceRegistry) Record(id SourceID) (SourceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || int(id) >= len(r.byID) {
		return SourceRecord{}, false
	}
	return r.byID[id], true
}

// Records returns a snapshot of all records ordered by identifier.
func (r *SourceRegistry) Records() []SourceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SourceRecord, len(r.byID))
	copy(out, r.byID)
	return out
}

// Len returns the number of registered sources.
func (r *SourceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
