package docdb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

// Analyzer normalizes index terms and query values for a field.
type Analyzer uint8

const (
	// Exact stores terms as they appear in the document.
	Exact Analyzer = iota
	// FoldCase stores Unicode case folded terms, so lookups ignore case.
	FoldCase
)

func (a Analyzer) apply(s string) string {
	switch a {
	case FoldCase:
		// Casers keep state and must not be shared between goroutines.
		return cases.Fold().String(s)
	default:
		return s
	}
}

// IndexField projects one field of a document. Path is a gjson path
// evaluated against the stored JSON; arrays yield one term per element.
type IndexField struct {
	Name     string   `json:"Name"`
	Path     string   `json:"Path"`
	Analyzer Analyzer `json:"Analyzer,omitempty"`
}

// IndexDefinition describes a projection the store maintains over one
// collection. Executed definitions are saved in the database, so a store
// reopened on the same database serves them without executing them again.
type IndexDefinition struct {
	Name       string       `json:"Name"`
	Collection string       `json:"Collection"`
	Fields     []IndexField `json:"Fields"`
}

func (d IndexDefinition) validate() error {
	if d.Name == "" || d.Collection == "" {
		return fmt.Errorf("%w: name and collection are required", ErrInvalidIndex)
	}

	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidIndex, d.Name)
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" || f.Path == "" {
			return fmt.Errorf("%w: %s has a field without name or path", ErrInvalidIndex, d.Name)
		}

		if seen[f.Name] {
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidIndex, d.Name, f.Name)
		}

		seen[f.Name] = true
	}

	return nil
}

func (d IndexDefinition) equal(other IndexDefinition) bool {
	return d.Name == other.Name && d.Collection == other.Collection && slices.Equal(d.Fields, other.Fields)
}

func (d IndexDefinition) field(name string) (IndexField, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return IndexField{}, false
}

// entry is the projection of a single document: field name to terms.
type entry map[string][]string

func (d IndexDefinition) project(doc []byte) entry {
	e := make(entry, len(d.Fields))

	for _, f := range d.Fields {
		res := gjson.GetBytes(doc, f.Path)
		if !res.Exists() || res.Type == gjson.Null {
			continue
		}

		var terms []string
		if res.IsArray() {
			res.ForEach(func(_, v gjson.Result) bool {
				if v.Type != gjson.Null {
					terms = append(terms, f.Analyzer.apply(v.String()))
				}

				return true
			})
		} else {
			terms = append(terms, f.Analyzer.apply(res.String()))
		}

		e[f.Name] = terms
	}

	return e
}

// predicate matches when any term of the field is one of values.
type predicate struct {
	field  string
	values []string
}

func (e entry) matches(preds []predicate) bool {
	for _, p := range preds {
		terms := e[p.field]

		found := false
		for _, t := range terms {
			if slices.Contains(p.values, t) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// index is the live state of a registered definition. entries is only
// trustworthy once built is set; indexedEtag is the highest commit etag
// the indexer has processed and version the shared collection version the
// entries reflect.
type index struct {
	def IndexDefinition

	mu          sync.RWMutex
	entries     map[string]entry
	built       bool
	building    bool
	buildErr    error
	builtEtag   uint64
	indexedEtag uint64
	version     uint64
	changed     chan struct{}
}

func newIndex(def IndexDefinition) *index {
	return &index{
		def:      def,
		entries:  make(map[string]entry),
		building: true,
		changed:  make(chan struct{}),
	}
}

// notifyLocked wakes every waiter. Caller holds mu for writing.
func (ix *index) notifyLocked() {
	close(ix.changed)
	ix.changed = make(chan struct{})
}

// startBuild claims the next build. It returns false when one is already
// running.
func (ix *index) startBuild() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.building {
		return false
	}

	ix.building = true

	return true
}

// finishBuild installs a full snapshot taken at etag and version.
func (ix *index) finishBuild(entries map[string]entry, etag, version uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = entries
	ix.built = true
	ix.building = false
	ix.buildErr = nil
	ix.builtEtag = etag

	if etag > ix.indexedEtag {
		ix.indexedEtag = etag
	}

	if version > ix.version {
		ix.version = version
	}

	ix.notifyLocked()
}

// failBuild records err for callers waiting on the first build. A built
// index keeps serving its previous entries.
func (ix *index) failBuild(err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.building = false
	if !ix.built {
		ix.buildErr = err
	}

	ix.notifyLocked()
}

// abortBuild releases the build claim without recording an error.
func (ix *index) abortBuild() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.building = false
	ix.notifyLocked()
}

// buildState reports whether the first build completed, a channel closed
// on the next change, and the error of the last failed first build.
func (ix *index) buildState() (bool, <-chan struct{}, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.built, ix.changed, ix.buildErr
}

// apply folds one committed change set into the projection. Changes at or
// below builtEtag are already part of the snapshot. The version only moves
// when the change set directly follows it, so writes by other processes
// leave the index behind until it is rebuilt.
func (ix *index) apply(c changeSet) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.built && c.etag > ix.builtEtag {
		for _, m := range c.mutations {
			if m.Collection != ix.def.Collection {
				continue
			}

			if m.Delete {
				delete(ix.entries, m.ID)
				continue
			}

			ix.entries[m.ID] = ix.def.project(m.Doc)
		}

		if v, ok := c.versions[ix.def.Collection]; ok && v == ix.version+1 {
			ix.version = v
		}
	}

	if c.etag > ix.indexedEtag {
		ix.indexedEtag = c.etag
	}

	ix.notifyLocked()
}

// behind reports whether the collection moved past the indexed version.
func (ix *index) behind(version uint64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return version > ix.version
}

func (ix *index) caughtUp(target, version uint64) (bool, <-chan struct{}) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.built && ix.indexedEtag >= target && ix.version >= version, ix.changed
}

// wait blocks until the index has processed target and version, the
// timeout passes or ctx is done. It reports whether the index caught up.
func (ix *index) wait(ctx context.Context, target, version uint64, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		ok, changed := ix.caughtUp(target, version)
		if ok {
			return true
		}

		select {
		case <-changed:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// search returns the sorted ids of entries matching every predicate.
func (ix *index) search(preds []predicate) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var ids []string
	for id, e := range ix.entries {
		if e.matches(preds) {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}
