package scope

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/dn"
)

// ScopedSet is a set of (Dn, SearchScope) entries supporting scope-aware
// intersection queries. Entries are keyed by normalized Dn string;
// Intersects compares every entry of one set with every entry of the other.
//
// A ScopedSet is not safe for concurrent writes. Once the owning
// transaction leaves ACTIVE state, callers must call Freeze before sharing
// it across goroutines; reads after Freeze require no further
// synchronization.
type ScopedSet struct {
	mu     sync.Mutex
	byDn   map[string][]Entry
	frozen bool
}

// NewScopedSet creates an empty ScopedSet.
func NewScopedSet() *ScopedSet {
	return &ScopedSet{
		byDn: make(map[string][]Entry),
	}
}

// Add inserts the entry into the set. Add is idempotent: adding the same
// (Dn, scope) pair twice leaves the set unchanged.
func (s *ScopedSet) Add(d dn.Dn, sc SearchScope) {
	log.WithFields(log.Fields{"dn": d.String(), "scope": sc}).Debug("scope::ScopedSet.Add; started")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		panic("scope: Add called on a frozen ScopedSet")
	}

	key := d.String()
	for _, e := range s.byDn[key] {
		if e.Scope == sc {
			return
		}
	}
	s.byDn[key] = append(s.byDn[key], Entry{Dn: d, Scope: sc})
}

// Freeze marks the set immutable. It must be called before the owning
// transaction is shared for read-only conflict checks from other
// goroutines.
func (s *ScopedSet) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Len returns the number of distinct entries in the set.
func (s *ScopedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, entries := range s.byDn {
		n += len(entries)
	}
	return n
}

// Entries returns a copy of all entries in the set, for diagnostics and
// tests.
func (s *ScopedSet) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.byDn))
	for _, entries := range s.byDn {
		out = append(out, entries...)
	}
	return out
}

// Intersects reports whether any entry of s matches any entry of other per
// the match table in spec §3. Intersects is symmetric: s.Intersects(other)
// == other.Intersects(s). A single matching pair suffices; callers never
// need a count.
func (s *ScopedSet) Intersects(other *ScopedSet) bool {
	if s == nil || other == nil {
		return false
	}

	s.mu.Lock()
	mine := flatten(s.byDn)
	s.mu.Unlock()

	other.mu.Lock()
	theirs := flatten(other.byDn)
	other.mu.Unlock()

	for _, a := range mine {
		for _, b := range theirs {
			if Match(a, b) {
				return true
			}
		}
	}
	return false
}

func flatten(byDn map[string][]Entry) []Entry {
	out := make([]Entry, 0, len(byDn))
	for _, entries := range byDn {
		out = append(out, entries...)
	}
	return out
}
