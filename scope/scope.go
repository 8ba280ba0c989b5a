// Package scope implements SearchScope and the (Dn, scope) set the conflict
// detector intersects.
package scope

import (
	"github.com/arohank/dstxncore/dn"
)

// SearchScope is a closed three-value enumeration over the point set a Dn
// denotes.
type SearchScope int

const (
	// Object denotes the Dn itself.
	Object SearchScope = iota
	// OneLevel denotes the immediate children of the Dn, not itself.
	OneLevel
	// Subtree denotes the Dn and all of its descendants.
	Subtree
)

// String renders the scope for logging.
func (s SearchScope) String() string {
	switch s {
	case Object:
		return "OBJECT"
	case OneLevel:
		return "ONELEVEL"
	case Subtree:
		return "SUBTREE"
	default:
		return "UNKNOWN"
	}
}

// Entry is a (Dn, SearchScope) pair.
type Entry struct {
	Dn    dn.Dn
	Scope SearchScope
}

// Match reports whether two scoped entries denote overlapping point sets,
// per the match table in spec §3. Match is symmetric: Match(a, b) ==
// Match(b, a).
func Match(a, b Entry) bool {
	switch a.Scope {
	case Object:
		switch b.Scope {
		case Object:
			return dn.Equals(a.Dn, b.Dn)
		case OneLevel:
			return dn.IsImmediateParentOf(b.Dn, a.Dn)
		case Subtree:
			return dn.IsAncestorOrEqual(b.Dn, a.Dn)
		}
	case OneLevel:
		switch b.Scope {
		case Object:
			return dn.IsImmediateParentOf(a.Dn, b.Dn)
		case OneLevel:
			if dn.Equals(a.Dn, b.Dn) {
				return true
			}
			return dn.IsImmediateParentOf(a.Dn, b.Dn) || dn.IsImmediateParentOf(b.Dn, a.Dn)
		case Subtree:
			parent, ok := dn.Parent(a.Dn)
			if !ok {
				return false
			}
			return dn.IsAncestorOrEqual(b.Dn, parent)
		}
	case Subtree:
		switch b.Scope {
		case Object:
			return dn.IsAncestorOrEqual(a.Dn, b.Dn)
		case OneLevel:
			parent, ok := dn.Parent(b.Dn)
			if !ok {
				return false
			}
			return dn.IsAncestorOrEqual(a.Dn, parent)
		case Subtree:
			return dn.IsAncestorOrEqual(a.Dn, b.Dn) || dn.IsAncestorOrEqual(b.Dn, a.Dn)
		}
	}

	return false
}
