package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arohank/dstxncore/dn"
)

func mustParse(t *testing.T, s string) dn.Dn {
	d, err := dn.Parse(s)
	assert.Nil(t, err, "unexpected parse error for %s", s)
	return d
}

func TestMatchTable(t *testing.T) {
	dn1 := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	dn2 := mustParse(t, "gn=Test1,cn=Test,ou=department,dc=example,dc=com")
	dn3 := mustParse(t, "ou=department,dc=example,dc=com")

	cases := []struct {
		name     string
		left     Entry
		right    Entry
		expected bool
	}{
		{"object-object-same", Entry{dn1, Object}, Entry{dn1, Object}, true},
		{"object-object-different", Entry{dn1, Object}, Entry{dn2, Object}, false},
		{"object-onelevel-child", Entry{dn2, Object}, Entry{dn1, OneLevel}, true},
		{"object-onelevel-not-child", Entry{dn3, Object}, Entry{dn1, OneLevel}, false},
		{"object-subtree-descendant", Entry{dn2, Object}, Entry{dn1, Subtree}, true},
		{"object-subtree-ancestor", Entry{dn3, Object}, Entry{dn1, Subtree}, false},
		{"subtree-subtree-same", Entry{dn1, Subtree}, Entry{dn1, Subtree}, true},
		{"subtree-subtree-ancestor", Entry{dn1, Subtree}, Entry{dn3, Subtree}, true}, // dn3 is an ancestor of dn1
		{"onelevel-onelevel-same", Entry{dn1, OneLevel}, Entry{dn1, OneLevel}, true},
		{"onelevel-onelevel-parent-child", Entry{dn3, OneLevel}, Entry{dn1, OneLevel}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Match(c.left, c.right), "left->right")
			assert.Equal(t, c.expected, Match(c.right, c.left), "right->left must match by symmetry")
		})
	}
}

func TestScopedSetAddIsIdempotent(t *testing.T) {
	s := NewScopedSet()
	d := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")

	s.Add(d, Object)
	s.Add(d, Object)
	assert.Equal(t, 1, s.Len())
}

// TestExclusiveChangeConflict reproduces TxnConflicTest.testExclusiveChangeConflict.
func TestExclusiveChangeConflict(t *testing.T) {
	dn1 := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	dn2 := mustParse(t, "gn=Test1,cn=Test,ou=department,dc=example,dc=com")

	firstWrite := NewScopedSet()
	firstWrite.Add(dn1, Object)

	sameWrite := NewScopedSet()
	sameWrite.Add(dn1, Object)
	assert.True(t, sameWrite.Intersects(firstWrite))

	readOfDn1 := NewScopedSet()
	readOfDn1.Add(dn1, Object)
	assert.True(t, readOfDn1.Intersects(firstWrite), "read and write at the same object scope must match")

	disjointWrite := NewScopedSet()
	disjointWrite.Add(dn2, Object)
	assert.False(t, disjointWrite.Intersects(firstWrite))
}

// TestSubtreeChangeConflict reproduces TxnConflicTest.testSubtreeChangeConflict.
func TestSubtreeChangeConflict(t *testing.T) {
	dn1 := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	dn2 := mustParse(t, "gn=Test1,cn=Test,ou=department,dc=example,dc=com")
	dn3 := mustParse(t, "ou=department,dc=example,dc=com")

	subtreeWrite := NewScopedSet()
	subtreeWrite.Add(dn1, Subtree)

	childObjectWrite := NewScopedSet()
	childObjectWrite.Add(dn2, Object)
	assert.True(t, childObjectWrite.Intersects(subtreeWrite))

	subtreeReadSameDn := NewScopedSet()
	subtreeReadSameDn.Add(dn1, Subtree)
	assert.True(t, subtreeReadSameDn.Intersects(subtreeWrite))

	ancestorObjectWrite := NewScopedSet()
	ancestorObjectWrite.Add(dn3, Object)
	assert.False(t, ancestorObjectWrite.Intersects(subtreeWrite))
}
