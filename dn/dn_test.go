package dn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, s string) Dn {
	d, err := Parse(s)
	assert.Nil(t, err, "unexpected parse error for %s", s)
	return d
}

func TestParseRoundTrip(t *testing.T) {
	d := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	assert.Equal(t, "cn=test,ou=department,dc=example,dc=com", d.String())

	d2 := mustParse(t, d.String())
	assert.True(t, Equals(d, d2))
}

func TestParseNormalizesKnownAttributeCaseAndWhitespace(t *testing.T) {
	d1 := mustParse(t, "CN=Test  User,ou=department,dc=example,dc=com")
	d2 := mustParse(t, "cn=test user,OU=department,dc=example,dc=com")
	assert.True(t, Equals(d1, d2))
}

func TestParseUnknownAttributeFallsBackToCaseInsensitive(t *testing.T) {
	d1 := mustParse(t, "x-custom=FooBar,dc=example,dc=com")
	d2 := mustParse(t, "x-custom=foobar,dc=example,dc=com")
	assert.True(t, Equals(d1, d2), "unknown attribute values should still compare case-insensitively")
}

func TestParseInvalidSyntax(t *testing.T) {
	cases := []string{
		"",
		"cn=Test,,dc=com",
		"cnTest,dc=com",
		"=Test,dc=com",
		"cn=,dc=com",
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.NotNil(t, err, "expected parse error for %q", c)
	}
}

func TestIsAncestorOf(t *testing.T) {
	root := mustParse(t, "ou=department,dc=example,dc=com")
	child := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	grandchild := mustParse(t, "gn=Test1,cn=Test,ou=department,dc=example,dc=com")

	assert.True(t, IsAncestorOf(root, child))
	assert.True(t, IsAncestorOf(root, grandchild))
	assert.True(t, IsAncestorOf(child, grandchild))
	assert.False(t, IsAncestorOf(child, root))
	assert.False(t, IsAncestorOf(child, child))
}

func TestIsAncestorOfAntisymmetric(t *testing.T) {
	a := mustParse(t, "ou=department,dc=example,dc=com")
	b := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")

	if IsAncestorOf(a, b) {
		assert.False(t, IsAncestorOf(b, a))
		assert.False(t, Equals(a, b))
	}
}

func TestIsImmediateParentOf(t *testing.T) {
	root := mustParse(t, "ou=department,dc=example,dc=com")
	child := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	grandchild := mustParse(t, "gn=Test1,cn=Test,ou=department,dc=example,dc=com")

	assert.True(t, IsImmediateParentOf(root, child))
	assert.False(t, IsImmediateParentOf(root, grandchild))
	assert.False(t, IsImmediateParentOf(child, root))
}

func TestParent(t *testing.T) {
	child := mustParse(t, "cn=Test,ou=department,dc=example,dc=com")
	parent, ok := Parent(child)
	assert.True(t, ok)
	assert.Equal(t, "ou=department,dc=example,dc=com", parent.String())

	root := mustParse(t, "dc=com")
	_, ok = Parent(root)
	assert.True(t, ok)

	empty := Dn{}
	_, ok = Parent(empty)
	assert.False(t, ok)
}

func TestEscapedCommaStaysWithinOneRDN(t *testing.T) {
	d1 := mustParse(t, `cn=Smith\, John,dc=example,dc=com`)
	assert.Equal(t, 3, d1.Depth())
	assert.Equal(t, `cn=smith\, john,dc=example,dc=com`, d1.String())
}
