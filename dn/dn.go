// Package dn models hierarchical distinguished names and the ancestor
// relationships the conflict detector needs.
package dn

import (
	"strings"

	"github.com/arohank/dstxncore/internal/errs"
	log "github.com/sirupsen/logrus"
)

// RDN is a single attribute=value component of a Dn.
type RDN struct {
	Type  string
	Value string
}

// Dn is an ordered sequence of RDNs, index 0 is the leaf and the last index
// is the root suffix component. A Dn is immutable once parsed.
type Dn struct {
	rdns []RDN
}

// knownAttrValueNormalizers holds attribute-syntax-specific value
// normalization for attribute types the core recognizes by name. Unknown
// attribute types fall back to case-insensitive byte comparison of the raw
// value.
var knownAttrValueNormalizers = map[string]bool{
	"cn":  true,
	"ou":  true,
	"dc":  true,
	"uid": true,
	"o":   true,
	"gn":  true,
}

// Parse parses a comma-separated DN string into a normalized Dn.
// It returns InvalidSyntaxError for malformed RDNs.
func Parse(text string) (Dn, error) {
	log.WithFields(log.Fields{"text": text}).Debug("dn::Parse; started")

	components, err := splitComponents(text)
	if err != nil {
		return Dn{}, err
	}
	if len(components) == 0 {
		return Dn{}, errs.NewInvalidSyntaxError("empty dn")
	}

	rdns := make([]RDN, len(components))
	for i, comp := range components {
		rdn, err := parseRDN(comp)
		if err != nil {
			return Dn{}, err
		}
		rdns[i] = rdn
	}

	log.Debug("dn::Parse; done")
	return Dn{rdns: rdns}, nil
}

// splitComponents splits a DN string on unescaped commas.
func splitComponents(text string) ([]string, error) {
	var components []string
	var current strings.Builder
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}

		if c == '\\' {
			escaped = true
			continue
		}

		if c == ',' {
			comp := strings.TrimSpace(current.String())
			if comp == "" {
				return nil, errs.NewInvalidSyntaxError("empty rdn component in dn: " + text)
			}
			components = append(components, comp)
			current.Reset()
			continue
		}

		current.WriteByte(c)
	}

	if escaped {
		return nil, errs.NewInvalidSyntaxError("trailing escape character in dn: " + text)
	}

	last := strings.TrimSpace(current.String())
	if last == "" {
		return nil, errs.NewInvalidSyntaxError("empty rdn component in dn: " + text)
	}
	components = append(components, last)

	return components, nil
}

// parseRDN parses and normalizes a single "type=value" component.
func parseRDN(comp string) (RDN, error) {
	eq := strings.Index(comp, "=")
	if eq <= 0 || eq == len(comp)-1 {
		return RDN{}, errs.NewInvalidSyntaxError("invalid rdn: " + comp)
	}

	attrType := strings.ToLower(strings.TrimSpace(comp[:eq]))
	attrValue := strings.TrimSpace(comp[eq+1:])
	if attrType == "" || attrValue == "" {
		return RDN{}, errs.NewInvalidSyntaxError("invalid rdn: " + comp)
	}

	if knownAttrValueNormalizers[attrType] {
		attrValue = collapseWhitespace(strings.ToLower(attrValue))
	}

	return RDN{Type: attrType, Value: attrValue}, nil
}

// collapseWhitespace trims and folds runs of whitespace to a single space,
// the syntax-level normalization known attribute values receive.
func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// String renders the Dn back to its comma-separated form, escaping commas
// and backslashes with a backslash. Parsing the result of String is
// guaranteed to round-trip to an equal Dn.
func (d Dn) String() string {
	esc := strings.NewReplacer(`\`, `\\`, `,`, `\,`)
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		parts[i] = esc.Replace(r.Type) + "=" + esc.Replace(r.Value)
	}
	return strings.Join(parts, ",")
}

// Depth returns the number of RDN components.
func (d Dn) Depth() int {
	return len(d.rdns)
}

// IsRoot reports whether the Dn has no components.
func (d Dn) IsRoot() bool {
	return len(d.rdns) == 0
}

// rdnEquals compares two RDNs the way Parse normalized them: the type is
// already lowercased, known-attribute values are already case-folded, so
// only unknown-attribute values still need a case-insensitive compare here.
func rdnEquals(a, b RDN) bool {
	return a.Type == b.Type && strings.EqualFold(a.Value, b.Value)
}

// Equals reports whether two Dns denote the same normalized name.
func Equals(a, b Dn) bool {
	if len(a.rdns) != len(b.rdns) {
		return false
	}
	for i := range a.rdns {
		if !rdnEquals(a.rdns[i], b.rdns[i]) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether a's RDN sequence is a proper suffix of b's,
// i.e. a is strictly above b in the namespace.
func IsAncestorOf(a, b Dn) bool {
	if len(a.rdns) >= len(b.rdns) {
		return false
	}
	offset := len(b.rdns) - len(a.rdns)
	for i := range a.rdns {
		if !rdnEquals(a.rdns[i], b.rdns[i+offset]) {
			return false
		}
	}
	return true
}

// IsAncestorOrEqual reports whether a is an ancestor of b or equal to b.
func IsAncestorOrEqual(a, b Dn) bool {
	return Equals(a, b) || IsAncestorOf(a, b)
}

// IsImmediateParentOf reports whether a is b's immediate parent: a is an
// ancestor of b and |b| = |a| + 1.
func IsImmediateParentOf(a, b Dn) bool {
	return len(b.rdns) == len(a.rdns)+1 && IsAncestorOf(a, b)
}

// Parent returns the immediate parent of d, or ok=false if d is the root.
func Parent(d Dn) (parent Dn, ok bool) {
	if len(d.rdns) == 0 {
		return Dn{}, false
	}
	return Dn{rdns: d.rdns[1:]}, true
}
