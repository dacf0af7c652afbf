package naming

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidDN reports a string that is not a distinguished name.
var ErrInvalidDN = errors.New("invalid distinguished name")

// AVA is one attribute type and value pair of an RDN.
type AVA struct {
	Type  string
	Value string
}

// RDN is one structural unit of a DN. Most RDNs carry a single AVA.
type RDN []AVA

// DN is a parsed distinguished name, leaf first.
type DN []RDN

// Parse parses a string DN such as "cn=a\,b,ou=x+l=y,dc=example".
// The empty string parses to the empty DN.
func Parse(s string) (DN, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DN{}, nil
	}

	var dn DN
	for _, rawRDN := range splitUnescaped(s, ',') {
		var rdn RDN
		for _, rawAVA := range splitUnescaped(rawRDN, '+') {
			i := indexUnescaped(rawAVA, '=')
			if i <= 0 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDN, s)
			}
			typ := strings.TrimSpace(rawAVA[:i])
			value, err := unescape(strings.TrimSpace(rawAVA[i+1:]))
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDN, s, err)
			}
			if typ == "" || value == "" {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDN, s)
			}
			rdn = append(rdn, AVA{Type: typ, Value: value})
		}
		dn = append(dn, rdn)
	}
	return dn, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) DN {
	dn, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return dn
}

// String prints the DN with escaped values.
func (d DN) String() string {
	parts := make([]string, len(d))
	for i, rdn := range d {
		parts[i] = rdn.String()
	}
	return strings.Join(parts, ",")
}

// String prints the RDN with escaped values.
func (r RDN) String() string {
	parts := make([]string, len(r))
	for i, ava := range r {
		parts[i] = ava.Type + "=" + Escape(ava.Value)
	}
	return strings.Join(parts, "+")
}

// Parent returns the DN without its leaf RDN.
func (d DN) Parent() DN {
	if len(d) == 0 {
		return DN{}
	}
	return d[1:]
}

// normalized returns a copy with normalized types and values and sorted multi-valued RDNs.
func (d DN) normalized(fold bool) DN {
	out := make(DN, len(d))
	for i, rdn := range d {
		n := make(RDN, len(rdn))
		for j, ava := range rdn {
			value := strings.Join(strings.Fields(ava.Value), " ")
			if fold {
				value = norm.NFC.String(cases.Fold().String(value))
			}
			n[j] = AVA{Type: strings.ToLower(strings.TrimSpace(ava.Type)), Value: value}
		}
		sort.SliceStable(n, func(a, b int) bool {
			if n[a].Type != n[b].Type {
				return n[a].Type < n[b].Type
			}
			return n[a].Value < n[b].Value
		})
		out[i] = n
	}
	return out
}

// Normalize returns the stored form of a DN.
func Normalize(s string) (string, error) {
	dn, err := Parse(s)
	if err != nil {
		return "", err
	}
	return dn.normalized(false).String(), nil
}

// Canonical returns the comparison form of a DN. Strings that do not parse are
// case-folded and whitespace-collapsed as a whole, so they still compare stably.
func Canonical(s string) string {
	dn, err := Parse(s)
	if err != nil {
		return norm.NFC.String(cases.Fold().String(strings.Join(strings.Fields(s), " ")))
	}
	return dn.normalized(true).String()
}

// Depth returns the number of RDNs in the DN, or zero when it does not parse.
func Depth(s string) int {
	dn, err := Parse(s)
	if err != nil {
		return 0
	}
	return len(dn)
}

// Parent returns the parent DN in stored form, or "" for single-RDN and invalid DNs.
func Parent(s string) string {
	dn, err := Parse(s)
	if err != nil || len(dn) < 2 {
		return ""
	}
	return dn.Parent().String()
}

// IsDescendantOf reports whether child lies strictly below ancestor.
func IsDescendantOf(child, ancestor string) bool {
	c, err := Parse(child)
	if err != nil {
		return false
	}
	a, err := Parse(ancestor)
	if err != nil || len(c) <= len(a) {
		return false
	}
	return Canonical(DN(c[len(c)-len(a):]).String()) == Canonical(a.String())
}

// Ancestors returns the DNs strictly between s and base, nearest first.
// With an empty base every ancestor is returned.
func Ancestors(s, base string) []string {
	var out []string
	for p := Parent(s); p != ""; p = Parent(p) {
		if base != "" && !IsDescendantOf(p, base) {
			break
		}
		out = append(out, p)
	}
	return out
}

// Escape escapes the characters that are special in a DN value.
func Escape(value string) string {
	var b strings.Builder
	for i, r := range value {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r):
			b.WriteByte('\\')
		case i == 0 && (r == '#' || r == ' '):
			b.WriteByte('\\')
		case i == len(value)-1 && r == ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("trailing escape")
		}
		if i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i+1])
		i++
	}
	return b.String(), nil
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
