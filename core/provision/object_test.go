package provision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var foldCase = CanonicalFunc(strings.ToLower)

func TestIdentifierEqual(t *testing.T) {
	a := Identifier{TargetID: "ldap", ObjectID: "CN=groupA,OU=edu"}
	b := Identifier{TargetID: "ldap", ObjectID: "cn=groupa,ou=edu"}

	assert.True(t, a.Equal(b, foldCase))
	assert.False(t, a.Equal(b, nil))
	assert.False(t, a.Equal(Identifier{TargetID: "other", ObjectID: a.ObjectID}, foldCase))
	assert.Equal(t, "ldap:CN=groupA,OU=edu", a.String())
}

func TestSetAttribute(t *testing.T) {
	po := NewObject(Identifier{TargetID: "t", ObjectID: "cn=a"})

	po.SetAttribute("cn", []string{"a"})
	po.SetAttribute("description", []string{"x", "x", "", "y"})
	po.SetAttribute("CN", []string{"b"})

	assert.Equal(t, []string{"cn", "description"}, po.AttributeNames())
	assert.Equal(t, []string{"b"}, po.Attribute("cn"))
	assert.Equal(t, []string{"x", "y"}, po.Attribute("Description"))

	po.SetAttribute("cn", nil)
	assert.Equal(t, []string{"description"}, po.AttributeNames())
	assert.False(t, po.HasAttribute("cn"))
}

func TestApplyDeltas(t *testing.T) {
	member := func(s string) Identifier { return Identifier{TargetID: "t", ObjectID: "uid=" + s} }

	po := NewObject(Identifier{TargetID: "t", ObjectID: "cn=a"})
	po.SetAttribute("description", []string{"x", "y"})
	po.SetAttribute("mail", []string{"a@example.org"})
	po.AddReference(Reference{Name: "member", Target: member("s0")}, foldCase)

	po.Apply(
		[]AttributeDelta{
			{Name: "description", Mode: ModeReplace, Values: []string{"x", "z"}},
			{Name: "mail", Mode: ModeAddOnly, Values: []string{"b@example.org"}},
		},
		[]ReferenceDelta{{
			Name:   "member",
			Add:    []Identifier{member("s1")},
			Remove: []Identifier{{TargetID: "t", ObjectID: "UID=S0"}},
		}},
		foldCase,
	)

	assert.Equal(t, []string{"x", "z"}, po.Attribute("description"))
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, po.Attribute("mail"))
	assert.Equal(t, []Identifier{member("s1")}, po.ReferencesNamed("member"))
}

func TestAddReferenceDeduplicates(t *testing.T) {
	po := NewObject(Identifier{TargetID: "t", ObjectID: "cn=a"})
	ref := Reference{Name: "member", Target: Identifier{TargetID: "t", ObjectID: "uid=s0"}}

	assert.True(t, po.AddReference(ref, foldCase))
	assert.False(t, po.AddReference(Reference{Name: "MEMBER", Target: Identifier{TargetID: "t", ObjectID: "UID=s0"}}, foldCase))
	assert.Len(t, po.References, 1)
}

func TestClone(t *testing.T) {
	po := NewObject(Identifier{TargetID: "t", ObjectID: "cn=a"})
	po.SetAttribute("cn", []string{"a"})

	c := po.Clone()
	c.SetAttribute("cn", []string{"b"})

	require.NotNil(t, c)
	assert.Equal(t, []string{"a"}, po.Attribute("cn"))
	assert.Nil(t, (*ProvisionedObject)(nil).Clone())
}

func TestSubtract(t *testing.T) {
	assert.Equal(t, []string{"y"}, Subtract([]string{"x", "y"}, []string{"x", "z"}))
	assert.Nil(t, Subtract(nil, []string{"x"}))
	assert.Nil(t, Subtract([]string{"x"}, []string{"x"}))
}
