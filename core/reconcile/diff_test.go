package reconcile

import (
	"strings"
	"testing"

	"provisioner/core/provision"
	"provisioner/core/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPolicy struct {
	mappings   []resolver.Mapping
	references []string
}

func (p staticPolicy) AttributeMapping(name string) (resolver.Mapping, bool) {
	for _, m := range p.mappings {
		if strings.EqualFold(m.Attribute, name) {
			return m, true
		}
	}
	return resolver.Mapping{}, false
}

func (p staticPolicy) ManagedReferences() []string { return p.references }

var fold = provision.CanonicalFunc(strings.ToLower)

func withValues(name string, values ...string) *provision.ProvisionedObject {
	po := provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=a,dc=edu"})
	po.SetAttribute(name, values)
	return po
}

func TestCompareAttributeModes(t *testing.T) {
	desired := withValues("description", "x", "z")
	actual := withValues("description", "x", "y")

	tests := []struct {
		name string
		m    resolver.Mapping
		want []provision.AttributeDelta
	}{
		{
			name: "Replace",
			m:    resolver.Mapping{Attribute: "description", Mode: provision.ModeReplace},
			want: []provision.AttributeDelta{{Name: "description", Mode: provision.ModeReplace, Values: []string{"x", "z"}}},
		},
		{
			name: "AddOnly",
			m:    resolver.Mapping{Attribute: "description", Mode: provision.ModeAddOnly},
			want: []provision.AttributeDelta{{Name: "description", Mode: provision.ModeAddOnly, Values: []string{"z"}}},
		},
		{
			name: "RetainAll",
			m:    resolver.Mapping{Attribute: "description", Mode: provision.ModeRetainAll},
			want: nil,
		},
		{
			name: "RetainAllForced",
			m:    resolver.Mapping{Attribute: "description", Mode: provision.ModeRetainAll, Force: true},
			want: []provision.AttributeDelta{{Name: "description", Mode: provision.ModeReplace, Values: []string{"x", "z"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, refs := Compare(desired, actual, staticPolicy{mappings: []resolver.Mapping{tt.m}}, fold)
			assert.Equal(t, tt.want, attrs)
			assert.Empty(t, refs)
		})
	}
}

func TestCompareLeavesUnmanagedAttributes(t *testing.T) {
	desired := withValues("cn", "a")
	actual := withValues("cn", "a")
	actual.SetAttribute("entryUUID", []string{"1234"})

	attrs, _ := Compare(desired, actual, staticPolicy{mappings: []resolver.Mapping{{Attribute: "cn"}}}, fold)
	assert.Empty(t, attrs)
}

func TestCompareClearsManagedAttribute(t *testing.T) {
	desired := withValues("cn", "a")
	actual := withValues("cn", "a")
	actual.SetAttribute("description", []string{"stale"})

	attrs, _ := Compare(desired, actual, staticPolicy{mappings: []resolver.Mapping{
		{Attribute: "cn", Mode: provision.ModeReplace},
		{Attribute: "description", Mode: provision.ModeReplace},
	}}, fold)
	assert.Equal(t, []provision.AttributeDelta{{Name: "description", Mode: provision.ModeReplace, Values: []string{}}}, attrs)
}

func TestCompareReferences(t *testing.T) {
	id := func(s string) provision.Identifier { return provision.Identifier{TargetID: "ldap", ObjectID: s} }
	desired := provision.NewObject(id("cn=a,dc=edu"))
	actual := provision.NewObject(id("cn=a,dc=edu"))
	for _, m := range []string{"uid=c", "uid=b", "uid=a"} {
		desired.AddReference(provision.Reference{Name: "member", Target: id(m)}, fold)
	}
	for _, m := range []string{"UID=B", "uid=old"} {
		actual.AddReference(provision.Reference{Name: "member", Target: id(m)}, fold)
	}
	actual.AddReference(provision.Reference{Name: "seeAlso", Target: id("cn=other")}, fold)

	_, refs := Compare(desired, actual, staticPolicy{references: []string{"member"}}, fold)
	require.Len(t, refs, 1)
	assert.Equal(t, "member", refs[0].Name)
	assert.Equal(t, []provision.Identifier{id("uid=c"), id("uid=a")}, refs[0].Add)
	assert.Equal(t, []provision.Identifier{id("uid=old")}, refs[0].Remove)
}

func TestExistenceEmitsAtMostOneOperation(t *testing.T) {
	policy := staticPolicy{mappings: []resolver.Mapping{{Attribute: "cn"}, {Attribute: "description"}}, references: []string{"member"}}
	desired := withValues("cn", "a")
	desired.SetAttribute("description", []string{"new"})
	desired.AddReference(provision.Reference{Name: "member", Target: provision.Identifier{TargetID: "ldap", ObjectID: "uid=x"}}, fold)
	actual := withValues("cn", "b")

	op := Existence(desired, actual, policy, fold)
	require.NotNil(t, op)
	assert.Equal(t, provision.OpModify, op.Kind)
	assert.Len(t, op.AttributeDeltas, 2)
	assert.Len(t, op.ReferenceDeltas, 1)

	assert.Nil(t, Existence(desired, desired.Clone(), policy, fold))
	assert.Nil(t, Existence(nil, nil, policy, fold))
	assert.Equal(t, provision.OpCreate, Existence(desired, nil, policy, fold).Kind)

	del := Existence(nil, actual, policy, fold)
	assert.Equal(t, provision.OpDelete, del.Kind)
	assert.True(t, del.Recursive)
}
