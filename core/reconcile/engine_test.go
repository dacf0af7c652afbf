package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"provisioner/core/provision"
	"provisioner/core/resolver"
	"provisioner/feature/target/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEndToEndSingleGroup(t *testing.T) {
	ctx := context.Background()
	dir := memory.New("ldap", testBase)
	src := newFakeSource(group("edu:groupA", "subj0"))
	e := newTestEngine(t, src, Options{}, dir, nil)
	groupA := ref(provision.KindGroup, "edu:groupA")

	calcs, err := e.Calc(ctx, groupA)
	require.NoError(t, err)
	require.Len(t, calcs, 1)
	require.NoError(t, calcs[0].Err)
	po := calcs[0].Object
	assert.Equal(t, "cn=groupA,dc=edu", po.Identifier.ObjectID)
	require.Len(t, po.ReferencesNamed("member"), 1)
	assert.Equal(t, "uid=subj0,ou=people,dc=edu", po.ReferencesNamed("member")[0].ObjectID)

	diffs, err := e.Diff(ctx, groupA)
	require.NoError(t, err)
	require.Len(t, diffs[0].Operations, 1)
	assert.Equal(t, provision.OpCreate, diffs[0].Operations[0].Kind)
	assert.Equal(t, po, diffs[0].Operations[0].Object)
	assert.Empty(t, dir.Writes(), "diff must not write")

	outcomes, err := e.Sync(ctx, groupA)
	require.NoError(t, err)
	assert.Equal(t, provision.StatusSuccess, outcomes[0].Status)
	assert.Len(t, outcomes[0].AppliedOps, 1)

	diffs, err = e.Diff(ctx, groupA)
	require.NoError(t, err)
	assert.True(t, diffs[0].InSync())
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := memory.New("ldap", testBase)
	src := newFakeSource(group("edu:g", "a", "b"))
	e := newTestEngine(t, src, Options{}, dir, nil)
	g := ref(provision.KindGroup, "edu:g")

	_, err := e.Sync(ctx, g)
	require.NoError(t, err)

	src.set(&provision.SourceEntity{Kind: provision.KindGroup, Name: "edu:g", Description: "renamed", Members: []string{"b", "c"}})
	first, err := e.Diff(ctx, g)
	require.NoError(t, err)
	require.Len(t, first[0].Operations, 1)

	op := first[0].Operations[0]
	target := e.Targets()[0]
	require.NoError(t, target.apply(ctx, op))
	snapshot := dir.Get("cn=g,dc=edu")
	require.NoError(t, target.apply(ctx, op))
	assert.Equal(t, snapshot, dir.Get("cn=g,dc=edu"))

	again, err := e.Diff(ctx, g)
	require.NoError(t, err)
	assert.True(t, again[0].InSync())
}

func TestDiffExistence(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateWhenAbsent", func(t *testing.T) {
		e := newTestEngine(t, newFakeSource(group("edu:g")), Options{}, memory.New("ldap", testBase), nil)
		diffs, err := e.Diff(ctx, ref(provision.KindGroup, "edu:g"))
		require.NoError(t, err)
		require.Len(t, diffs[0].Operations, 1)
		assert.Equal(t, provision.OpCreate, diffs[0].Operations[0].Kind)
	})

	t.Run("DeleteWhenVanished", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		dir.Seed(provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=gone,dc=edu"}))
		e := newTestEngine(t, newFakeSource(), Options{}, dir, nil)

		diffs, err := e.Diff(ctx, ref(provision.KindGroup, "edu:gone"))
		require.NoError(t, err)
		require.Len(t, diffs[0].Operations, 1)
		assert.Equal(t, provision.Delete(provision.Identifier{TargetID: "ldap", ObjectID: "cn=gone,dc=edu"}, true), diffs[0].Operations[0])
	})

	t.Run("NothingWhenBothAbsent", func(t *testing.T) {
		e := newTestEngine(t, newFakeSource(), Options{}, memory.New("ldap", testBase), nil)
		diffs, err := e.Diff(ctx, ref(provision.KindGroup, "edu:never"))
		require.NoError(t, err)
		assert.True(t, diffs[0].InSync())
	})
}

func TestDiffLookupFailureIsNotAbsence(t *testing.T) {
	ctx := context.Background()

	t.Run("Timeout", func(t *testing.T) {
		dir := blockingDirectory{memory.New("ldap", testBase)}
		e := newTestEngine(t, newFakeSource(group("edu:g")), Options{}, dir, nil)
		e.Targets()[0].Timeout = 10 * time.Millisecond

		diffs, err := e.Diff(ctx, ref(provision.KindGroup, "edu:g"))
		require.NoError(t, err)
		assert.Empty(t, diffs[0].Operations)
		assert.True(t, provision.IsFatal(diffs[0].Err))
	})

	t.Run("Unreachable", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		dir.SetUnreachable(errors.New("connection refused"))
		e := newTestEngine(t, newFakeSource(group("edu:g")), Options{}, dir, nil)

		outcomes, err := e.Sync(ctx, ref(provision.KindGroup, "edu:g"))
		require.NoError(t, err)
		assert.Equal(t, provision.StatusFailed, outcomes[0].Status)
		assert.Empty(t, outcomes[0].AppliedOps)
		assert.True(t, provision.IsFatal(outcomes[0].Err()))
	})
}

func TestSourceFailure(t *testing.T) {
	src := newFakeSource(group("edu:g"))
	src.failing["edu:g"] = errors.New("db gone")
	e := newTestEngine(t, src, Options{}, memory.New("ldap", testBase), nil)

	_, err := e.Diff(context.Background(), ref(provision.KindGroup, "edu:g"))
	assert.ErrorContains(t, err, "db gone")
}

func TestSyncConflictIsRetryable(t *testing.T) {
	ctx := context.Background()
	dir := conflictDirectory{memory.New("ldap", testBase)}
	dir.Seed(provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=g,dc=edu"}))
	e := newTestEngine(t, newFakeSource(group("edu:g")), Options{}, dir, nil)

	outcomes, err := e.Sync(ctx, ref(provision.KindGroup, "edu:g"))
	require.NoError(t, err)
	assert.Equal(t, provision.StatusFailed, outcomes[0].Status)
	assert.True(t, outcomes[0].Retryable)
	var conflict *provision.ConflictError
	assert.ErrorAs(t, outcomes[0].Err(), &conflict)
}

func TestApplyPartial(t *testing.T) {
	ctx := context.Background()
	dir := memory.New("ldap", testBase)
	dir.FailWrites("cn=b,dc=edu", errors.New("refused"))
	e := newTestEngine(t, newFakeSource(), Options{}, dir, nil)

	outcome := e.Apply(ctx, e.Targets()[0], provision.DiffResult{
		Identifier: provision.Identifier{TargetID: "ldap", ObjectID: "cn=a,dc=edu"},
		Operations: []provision.MutationOp{
			provision.Create(provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=a,dc=edu"})),
			provision.Create(provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=b,dc=edu"})),
			provision.Create(provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: "cn=c,dc=edu"})),
		},
	})
	assert.Equal(t, provision.StatusPartial, outcome.Status)
	assert.Len(t, outcome.AppliedOps, 1)
	assert.Nil(t, dir.Get("cn=c,dc=edu"))
}

func TestReferenceLookups(t *testing.T) {
	ctx := context.Background()
	owners := resolver.NewSourceAttribute("owners", "owner")
	mapping := resolver.Mapping{
		Definition: "owners",
		Reference:  "owner",
		Lookup:     &resolver.Lookup{Base: "ou=people,dc=edu", Attribute: "uid"},
	}
	person := func(dn, uid string) *provision.ProvisionedObject {
		po := provision.NewObject(provision.Identifier{TargetID: "ldap", ObjectID: dn})
		po.SetAttribute("uid", []string{uid})
		return po
	}
	entity := &provision.SourceEntity{
		Kind:       provision.KindGroup,
		Name:       "edu:g",
		Attributes: map[string][]string{"owner": {"jdoe", "nobody"}},
	}

	t.Run("SingleMatch", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		dir.Seed(person("uid=jdoe,ou=people,dc=edu", "jdoe"))
		e := newTestEngine(t, newFakeSource(entity), Options{}, dir, testResolver(t, []resolver.Definition{owners}, mapping))

		calcs, err := e.Calc(ctx, entity.Ref())
		require.NoError(t, err)
		require.NoError(t, calcs[0].Err)
		owner := calcs[0].Object.ReferencesNamed("owner")
		require.Len(t, owner, 1)
		assert.Equal(t, "uid=jdoe,ou=people,dc=edu", owner[0].ObjectID)
	})

	ambiguous := func() *memory.Directory {
		dir := memory.New("ldap", testBase)
		dir.Seed(person("uid=jdoe,ou=people,dc=edu", "jdoe"), person("uid=jdoe,ou=staff,ou=people,dc=edu", "jdoe"))
		return dir
	}

	t.Run("AmbiguousAborts", func(t *testing.T) {
		e := newTestEngine(t, newFakeSource(entity), Options{}, ambiguous(), testResolver(t, []resolver.Definition{owners}, mapping))

		diffs, err := e.Diff(ctx, entity.Ref())
		require.NoError(t, err)
		var amb *provision.AmbiguousResultError
		require.ErrorAs(t, diffs[0].Err, &amb)
		assert.Len(t, amb.Matches, 2)
		assert.Empty(t, diffs[0].Operations)
	})

	t.Run("AmbiguousSkipped", func(t *testing.T) {
		e := newTestEngine(t, newFakeSource(entity), Options{AmbiguityPolicy: AmbiguitySkip}, ambiguous(), testResolver(t, []resolver.Definition{owners}, mapping))

		calcs, err := e.Calc(ctx, entity.Ref())
		require.NoError(t, err)
		require.NoError(t, calcs[0].Err)
		assert.Empty(t, calcs[0].Object.ReferencesNamed("owner"))
	})

	countSearches := func(dir *memory.Directory) int {
		n := 0
		for _, c := range dir.Calls() {
			if c.Op == "search" {
				n++
			}
		}
		return n
	}

	t.Run("SingleCallsSearchEveryTime", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		dir.Seed(person("uid=jdoe,ou=people,dc=edu", "jdoe"))
		e := newTestEngine(t, newFakeSource(entity), Options{CacheTTL: time.Hour}, dir, testResolver(t, []resolver.Definition{owners}, mapping))

		for i := 0; i < 3; i++ {
			_, err := e.Calc(ctx, entity.Ref())
			require.NoError(t, err)
		}
		assert.Equal(t, 6, countSearches(dir))
	})

	t.Run("LateOwnerIsFound", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		e := newTestEngine(t, newFakeSource(entity), Options{CacheTTL: time.Hour}, dir, testResolver(t, []resolver.Definition{owners}, mapping))

		_, err := e.Sync(ctx, entity.Ref())
		require.NoError(t, err)
		calcs, err := e.Calc(ctx, entity.Ref())
		require.NoError(t, err)
		assert.Empty(t, calcs[0].Object.ReferencesNamed("owner"))

		dir.Seed(person("uid=jdoe,ou=people,dc=edu", "jdoe"))

		calcs, err = e.Calc(ctx, entity.Ref())
		require.NoError(t, err)
		owner := calcs[0].Object.ReferencesNamed("owner")
		require.Len(t, owner, 1)
		assert.Equal(t, "uid=jdoe,ou=people,dc=edu", owner[0].ObjectID)

		diffs, err := e.Diff(ctx, entity.Ref())
		require.NoError(t, err)
		require.NoError(t, diffs[0].Err)
		assert.NotEmpty(t, diffs[0].Operations)
	})

	t.Run("BulkRunsShareLookups", func(t *testing.T) {
		dir := memory.New("ldap", testBase)
		dir.Seed(person("uid=jdoe,ou=people,dc=edu", "jdoe"))
		other := &provision.SourceEntity{
			Kind:       provision.KindGroup,
			Name:       "edu:h",
			Attributes: map[string][]string{"owner": {"jdoe", "nobody"}},
		}
		e := newTestEngine(t, newFakeSource(entity, other), Options{CacheTTL: time.Hour}, dir, testResolver(t, []resolver.Definition{owners}, mapping))

		result, err := e.BulkCalc(ctx, provision.RootFilter{})
		require.NoError(t, err)
		require.Len(t, result.Calcs, 2)
		for _, c := range result.Calcs {
			require.NoError(t, c.Err)
			assert.Len(t, c.Object.ReferencesNamed("owner"), 1)
		}
		assert.Equal(t, 2, countSearches(dir), "one search per distinct value")

		// A later run starts with an empty cache.
		_, err = e.BulkCalc(ctx, provision.RootFilter{})
		require.NoError(t, err)
		assert.Equal(t, 4, countSearches(dir))
	})
}

func TestDescendantsAreLoadedWhenNeeded(t *testing.T) {
	src := newFakeSource(stem("edu:courses"), group("edu:courses:a", "s1"), group("edu:courses:b", "s2"))
	res := testResolver(t, []resolver.Definition{resolver.NewDescendantMembers("all")}, resolver.Mapping{Definition: "all", Attribute: "memberUid"})
	e := newTestEngine(t, src, Options{}, memory.New("ldap", testBase), res)

	calcs, err := e.Calc(context.Background(), ref(provision.KindStem, "edu:courses"))
	require.NoError(t, err)
	assert.Equal(t, "ou=courses,dc=edu", calcs[0].Object.Identifier.ObjectID)
	assert.Equal(t, []string{"s1", "s2"}, calcs[0].Object.Attribute("memberUid"))
}

func TestNewEngineValidates(t *testing.T) {
	res := testResolver(t, nil)

	_, err := NewEngine(newFakeSource(), Options{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(newFakeSource(), Options{}, zap.NewNop(), &Target{Adapter: memory.New("other", testBase), Resolver: res})
	var cfgErr *provision.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewEngine(newFakeSource(), Options{ErrorPolicy: "sometimes"}, zap.NewNop(), &Target{Adapter: memory.New("ldap", testBase), Resolver: res})
	assert.ErrorAs(t, err, &cfgErr)
}
