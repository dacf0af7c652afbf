package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"provisioner/core/naming"
	"provisioner/core/provision"
	"provisioner/core/resolver"
	"provisioner/feature/target/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBase = "dc=edu"

// fakeSource is an in-memory source provider. Entities marked Deleted are still
// listed as roots, as tombstones are by a real change-tracking source.
type fakeSource struct {
	mu       sync.Mutex
	entities []*provision.SourceEntity
	failing  map[string]error
}

func newFakeSource(entities ...*provision.SourceEntity) *fakeSource {
	return &fakeSource{entities: entities, failing: make(map[string]error)}
}

func group(name string, members ...string) *provision.SourceEntity {
	return &provision.SourceEntity{Kind: provision.KindGroup, Name: name, Members: members}
}

func stem(name string) *provision.SourceEntity {
	return &provision.SourceEntity{Kind: provision.KindStem, Name: name}
}

func (s *fakeSource) Roots(_ context.Context, filter provision.RootFilter) ([]provision.EntityRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []provision.EntityRef
	for _, e := range s.entities {
		if filter.Under != "" && e.Name != filter.Under && !strings.HasPrefix(e.Name, filter.Under+":") {
			continue
		}
		if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, e.Kind) {
			continue
		}
		refs = append(refs, e.Ref())
	}
	return refs, nil
}

func (s *fakeSource) Entity(_ context.Context, ref provision.EntityRef) (*provision.SourceEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing[ref.Name]; err != nil {
		return nil, err
	}
	for _, e := range s.entities {
		if e.Ref() == ref {
			c := *e
			return &c, nil
		}
	}
	return nil, provision.ErrNotFound
}

func (s *fakeSource) Ancestors(_ context.Context, ref provision.EntityRef) ([]provision.EntityRef, error) {
	var refs []provision.EntityRef
	name := ref.Name
	for i := strings.LastIndex(name, ":"); i > 0; i = strings.LastIndex(name, ":") {
		name = name[:i]
		refs = append(refs, provision.EntityRef{Kind: provision.KindStem, Name: name})
	}
	return refs, nil
}

func (s *fakeSource) Descendants(_ context.Context, ref provision.EntityRef) ([]*provision.SourceEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*provision.SourceEntity
	for _, e := range s.entities {
		if strings.HasPrefix(e.Name, ref.Name+":") {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeSource) set(entities ...*provision.SourceEntity) {
	s.mu.Lock()
	s.entities = entities
	s.mu.Unlock()
}

func containsKind(kinds []provision.EntityKind, k provision.EntityKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// testResolver maps groups and stems below "edu" into a bushy tree under dc=edu.
func testResolver(t *testing.T, extraDefs []resolver.Definition, extraMappings ...resolver.Mapping) *resolver.Resolver {
	t.Helper()
	strategy := naming.NewBushy(naming.Options{SourceBase: "edu", TargetBase: testBase})
	cn, err := resolver.NewSourceName("cn", resolver.FieldExtension, ":")
	require.NoError(t, err)
	description, err := resolver.NewSourceName("description", resolver.FieldDescription, ":")
	require.NoError(t, err)
	memberDNs, err := resolver.NewTemplate("member_dns", "uid={{.Value}},ou=people,dc=edu", "members", "members")
	require.NoError(t, err)

	defs := append([]resolver.Definition{
		resolver.NewFilter("participates", nil, []string{"edu:"}),
		resolver.NewIdentifier("dn", strategy, "cn", "participates"),
		cn,
		description,
		resolver.NewMembers("members"),
		memberDNs,
	}, extraDefs...)

	r, err := resolver.New(resolver.Config{
		TargetID:    "ldap",
		Identifier:  "dn",
		Definitions: defs,
		Mappings: append([]resolver.Mapping{
			{Definition: "cn", Attribute: "cn"},
			{Definition: "description", Attribute: "description"},
			{Definition: "member_dns", Reference: "member"},
		}, extraMappings...),
	})
	require.NoError(t, err)
	return r
}

func newTestEngine(t *testing.T, src provision.SourceProvider, opts Options, adapter provision.TargetAdapter, res *resolver.Resolver) *Engine {
	t.Helper()
	if res == nil {
		res = testResolver(t, nil)
	}
	e, err := NewEngine(src, opts, zap.NewNop(), &Target{
		Adapter:  adapter,
		Resolver: res,
		Timeout:  time.Second,
		Base:     testBase,
	})
	require.NoError(t, err)
	return e
}

func ref(kind provision.EntityKind, name string) provision.EntityRef {
	return provision.EntityRef{Kind: kind, Name: name}
}

// blockingDirectory never answers lookups before the context ends.
type blockingDirectory struct {
	*memory.Directory
}

func (b blockingDirectory) Lookup(ctx context.Context, _ provision.Identifier) (*provision.ProvisionedObject, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// conflictDirectory fails every modify with a ConflictError.
type conflictDirectory struct {
	*memory.Directory
}

func (c conflictDirectory) Modify(_ context.Context, id provision.Identifier, _ []provision.AttributeDelta, _ []provision.ReferenceDelta) error {
	return &provision.ConflictError{Identifier: id, Cause: errors.New("entry changed since read")}
}
