package changelog

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"provisioner/core/provision"
)

type fakeSource struct {
	mu       sync.Mutex
	entities map[provision.EntityRef]*provision.SourceEntity
}

func newFakeSource(refs ...provision.EntityRef) *fakeSource {
	s := &fakeSource{entities: make(map[provision.EntityRef]*provision.SourceEntity)}
	for _, r := range refs {
		s.entities[r] = &provision.SourceEntity{Kind: r.Kind, Name: r.Name}
	}
	return s
}

func (s *fakeSource) remove(ref provision.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, ref)
}

func (s *fakeSource) Roots(context.Context, provision.RootFilter) ([]provision.EntityRef, error) {
	return nil, nil
}

func (s *fakeSource) Entity(_ context.Context, ref provision.EntityRef) (*provision.SourceEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[ref]; ok {
		return e, nil
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

func (s *fakeSource) Descendants(context.Context, provision.EntityRef) ([]*provision.SourceEntity, error) {
	return nil, nil
}

// fakeReconciler records every reconciled root and answers with canned outcomes.
type fakeReconciler struct {
	mu       sync.Mutex
	calls    []provision.EntityRef
	outcomes map[string][]provision.SyncOutcome
	errs     map[string]error
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{outcomes: make(map[string][]provision.SyncOutcome), errs: make(map[string]error)}
}

func (r *fakeReconciler) Sync(_ context.Context, ref provision.EntityRef) ([]provision.SyncOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ref)
	if err := r.errs[ref.Name]; err != nil {
		return nil, err
	}
	if out, ok := r.outcomes[ref.Name]; ok {
		return out, nil
	}
	return []provision.SyncOutcome{{Source: ref, Status: provision.StatusSuccess}}, nil
}

func (r *fakeReconciler) fail(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[name] = []provision.SyncOutcome{{
		Source: provision.EntityRef{Kind: provision.KindGroup, Name: name},
		Status: provision.StatusFailed,
		Errors: []error{err},
	}}
}

func (r *fakeReconciler) heal(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outcomes, name)
}

func (r *fakeReconciler) called() []provision.EntityRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provision.EntityRef(nil), r.calls...)
}

type fakeFeed struct {
	events []provision.ChangeEvent
	pulls  int
}

func (f *fakeFeed) NextBatch(_ context.Context, after int64, max int) ([]provision.ChangeEvent, error) {
	f.pulls++
	var out []provision.ChangeEvent
	for _, ev := range f.events {
		if ev.Sequence > after && len(out) < max {
			out = append(out, ev)
		}
	}
	return out, nil
}

func groupRef(name string) provision.EntityRef {
	return provision.EntityRef{Kind: provision.KindGroup, Name: name}
}

func stemRef(name string) provision.EntityRef {
	return provision.EntityRef{Kind: provision.KindStem, Name: name}
}

func event(seq int64, kind provision.ChangeKind, subject provision.EntityRef) provision.ChangeEvent {
	return provision.ChangeEvent{Sequence: seq, Kind: kind, Subject: subject, Token: "change_log:" + strconv.FormatInt(seq, 10)}
}
