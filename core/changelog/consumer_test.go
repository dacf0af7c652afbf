package changelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"provisioner/core/provision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConsumer(src *fakeSource, rec *fakeReconciler, feed *fakeFeed, store CheckpointStore, rules ...AncestorRule) *Consumer {
	c := NewConsumer(feed, store, NewMapper(src, zap.NewNop(), rules...), rec, "test", 10, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestProcessBatch_DeduplicatesRoots(t *testing.T) {
	ctx := context.Background()
	g := groupRef("edu:a:g")
	src := newFakeSource(g)
	rec := newFakeReconciler()
	store := NewMemoryStore()
	c := newTestConsumer(src, rec, &fakeFeed{}, store)

	add := event(7, provision.ChangeMembershipAdd, g)
	add.Member = "alice"
	del := event(8, provision.ChangeMembershipDelete, g)
	del.Member = "alice"

	out, err := c.ProcessBatch(ctx, []provision.ChangeEvent{add, del})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, []provision.EntityRef{g}, rec.called(), "group reconciled once for both events")
	assert.Equal(t, int64(7), out.FirstSequence)
	assert.Equal(t, int64(8), out.LastSequence)

	cp, err := store.Load(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(8), cp.LastSequence)
	assert.Equal(t, "change_log:8", cp.Token)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), cp.UpdatedAt)
}

func TestProcessBatch_VanishedSubjectIsSkipped(t *testing.T) {
	ctx := context.Background()
	gone := groupRef("edu:gone")
	kept := groupRef("edu:kept")
	src := newFakeSource(kept)
	rec := newFakeReconciler()
	store := NewMemoryStore()
	c := newTestConsumer(src, rec, &fakeFeed{}, store)

	out, err := c.ProcessBatch(ctx, []provision.ChangeEvent{
		event(1, provision.ChangeMembershipAdd, gone),
		event(2, provision.ChangeMembershipAdd, kept),
	})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, out.State)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, int64(1), out.Skipped[0].Sequence)
	assert.Contains(t, out.Skipped[0].Reason, ErrSubjectVanished.Error())
	assert.Equal(t, []provision.EntityRef{kept}, rec.called())
	assert.Equal(t, int64(2), out.Checkpoint.LastSequence)
}

func TestProcessBatch_DeletedGroupIsReconciled(t *testing.T) {
	g := groupRef("edu:g")
	src := newFakeSource()
	rec := newFakeReconciler()
	c := newTestConsumer(src, rec, &fakeFeed{}, NewMemoryStore())

	out, err := c.ProcessBatch(context.Background(), []provision.ChangeEvent{event(3, provision.ChangeGroupDelete, g)})
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, []provision.EntityRef{g}, rec.called(), "tombstone still reconciled so the object is deleted")
}

func TestProcessBatch_FatalOutcomeDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	g := groupRef("edu:g")
	other := groupRef("edu:other")
	src := newFakeSource(g, other)
	rec := newFakeReconciler()
	rec.fail("edu:g", &provision.TargetUnreachableError{TargetID: "ldap", Cause: context.DeadlineExceeded})
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, provision.Checkpoint{Name: "test", LastSequence: 4, Token: "change_log:4"}))

	feed := &fakeFeed{events: []provision.ChangeEvent{
		event(5, provision.ChangeGroupUpdate, g),
		event(6, provision.ChangeGroupUpdate, other),
	}}
	c := newTestConsumer(src, rec, feed, store)

	out, err := c.RunOnce(ctx)
	require.Error(t, err)
	assert.True(t, provision.IsFatal(err))
	assert.Equal(t, StateFailed, out.State)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, []provision.EntityRef{g}, rec.called(), "batch aborts at the first fatal root")

	cp, err := store.Load(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(4), cp.LastSequence, "checkpoint not advanced")

	// The same batch is redelivered once the target is back.
	rec.heal("edu:g")
	out, err = c.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, int64(5), out.FirstSequence)
	assert.Equal(t, []provision.EntityRef{g, g, other}, rec.called())

	cp, err = store.Load(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(6), cp.LastSequence)
}

func TestProcessBatch_NonFatalOutcomeCommits(t *testing.T) {
	g := groupRef("edu:g")
	src := newFakeSource(g)
	rec := newFakeReconciler()
	rec.fail("edu:g", &provision.ResolutionError{DefinitionID: "dn", Cause: errors.New("two values")})
	c := newTestConsumer(src, rec, &fakeFeed{}, NewMemoryStore())

	out, err := c.ProcessBatch(context.Background(), []provision.ChangeEvent{event(9, provision.ChangeGroupUpdate, g)})
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	require.Len(t, out.Roots, 1)
	assert.Equal(t, provision.StatusFailed, out.Roots[0].Outcomes[0].Status)
	assert.Equal(t, int64(9), out.Checkpoint.LastSequence)
}

func TestProcessBatch_SourceFailureDoesNotCommit(t *testing.T) {
	g := groupRef("edu:g")
	src := newFakeSource(g)
	rec := newFakeReconciler()
	rec.errs["edu:g"] = errors.New("registry offline")
	store := NewMemoryStore()
	c := newTestConsumer(src, rec, &fakeFeed{}, store)

	out, err := c.ProcessBatch(context.Background(), []provision.ChangeEvent{event(2, provision.ChangeGroupUpdate, g)})
	assert.ErrorContains(t, err, "registry offline")
	assert.Equal(t, StateFailed, out.State)

	cp, _ := store.Load(context.Background(), "test")
	assert.Zero(t, cp.LastSequence)
}

func TestProcessBatch_RedeliveryNeverRewinds(t *testing.T) {
	ctx := context.Background()
	g := groupRef("edu:g")
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, provision.Checkpoint{Name: "test", LastSequence: 20, Token: "change_log:20"}))
	c := newTestConsumer(newFakeSource(g), newFakeReconciler(), &fakeFeed{}, store)

	out, err := c.ProcessBatch(ctx, []provision.ChangeEvent{event(11, provision.ChangeGroupUpdate, g)})
	require.NoError(t, err)
	assert.Equal(t, int64(20), out.Checkpoint.LastSequence)
	assert.Equal(t, "change_log:20", out.Checkpoint.Token)
}

func TestProcessBatch_Empty(t *testing.T) {
	rec := newFakeReconciler()
	store := NewMemoryStore()
	c := newTestConsumer(newFakeSource(), rec, &fakeFeed{}, store)

	out, err := c.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Empty(t, rec.called())
}

func TestProcessBatch_Cancelled(t *testing.T) {
	g := groupRef("edu:g")
	rec := newFakeReconciler()
	store := NewMemoryStore()
	c := newTestConsumer(newFakeSource(g), rec, &fakeFeed{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := c.ProcessBatch(ctx, []provision.ChangeEvent{event(1, provision.ChangeGroupUpdate, g)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, out.State)
	assert.Empty(t, rec.called())
}

func TestRunOnce_DrainedFeed(t *testing.T) {
	c := newTestConsumer(newFakeSource(), newFakeReconciler(), &fakeFeed{}, NewMemoryStore())
	out, err := c.RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	g := groupRef("edu:g")
	events := make([]provision.ChangeEvent, 0, 25)
	for i := int64(1); i <= 25; i++ {
		events = append(events, event(i, provision.ChangeGroupUpdate, g))
	}
	feed := &fakeFeed{events: events}
	store := NewMemoryStore()
	rec := newFakeReconciler()
	c := newTestConsumer(newFakeSource(g), rec, feed, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		cp, _ := store.Load(context.Background(), "test")
		return cp.LastSequence == 25
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Len(t, rec.called(), 3, "one reconcile per batch of 10, 10 and 5 events")
}
