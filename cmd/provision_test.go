package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"provisioner/core/protocol"
	"provisioner/core/provision"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		kind    protocol.Kind
		args    []string
		flags   requestFlags
		want    protocol.Kind
		wantErr string
	}{
		{name: "group", kind: protocol.KindCalc, args: []string{"edu:math:staff"}, flags: requestFlags{kind: "group"}, want: protocol.KindCalc},
		{name: "stem", kind: protocol.KindDiff, args: []string{"edu:math"}, flags: requestFlags{kind: "stem"}, want: protocol.KindDiff},
		{name: "bulk", kind: protocol.KindSync, flags: requestFlags{kind: "group", bulk: true, under: "edu", kinds: []string{"group", " stem"}}, want: protocol.KindBulkSync},
		{name: "missing name", kind: protocol.KindCalc, flags: requestFlags{kind: "group"}, wantErr: "exactly one"},
		{name: "bad kind", kind: protocol.KindCalc, args: []string{"edu"}, flags: requestFlags{kind: "person"}, wantErr: "unknown entity kind"},
		{name: "bad bulk kind", kind: protocol.KindCalc, flags: requestFlags{bulk: true, kinds: []string{"person"}}, wantErr: "unknown entity kind"},
		{name: "bad scope", kind: protocol.KindCalc, args: []string{"edu"}, flags: requestFlags{kind: "stem", returnData: "all"}, wantErr: "return data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := buildRequest(tt.kind, tt.args, &tt.flags)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Kind)
			assert.NotEmpty(t, req.RequestID)
			assert.Equal(t, protocol.ScopeData, req.ReturnData)
			if tt.flags.bulk {
				require.NotNil(t, req.Filter)
				assert.Equal(t, tt.flags.under, req.Filter.Under)
				assert.Equal(t, []provision.EntityKind{provision.KindGroup, provision.KindStem}, req.Filter.Kinds)
			} else {
				require.NotNil(t, req.Entity)
				assert.Equal(t, tt.args[0], req.Entity.Name)
			}
		})
	}
}

func TestConfirmDestructiveAction(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirmDestructiveAction(strings.NewReader(""), &out, true))
	assert.Contains(t, out.String(), "--yes")

	assert.True(t, confirmDestructiveAction(strings.NewReader("yes\n"), &out, false))
	assert.True(t, confirmDestructiveAction(strings.NewReader("yes"), &out, false))
	assert.False(t, confirmDestructiveAction(strings.NewReader("y\n"), &out, false))
	assert.False(t, confirmDestructiveAction(strings.NewReader(""), &out, false))
}

func TestResponseError(t *testing.T) {
	assert.NoError(t, responseError(&protocol.SyncResponse{Status: provision.StatusSuccess}))
	assert.ErrorContains(t, responseError(&protocol.SyncResponse{Status: provision.StatusPartial}), "partial")
	assert.NoError(t, responseError(&protocol.CalcResponse{Results: []protocol.CalcEntry{{}}}))
	assert.ErrorContains(t, responseError(&protocol.DiffResponse{Results: []protocol.DiffEntry{{Error: &protocol.Error{}}}}), "1 target")
	assert.ErrorContains(t, responseError(&protocol.BulkSyncResponse{Status: provision.StatusFailed}), "failed")
	assert.NoError(t, responseError(&protocol.BulkCalcResponse{Status: provision.StatusSuccess}))
}

// planExecutor answers bulk diff requests with a fixed plan.
type planExecutor struct {
	plan *protocol.BulkDiffResponse
	reqs []*protocol.Request
}

func (p *planExecutor) Execute(_ context.Context, req *protocol.Request) (any, error) {
	p.reqs = append(p.reqs, req)
	return p.plan, nil
}

func samplePlan() *protocol.BulkDiffResponse {
	id := provision.Identifier{TargetID: "ldap", ObjectID: "cn=staff,ou=math,ou=groups,dc=example,dc=edu"}
	return &protocol.BulkDiffResponse{
		Status: provision.StatusSuccess,
		Results: map[string]protocol.DiffEntry{
			id.String(): {Identifier: id, Operations: []provision.MutationOp{
				{Kind: provision.OpCreate, Identifier: id},
			}},
			"ldap:cn=old,ou=groups,dc=example,dc=edu": {Operations: []provision.MutationOp{
				{Kind: provision.OpDelete},
				{Kind: provision.OpModify},
			}},
			"ldap:cn=admins,ou=groups,dc=example,dc=edu": {InSync: true},
		},
	}
}

func testCommand(stdin string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func TestCountOperations(t *testing.T) {
	counts := countOperations(samplePlan())
	assert.Equal(t, 1, counts[provision.OpCreate])
	assert.Equal(t, 1, counts[provision.OpModify])
	assert.Equal(t, 1, counts[provision.OpDelete])
	assert.Equal(t, 3, counts.total())
}

func TestPlanBulkSync(t *testing.T) {
	newRequest := func() *protocol.Request {
		req, err := buildRequest(protocol.KindSync, nil, &requestFlags{bulk: true, under: "edu"})
		require.NoError(t, err)
		return req
	}

	t.Run("confirmed", func(t *testing.T) {
		exec := &planExecutor{plan: samplePlan()}
		cmd, _ := testCommand("yes\n")
		req := newRequest()

		ok, err := planBulkSync(context.Background(), cmd, zap.NewNop(), exec, req, &requestFlags{})
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, exec.reqs, 1)
		assert.Equal(t, protocol.KindBulkDiff, exec.reqs[0].Kind)
		assert.Equal(t, req.RequestID, exec.reqs[0].RequestID)
		assert.Equal(t, protocol.KindBulkSync, req.Kind)
	})

	t.Run("declined", func(t *testing.T) {
		cmd, _ := testCommand("no\n")
		ok, err := planBulkSync(context.Background(), cmd, zap.NewNop(), &planExecutor{plan: samplePlan()}, newRequest(), &requestFlags{})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("dry run writes the plan", func(t *testing.T) {
		cmd, out := testCommand("")
		ok, err := planBulkSync(context.Background(), cmd, zap.NewNop(), &planExecutor{plan: samplePlan()}, newRequest(), &requestFlags{dryRun: true, yes: true})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, out.String(), `"kind": "create"`)
	})

	t.Run("nothing to apply", func(t *testing.T) {
		plan := &protocol.BulkDiffResponse{Status: provision.StatusSuccess, Results: map[string]protocol.DiffEntry{}}
		cmd, _ := testCommand("yes\n")
		ok, err := planBulkSync(context.Background(), cmd, zap.NewNop(), &planExecutor{plan: plan}, newRequest(), &requestFlags{})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
