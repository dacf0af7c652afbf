package provisioning

import (
	"context"
	"testing"

	"provisioner/core/changelog"
	"provisioner/core/config"
	"provisioner/core/database"
	"provisioner/core/reconcile"
	"provisioner/feature/target/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	groupBase = "ou=groups,dc=example,dc=edu"
	staffDN   = "cn=staff,ou=math," + groupBase
	mathDN    = "ou=math," + groupBase
	adminsDN  = "cn=admins," + groupBase
)

func testConfig() *config.Config {
	return &config.Config{
		Provisioning: reconcile.Config{
			DefinitionsFile: "testdata/definitions.yaml",
			Workers:         2,
			TimeoutSeconds:  5,
			ErrorPolicy:     string(reconcile.ContinueOnError),
			AmbiguityPolicy: string(reconcile.AmbiguityAbort),
		},
		Changelog: changelog.Config{
			BatchSize:         50,
			CheckpointBackend: changelog.BackendMemory,
			CheckpointName:    "test",
		},
	}
}

// setupRuntime builds the runtime over an in-memory registry holding two
// stems, two groups and one membership.
func setupRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	rt, err := Build(cfg, db, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, rt.Source.Migrate())

	ctx := context.Background()
	require.NoError(t, rt.Source.AddStem(ctx, "edu", "Education", ""))
	require.NoError(t, rt.Source.AddStem(ctx, "edu:math", "Mathematics", "Department of Mathematics"))
	require.NoError(t, rt.Source.AddGroup(ctx, "edu:math:staff", "Staff", "All staff"))
	require.NoError(t, rt.Source.AddGroup(ctx, "edu:admins", "Admins", "Administrators"))
	require.NoError(t, rt.Source.AddMember(ctx, "edu:math:staff", "alice"))
	return rt
}

func directory(rt *Runtime) *memory.Directory {
	return rt.Engine.Targets()[0].Adapter.(*memory.Directory)
}
