package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"provisioner/core/protocol"
	"provisioner/core/provision"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// requestFlags are the flags shared by calc, diff and sync.
type requestFlags struct {
	kind       string
	bulk       bool
	under      string
	kinds      []string
	returnData string
	requestID  string

	// bulk sync only
	dryRun bool
	yes    bool
}

func init() {
	RootCmd.AddCommand(
		newProvisionCmd(protocol.KindCalc, "Compute the desired target objects of a source entity"),
		newProvisionCmd(protocol.KindDiff, "Compare desired and actual target objects"),
		newProvisionCmd(protocol.KindSync, "Apply the changes that bring targets in line"),
	)
}

func newProvisionCmd(kind protocol.Kind, short string) *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   string(kind) + " [name]",
		Short: short,
		Long: fmt.Sprintf(`Runs a %[1]s request and writes the JSON response to stdout.

Examples:
  # One group
  %[1]s edu:math:staff

  # One stem
  %[1]s edu:math --kind stem

  # Every group below a stem
  %[1]s --bulk --under edu:math --kinds group`, kind),
		Args: func(cmd *cobra.Command, args []string) error {
			if f.bulk {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, kind, args, f)
		},
	}

	cmd.Flags().StringVar(&f.kind, "kind", string(provision.KindGroup), "Entity kind (group or stem)")
	cmd.Flags().BoolVar(&f.bulk, "bulk", false, "Run over every root matching the filter")
	cmd.Flags().StringVar(&f.under, "under", "", "Bulk filter: only entities at or below this name")
	cmd.Flags().StringSliceVar(&f.kinds, "kinds", nil, "Bulk filter: entity kinds")
	cmd.Flags().StringVar(&f.returnData, "return-data", string(protocol.ScopeData), "Response detail (identifier, data or everything)")
	cmd.Flags().StringVar(&f.requestID, "request-id", "", "Request id echoed in the response")
	if kind == protocol.KindSync {
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Bulk sync: report the plan without applying it")
		cmd.Flags().BoolVar(&f.yes, "yes", false, "Bulk sync: auto-confirm (non-interactive)")
	}
	return cmd
}

// buildRequest turns command arguments into a normalized request.
func buildRequest(kind protocol.Kind, args []string, f *requestFlags) (*protocol.Request, error) {
	req := &protocol.Request{
		RequestID:  f.requestID,
		Kind:       kind,
		ReturnData: protocol.ReturnData(f.returnData),
	}
	if f.bulk {
		req.Kind = protocol.Kind("bulk_" + string(kind))
		filter := &provision.RootFilter{Under: f.under}
		for _, k := range f.kinds {
			filter.Kinds = append(filter.Kinds, provision.EntityKind(strings.TrimSpace(k)))
		}
		req.Filter = filter
	} else {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s needs exactly one entity name", kind)
		}
		req.Entity = &provision.EntityRef{Kind: provision.EntityKind(f.kind), Name: args[0]}
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	for _, k := range filterKinds(req) {
		if k != provision.KindGroup && k != provision.KindStem {
			return nil, fmt.Errorf("unknown entity kind %q", k)
		}
	}
	return req, nil
}

func filterKinds(req *protocol.Request) []provision.EntityKind {
	if req.Filter == nil {
		return nil
	}
	return req.Filter.Kinds
}

func runProvision(cmd *cobra.Command, kind protocol.Kind, args []string, f *requestFlags) error {
	req, err := buildRequest(kind, args, f)
	if err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	rt, err := env.runtime()
	if err != nil {
		return fmt.Errorf("failed to build provisioning runtime: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	l := env.log.With(zap.String("request_id", req.RequestID), zap.String("kind", string(req.Kind)))

	if req.Kind == protocol.KindBulkSync {
		proceed, err := planBulkSync(ctx, cmd, l, rt.Service, req, f)
		if err != nil || !proceed {
			return err
		}
	}

	resp, err := rt.Service.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", req.Kind, err)
	}
	if err := writeJSON(cmd, resp); err != nil {
		return err
	}
	return responseError(resp)
}

// executor runs one protocol request.
type executor interface {
	Execute(ctx context.Context, req *protocol.Request) (any, error)
}

// planBulkSync runs the bulk diff of a bulk sync request, reports it and asks
// for confirmation. It reports whether the sync should run.
func planBulkSync(ctx context.Context, cmd *cobra.Command, l *zap.Logger, svc executor, req *protocol.Request, f *requestFlags) (bool, error) {
	plan := *req
	plan.Kind = protocol.KindBulkDiff
	filter := *req.Filter
	plan.Filter = &filter

	l.Info("Planning bulk sync...")
	resp, err := svc.Execute(ctx, &plan)
	if err != nil {
		return false, fmt.Errorf("failed to plan bulk sync: %w", err)
	}
	diff, ok := resp.(*protocol.BulkDiffResponse)
	if !ok {
		return false, fmt.Errorf("unexpected plan response %T", resp)
	}

	counts := countOperations(diff)
	printPlanReport(l, diff, counts)

	if f.dryRun {
		l.Info("Dry-run mode: No changes were made.")
		return false, writeJSON(cmd, diff)
	}
	if counts.total() == 0 {
		l.Info("Targets are in sync, nothing to apply.")
		return false, nil
	}
	if !confirmDestructiveAction(cmd.InOrStdin(), cmd.ErrOrStderr(), f.yes) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return false, nil
	}
	l.Info("Applying bulk sync...")
	return true, nil
}

// opCounts counts planned operations by kind.
type opCounts map[provision.OpKind]int

func (c opCounts) total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func countOperations(diff *protocol.BulkDiffResponse) opCounts {
	counts := opCounts{}
	for _, entry := range diff.Results {
		for _, op := range entry.Operations {
			counts[op.Kind]++
		}
	}
	return counts
}

func printPlanReport(l *zap.Logger, diff *protocol.BulkDiffResponse, counts opCounts) {
	failed := 0
	for _, entry := range diff.Results {
		if entry.Error != nil {
			failed++
		}
	}
	l.Info("Bulk sync plan",
		zap.Int("objects", len(diff.Results)),
		zap.Int("failed", failed),
		zap.Int("create", counts[provision.OpCreate]),
		zap.Int("modify", counts[provision.OpModify]),
		zap.Int("delete", counts[provision.OpDelete]),
		zap.String("status", string(diff.Status)),
	)

	const maxShow = 5
	shown := 0
	for key, entry := range diff.Results {
		for _, op := range entry.Operations {
			if shown == maxShow {
				l.Info("Additional operations not shown", zap.Int("count", counts.total()-maxShow))
				return
			}
			l.Info("Sample operation",
				zap.String("key", key),
				zap.String("type", string(op.Kind)),
				zap.String("identifier", op.Identifier.String()),
			)
			shown++
		}
	}
}

// confirmDestructiveAction prompts for confirmation unless yes is set.
func confirmDestructiveAction(in io.Reader, out io.Writer, yes bool) bool {
	if yes {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to apply these changes: ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

// responseError reports unsuccessful responses so the command exits non-zero.
func responseError(resp any) error {
	failed := 0
	switch r := resp.(type) {
	case *protocol.CalcResponse:
		for _, e := range r.Results {
			if e.Error != nil {
				failed++
			}
		}
	case *protocol.DiffResponse:
		for _, e := range r.Results {
			if e.Error != nil {
				failed++
			}
		}
	case *protocol.SyncResponse:
		if r.Status != provision.StatusSuccess {
			return fmt.Errorf("sync finished with status %s", r.Status)
		}
	case *protocol.BulkCalcResponse:
		return statusError(r.Status)
	case *protocol.BulkDiffResponse:
		return statusError(r.Status)
	case *protocol.BulkSyncResponse:
		return statusError(r.Status)
	}
	if failed > 0 {
		return fmt.Errorf("%d target(s) failed", failed)
	}
	return nil
}

func statusError(s provision.SyncStatus) error {
	if s == provision.StatusSuccess {
		return nil
	}
	return fmt.Errorf("bulk run finished with status %s", s)
}
