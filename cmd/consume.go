package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consumeOnce bool

// consumeCmd runs the change log consumer without the HTTP server.
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Reconcile registry changes from the change log",
	Long: `Reads change events after the committed checkpoint, reconciles the affected
roots and commits the checkpoint after each batch.

Examples:
  # Run until interrupted
  consume

  # Process one batch and print its outcome
  consume --once`,
	Args: cobra.NoArgs,
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().BoolVar(&consumeOnce, "once", false, "Process a single batch and exit")
	RootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
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

	if !consumeOnce {
		return rt.Service.Consume(ctx, env.cfg.Changelog.PollInterval())
	}

	out, err := rt.Service.RunChangelog(ctx)
	if out == nil && err == nil {
		env.log.Info("Change log drained, nothing to do")
		return writeJSON(cmd, map[string]string{"state": "drained"})
	}
	if out != nil {
		env.log.Info("Change batch processed",
			zap.String("state", string(out.State)),
			zap.Int("events", out.Events),
			zap.Int64("last_sequence", out.LastSequence),
			zap.Int("roots", len(out.Roots)),
			zap.Int("skipped", len(out.Skipped)),
		)
		if werr := writeJSON(cmd, out); werr != nil {
			return werr
		}
	}
	return err
}
