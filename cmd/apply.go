// File: cmd/apply.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/engine"
	"github.com/xkilldash9x/easyapply/internal/observability"
)

func newApplyCmd(app *App) *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Run one Easy Apply attempt for a stored job",
		Long: `Navigates to the job, fills every step it can answer and submits.
With --dry-run the form is filled but never submitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			jobID, _ := cmd.Flags().GetString("job")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			launch, _ := cmd.Flags().GetBool("launch")

			userID, err := resolveUser(cmd, app.Config())
			if err != nil {
				return err
			}
			components, err := app.Components(ctx, logger)
			if err != nil {
				return err
			}
			if launch && !components.State.Running() {
				if err := components.State.Launch(ctx); err != nil {
					return fmt.Errorf("failed to launch browser: %w", err)
				}
			}

			// Ctrl+C raises the stop flag so the attempt ends at its next checkpoint.
			stop := context.AfterFunc(ctx, components.State.RequestStop)
			defer stop()

			outcome := components.Engine.Apply(ctx, engine.Request{JobID: jobID, UserID: userID, DryRun: dryRun})
			logger.Info("Attempt finished.",
				zap.String("attempt_id", outcome.AttemptID),
				zap.String("job_id", outcome.JobID),
				zap.String("status", string(outcome.Status)),
			)
			if err := printJSON(cmd, outcome); err != nil {
				return err
			}
			if outcome.Status == schemas.StatusError {
				return errors.New(outcome.Message)
			}
			return nil
		},
	}
	applyCmd.Flags().String("job", "", "job id to apply to")
	applyCmd.Flags().Bool("dry-run", false, "fill the form but stop before submitting")
	applyCmd.Flags().Bool("launch", false, "launch the browser first when it is not running")
	addUserFlags(applyCmd)
	_ = applyCmd.MarkFlagRequired("job")
	return applyCmd
}

func newProbeCmd(app *App) *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Check whether a stored job offers Easy Apply, without applying",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jobID, _ := cmd.Flags().GetString("job")
			userID, err := resolveUser(cmd, app.Config())
			if err != nil {
				return err
			}
			components, err := app.Components(ctx, observability.GetLogger())
			if err != nil {
				return err
			}
			result, err := components.Engine.Probe(ctx, userID, jobID)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	probeCmd.Flags().String("job", "", "job id to probe")
	addUserFlags(probeCmd)
	_ = probeCmd.MarkFlagRequired("job")
	return probeCmd
}
