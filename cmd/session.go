// File: cmd/session.go
package cmd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newLaunchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Open the persistent browser session and go to the login page",
		Long: `Opens Chrome with the saved LinkedIn profile directory. Log in by hand the
first time; the session is reused afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			components, err := app.Components(cmd.Context(), logger)
			if err != nil {
				return err
			}
			if err := components.State.Launch(cmd.Context()); err != nil {
				return fmt.Errorf("failed to launch browser: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Browser launched. Log in to LinkedIn if prompted.")
			if !app.isOneShot() {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to close the browser.")
			waitForSession(cmd.Context(), components.State)
			return nil
		},
	}
}

var sessionPollInterval = time.Second

// waitForSession blocks until ctx ends or the browser window is closed.
func waitForSession(ctx context.Context, state interface{ Running() bool }) {
	ticker := time.NewTicker(sessionPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !state.Running() {
				return
			}
		}
	}
}

func newStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop automation and close the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			components, err := app.Components(cmd.Context(), logger)
			if err != nil {
				return err
			}
			if err := components.State.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Browser stopped.")
			return nil
		},
	}
}

func newStopActionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-actions",
		Short: "Ask the running attempt to stop at its next checkpoint, keeping the browser open",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			components, err := app.Components(cmd.Context(), logger)
			if err != nil {
				return err
			}
			components.State.RequestStop()
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested.")
			return nil
		},
	}
}

// statusReport is the JSON printed by the status command.
type statusReport struct {
	Running bool              `json:"running"`
	Rate    schemas.RateState `json:"rate"`
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the browser is running and the rate counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			components, err := app.Components(cmd.Context(), logger)
			if err != nil {
				return err
			}
			report := statusReport{
				Running: components.State.Running(),
				Rate:    components.State.Rate(),
			}
			return printJSON(cmd, report)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
