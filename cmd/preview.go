// File: cmd/preview.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/form"
	"github.com/xkilldash9x/easyapply/internal/observability"
	"github.com/xkilldash9x/easyapply/internal/service"
)

// planItem is one row of the preview output.
type planItem struct {
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
	Current  string `json:"current,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Source   string `json:"source,omitempty"`
	Score    int    `json:"score,omitempty"`
}

type previewReport struct {
	Fields        []planItem `json:"fields"`
	Unanswered    []string   `json:"unanswered"`
	SkippedFields []string   `json:"skipped_fields"`
}

func newPreviewCmd(app *App) *cobra.Command {
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what would be filled into a saved Easy Apply step, without a browser",
		Long: `Extracts the fields of a saved HTML page and resolves an answer for each one.
The profile and question bank come from JSON files (--profile, --bank) or,
with --user or --token, from the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := app.Config()

			htmlPath, _ := cmd.Flags().GetString("html")
			markup, err := os.ReadFile(htmlPath)
			if err != nil {
				return fmt.Errorf("failed to read page: %w", err)
			}
			fields, err := form.Extract(string(markup))
			if err != nil {
				return err
			}

			profile, bank, err := previewInputs(ctx, cmd, app, cfg, logger)
			if err != nil {
				return err
			}

			var dec answers.Decrypter
			cipher, err := service.InitializeCipher(cfg.Crypto(), logger)
			if err != nil {
				return err
			}
			if cipher != nil {
				dec = cipher
			}
			return printJSON(cmd, buildPlan(fields, answers.NewResolver(profile, bank, dec, logger)))
		},
	}
	previewCmd.Flags().String("html", "", "saved HTML of an Easy Apply step")
	previewCmd.Flags().String("profile", "", "profile JSON file")
	previewCmd.Flags().String("bank", "", "question bank JSON file (array of entries)")
	addUserFlags(previewCmd)
	_ = previewCmd.MarkFlagRequired("html")
	return previewCmd
}

func previewInputs(ctx context.Context, cmd *cobra.Command, app *App, cfg config.Interface, logger *zap.Logger) (schemas.Profile, []schemas.BankEntry, error) {
	var profile schemas.Profile
	var bank []schemas.BankEntry

	profilePath, _ := cmd.Flags().GetString("profile")
	bankPath, _ := cmd.Flags().GetString("bank")
	if profilePath != "" {
		if err := readJSONFile(profilePath, &profile); err != nil {
			return profile, nil, err
		}
		if bankPath != "" {
			if err := readJSONFile(bankPath, &bank); err != nil {
				return profile, nil, err
			}
		}
		return profile, bank, nil
	}

	userID, err := resolveUser(cmd, cfg)
	if err != nil {
		return profile, nil, fmt.Errorf("%w (or pass --profile)", err)
	}
	st, cleanup, err := app.openStore(ctx, cfg.Database(), logger)
	if err != nil {
		return profile, nil, err
	}
	defer cleanup()

	p, err := st.GetProfile(ctx, userID)
	if err != nil {
		return profile, nil, err
	}
	bank, err = st.LoadQuestionBank(ctx, userID)
	if err != nil {
		return profile, nil, err
	}
	return *p, bank, nil
}

func buildPlan(fields []form.Field, resolver *answers.Resolver) previewReport {
	report := previewReport{Fields: []planItem{}, Unanswered: []string{}}
	for _, f := range fields {
		item := planItem{Label: f.Label, Kind: string(f.Kind), Required: f.Required, Current: f.Value}
		if ans, ok := resolver.Resolve(f.Label); ok {
			item.Answer = ans.Value
			item.Source = string(ans.Source)
			item.Score = ans.Score
		} else if f.Labeled() && !answers.IsSensitive(f.Label) && f.Kind != form.KindFile && f.Kind != form.KindCheckbox {
			report.Unanswered = append(report.Unanswered, f.Label)
		}
		report.Fields = append(report.Fields, item)
	}
	report.SkippedFields = resolver.Skipped()
	if report.SkippedFields == nil {
		report.SkippedFields = []string{}
	}
	return report
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
