// File: cmd/bank.go
package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/learning"
	"github.com/xkilldash9x/easyapply/internal/observability"
	"github.com/xkilldash9x/easyapply/internal/secrets"
	"github.com/xkilldash9x/easyapply/internal/service"
)

const maskedAnswer = "********"

func newBankCmd(app *App) *cobra.Command {
	bankCmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage the learned question bank",
	}
	bankCmd.AddCommand(
		newBankSetCmd(app),
		newBankListCmd(app),
		newBankSweepCmd(app),
		newBankKeygenCmd(),
	)
	return bankCmd
}

func newBankSetCmd(app *App) *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store an answer for a question",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := app.Config()

			userID, err := resolveUser(cmd, cfg)
			if err != nil {
				return err
			}
			question, _ := cmd.Flags().GetString("question")
			answer, _ := cmd.Flags().GetString("answer")
			category := schemas.Category(mustString(cmd, "category"))
			if category == "" {
				category = learning.Classify(question)
				if answers.IsSensitive(question) {
					category = schemas.CategorySensitive
				}
			}

			if category.RequiresEncryption() {
				cipher, err := service.InitializeCipher(cfg.Crypto(), logger)
				if err != nil {
					return err
				}
				answer, err = cipher.Encrypt(answer)
				if errors.Is(err, secrets.ErrNoKey) {
					return fmt.Errorf("category %q is stored encrypted; configure crypto.encryption_key first", category)
				}
				if err != nil {
					return err
				}
			}

			st, cleanup, err := app.openStore(ctx, cfg.Database(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			entry := schemas.BankEntry{UserID: userID, Question: question, Answer: answer, Category: category}
			if err := st.UpsertAnswer(ctx, entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored answer for %q (%s).\n", question, category)
			return nil
		},
	}
	setCmd.Flags().String("question", "", "question text as it appears on the form")
	setCmd.Flags().String("answer", "", "answer to fill")
	setCmd.Flags().String("category", "", "general, salary, visa, experience or sensitive (inferred when empty)")
	addUserFlags(setCmd)
	_ = setCmd.MarkFlagRequired("question")
	_ = setCmd.MarkFlagRequired("answer")
	return setCmd
}

func newBankListCmd(app *App) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored answers, with encrypted ones masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.Config()
			userID, err := resolveUser(cmd, cfg)
			if err != nil {
				return err
			}
			st, cleanup, err := app.openStore(ctx, cfg.Database(), observability.GetLogger())
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := st.LoadQuestionBank(ctx, userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tQUESTION\tANSWER")
			for _, e := range entries {
				answer := e.Answer
				if secrets.IsCiphertext(answer) {
					answer = maskedAnswer
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Category, e.Question, answer)
			}
			return w.Flush()
		},
	}
	addUserFlags(listCmd)
	return listCmd
}

func newBankSweepCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Encrypt salary, visa and sensitive answers still stored in plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := app.Config()

			cipher, err := service.InitializeCipher(cfg.Crypto(), logger)
			if err != nil {
				return err
			}
			if cipher == nil {
				return fmt.Errorf("sweep needs crypto.encryption_key: %w", secrets.ErrNoKey)
			}

			st, cleanup, err := app.openStore(ctx, cfg.Database(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := st.ListUnencryptedSensitive(ctx)
			if err != nil {
				return err
			}
			updated := 0
			for _, e := range entries {
				token, err := cipher.Encrypt(e.Answer)
				if err != nil {
					return err
				}
				if err := st.UpdateAnswerCiphertext(ctx, e.UserID, e.Question, token); err != nil {
					logger.Warn("Failed to encrypt stored answer.", zap.String("user_id", e.UserID), zap.Error(err))
					continue
				}
				updated++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %d of %d answers.\n", updated, len(entries))
			return nil
		},
	}
}

func newBankKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key for crypto.encryption_key",
		// A new key needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
