// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/auth"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/observability"
)

const envPrefix = "EASYAPPLY"

// NewRootCommand builds a fresh command tree bound to app. The shell calls it
// once per line so flags never leak between commands.
func NewRootCommand(app *App) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "easyapply",
		Short:         "Assisted LinkedIn Easy Apply from a persistent browser session.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config() != nil {
				return nil
			}
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "easyapply"})
				return err
			}
			if cmd.Flags().Changed("headless") {
				headless, _ := cmd.Flags().GetBool("headless")
				cfg.SetBrowserHeadless(headless)
			}
			if cmd.Flags().Changed("max-steps") {
				steps, _ := cmd.Flags().GetInt("max-steps")
				cfg.SetEngineMaxSteps(steps)
			}
			observability.InitializeLogger(cfg.Logger())
			app.setConfig(cfg)
			observability.GetLogger().Debug("Configuration loaded.", zap.String("version", Version))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("headless", false, "run the browser without a window (applies when the config is first loaded)")
	rootCmd.PersistentFlags().Int("max-steps", 0, "ceiling on form steps per application (applies when the config is first loaded)")

	rootCmd.AddCommand(
		newLaunchCmd(app),
		newStopCmd(app),
		newStopActionsCmd(app),
		newStatusCmd(app),
		newApplyCmd(app),
		newProbeCmd(app),
		newPreviewCmd(app),
		newBankCmd(app),
		newMigrateCmd(app),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line in os.Args against app. The process exits
// afterwards, so launch holds the browser open until ctx ends.
func Execute(ctx context.Context, app *App) error {
	app.setOneShot()
	rootCmd := NewRootCommand(app)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command aborted by signal.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// loadConfig reads .env, the optional config file and the environment.
func loadConfig(cfgFile string) (*config.Config, error) {
	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return config.NewConfigFromViper(v)
}

// resolveUser returns the user id from --user, or the subject of --token.
func resolveUser(cmd *cobra.Command, cfg config.Interface) (string, error) {
	token, _ := cmd.Flags().GetString("token")
	user, _ := cmd.Flags().GetString("user")
	if token != "" {
		mode, err := auth.ModeFromConfig(cfg.Auth())
		if err != nil {
			return "", err
		}
		return auth.NewAuthenticator(mode).Subject(token)
	}
	if user == "" {
		return "", errors.New("either --user or --token is required")
	}
	return user, nil
}

func addUserFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "user id that owns the job and profile")
	cmd.Flags().String("token", "", "bearer token whose subject is the user id")
	cmd.MarkFlagsMutuallyExclusive("user", "token")
}
