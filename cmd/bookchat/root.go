package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	bookchat "github.com/djsadd/bookchat-go"
	"github.com/djsadd/bookchat-go/internal/logging"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	baseURL    string
	token      string
	logLevel   string
	envFile    string

	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{logger: logging.Discard()}

	cmd := &cobra.Command{
		Use:   "bookchat",
		Short: "Terminal client for the library chat backend",
		Long: `bookchat talks to the library chat backend: it streams assistant replies
and book context, searches the catalogue for cards and can run a local
development backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(opts.envFile); err != nil {
				return err
			}
			opts.logger = logging.New(cmd.ErrOrStderr(), opts.logLevel)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (defaults are built in)")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend base URL (overrides the config file)")
	flags.StringVar(&opts.token, "token", "", "bearer token (defaults to the token_env variable)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before running")

	cmd.AddCommand(
		newChatCmd(opts),
		newContextCmd(opts),
		newCardsCmd(opts),
		newDisciplinesCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// loadEnv reads a dotenv file if present. Variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig resolves the configuration from the config file and flags.
func (o *globalOptions) loadConfig() (bookchat.Config, error) {
	cfg := bookchat.DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = bookchat.LoadConfigFromFile(o.configFile); err != nil {
			return cfg, err
		}
	}
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	return cfg, cfg.Validate()
}

// newClient builds a backend client. The --token flag takes precedence over the
// environment token.
func (o *globalOptions) newClient() (*bookchat.Client, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	creds := bookchat.ChainCredentials{bookchat.StaticToken(o.token)}
	if cfg.TokenEnv != "" {
		creds = append(creds, bookchat.EnvToken(cfg.TokenEnv))
	}

	return bookchat.NewClient(cfg,
		bookchat.WithCredentials(creds),
		bookchat.WithLogger(o.logger))
}
