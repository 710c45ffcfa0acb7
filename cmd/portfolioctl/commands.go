package main

import (
	"encoding/json"
	"io"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"portfolio/api/internal/app/bootstrap"
	"portfolio/api/internal/config"
	"portfolio/api/internal/db"
	applog "portfolio/api/internal/log"
	"portfolio/api/internal/portfolio"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "portfolioctl",
		Short: "Administrative tasks for the portfolio API",
		Long: `portfolioctl runs maintenance tasks against the portfolio API database.
Configuration is read from the environment (and a .env file when present),
exactly like the server: DB_DRIVER, DB_PATH, DATABASE_URL, GITHUB_USERNAME, ...`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newGitHubStatsCmd(opts),
	)
	return rootCmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return withDatabase(cfg, logger, func(conn *gorm.DB) error {
				if err := bootstrap.Migrate(cmd.Context(), conn, logger); err != nil {
					return err
				}
				cmd.Println("Migrations applied.")
				return nil
			})
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate, then upsert portfolio content from a TOML seed file",
		Long: `Loads companies, projects, skills, education and documents from a TOML file.
Existing records are matched by their natural key and updated, so the command can be re-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := portfolio.LoadSeedFile(file)
			if err != nil {
				return err
			}

			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return withDatabase(cfg, logger, func(conn *gorm.DB) error {
				if err := bootstrap.Migrate(cmd.Context(), conn, logger); err != nil {
					return err
				}

				svc, err := portfolio.NewService(conn, logger, nil)
				if err != nil {
					return eris.Wrap(err, "creating portfolio service")
				}

				report, err := svc.Seed(cmd.Context(), data, logger)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.toml", "path to the TOML seed file")

	return cmd
}

func newGitHubStatsCmd(opts *rootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "github-stats",
		Short: "Fetch GitHub statistics once and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if username != "" {
				cfg.GitHub.Username = username
			}
			if cfg.GitHub.Username == "" {
				return eris.New("no github username: set GITHUB_USERNAME or pass --username")
			}

			stats, client, err := bootstrap.NewGitHubStats(cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			snapshot, err := stats.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snapshot)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "GitHub account (overrides GITHUB_USERNAME)")

	return cmd
}

// load reads configuration and builds a logger writing to w, keeping stdout free for results.
func (o *rootOptions) load(w io.Writer) (*config.Config, *logrus.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, eris.Wrap(err, "loading configuration")
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}

	logger, err := applog.NewLogger(applog.Options{Level: level, File: cfg.LogFile, Output: w})
	if err != nil {
		return nil, nil, eris.Wrap(err, "initialising logger")
	}

	return cfg, logger, nil
}

func withDatabase(cfg *config.Config, logger *logrus.Logger, fn func(conn *gorm.DB) error) error {
	conn, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	return fn(conn)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return eris.Wrap(encoder.Encode(v), "encoding output")
}
