package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/archiver/pkg/browser"
	"github.com/entrhq/archiver/pkg/config"
	"github.com/entrhq/archiver/pkg/logging"
	"github.com/entrhq/archiver/pkg/runner"
)

var errRunFailed = errors.New("archival run failed")

// cliOptions holds the command-line flags. Flags override the settings file
// only when given explicitly.
type cliOptions struct {
	ConfigFile string
	EnvFile    string
	Headed     bool
	DryRun     bool
	Verbosity  string
	NoLogFile  bool
	ReportDir  string
}

// newRootCommand creates the archiver command.
func newRootCommand() *cobra.Command {
	cmd, _ := newCommand()
	return cmd
}

// newCommand creates the archiver command along with the options its flags
// are bound to.
func newCommand() (*cobra.Command, *cliOptions) {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "archiver",
		Short: "Archive Enrollware training-site locations",
		Long: `Logs into the Enrollware admin console, lists every training-site location
and archives each one whose archive flag is still available.

Credentials are read from ENROLLWARE_USERNAME and ENROLLWARE_PASSWORD,
optionally seeded from a .env file.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiver(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML settings file")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load credentials from (default "+config.DefaultEnvFile+" when present)")
	cmd.Flags().BoolVar(&opts.Headed, "headed", false, "show the browser window")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "visit every location without archiving anything")
	cmd.Flags().StringVarP(&opts.Verbosity, "verbosity", "v", "normal", "console verbosity (quiet|normal|verbose|debug)")
	cmd.Flags().BoolVar(&opts.NoLogFile, "no-log-file", false, "disable the per-run log file")
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "directory to write run report files to")

	return cmd, opts
}

// loadSettings reads the settings file and applies explicit flags on top.
func loadSettings(cmd *cobra.Command, opts *cliOptions) (*config.Settings, error) {
	settings, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("headed") {
		settings.Browser.Headless = !opts.Headed
	}
	if flags.Changed("dry-run") {
		settings.DryRun = opts.DryRun
	}
	if flags.Changed("verbosity") {
		settings.Logging.Verbosity = opts.Verbosity
	}
	if flags.Changed("no-log-file") {
		settings.Logging.File = !opts.NoLogFile
	}
	if flags.Changed("report-dir") {
		settings.Report.Dir = opts.ReportDir
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

func runArchiver(cmd *cobra.Command, opts *cliOptions) error {
	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		return err
	}

	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(settings.Logging.Verbosity)
	logger, logErr := logging.New(logging.Options{
		Level:   level,
		Console: cmd.OutOrStdout(),
		File:    settings.Logging.File,
		Dir:     settings.Logging.Dir,
	})
	defer logger.Close()
	if logErr != nil {
		logger.Warnf("File logging disabled: %v", logErr)
	}
	if path := logger.LogPath(); path != "" {
		logger.Verbosef("Logging to %s", path)
	}

	creds, err := config.CredentialsFromEnv()
	if err != nil {
		logger.Errorf("%v", err)
		return errRunFailed
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browserOpts := settings.BrowserOptions()
	summary := runner.Run(ctx, runner.Options{
		Acquire: func(ctx context.Context) (browser.Provider, error) {
			session, err := browser.Launch(ctx, browserOpts)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Credentials: creds,
		Settings:    settings,
		Logger:      logger,
	})

	if !summary.OK() {
		return errRunFailed
	}
	return nil
}
