package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/gh-buildtrigger/internal/build"
	"github.com/Cloudsky01/gh-buildtrigger/internal/config"
	"github.com/Cloudsky01/gh-buildtrigger/internal/console"
	"github.com/Cloudsky01/gh-buildtrigger/internal/github"
	"github.com/Cloudsky01/gh-buildtrigger/internal/logging"
	"github.com/Cloudsky01/gh-buildtrigger/internal/orchestrator"
	"github.com/Cloudsky01/gh-buildtrigger/internal/paths"
	"github.com/Cloudsky01/gh-buildtrigger/internal/release"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const tokenFlag = "github-access-token"

// errMissingToken is reported after the usage line has been printed
var errMissingToken = errors.New("missing GitHub access token")

var (
	configPath string
	dryRun     bool
	logLevel   string
	logFormat  string

	rootCmd = &cobra.Command{
		Use:   paths.AppName,
		Short: "Trigger a launcher build when a newer Vivaldi release is published",
		Long: `buildtrigger compares the latest Vivaldi version in each release channel
with the version the launcher's test suite was last verified against.
Channels are checked in priority order (stable, then snapshot); the first
outdated one gets a workflow_dispatch build, unless a build is already
queued or running. At most one build is started per invocation.

Examples:
  buildtrigger --github-access-token XXXXXXXXX
  buildtrigger --github-access-token XXXXXXXXX --dry-run
  buildtrigger durations --output durations.tsv`,
		RunE:          runCheck,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: ./.buildtrigger.yaml, then ~/.config/buildtrigger/config.yaml)")
	rootCmd.PersistentFlags().String(tokenFlag, "", "Token with repo scope access to the launcher repository (or "+config.TokenEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")

	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Don't actually start any builds")

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}} (commit %s, built %s)\n", paths.AppName, commit, date))
}

// programName is the name the binary was invoked as
func programName() string {
	name := strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return paths.AppName
	}
	return name
}

func usageLine(program string) string {
	return fmt.Sprintf("Usage: %s --%s XXXXXXXXX", program, tokenFlag)
}

// flagBinding maps a command line flag onto a config key
type flagBinding struct {
	key  string
	name string
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadConfigWith(cmd)
}

func loadConfigWith(cmd *cobra.Command, extra ...flagBinding) (*config.Config, error) {
	bindings := append([]flagBinding{{key: "github.accessToken", name: tokenFlag}}, extra...)

	opts := make([]config.Option, 0, len(bindings))
	for _, b := range bindings {
		opts = append(opts, config.WithFlag(b.key, cmd.Flags().Lookup(b.name)))
	}

	cfg, err := config.Load(configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newLogger() (*slog.Logger, error) {
	return logging.New(os.Stderr, logLevel, logFormat)
}

func newGitHubClient(cfg *config.Config) (*github.Client, error) {
	return github.NewClient(github.Options{
		WorkflowBaseURL: cfg.WorkflowBaseURL(),
		AccessToken:     cfg.GitHub.AccessToken,
		UserAgent:       github.UserAgent(paths.AppName, version, cfg.HTTP.Contact),
		MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		Timeout:         cfg.HTTP.Timeout,
	})
}

// newOrchestrator wires every component to one shared client
func newOrchestrator(cfg *config.Config, logger *slog.Logger, dryRun bool) (*orchestrator.Orchestrator, error) {
	client, err := newGitHubClient(cfg)
	if err != nil {
		return nil, err
	}

	baseline, err := release.NewBaseline(client, cfg.Baseline.URL, logger)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(
		release.NewAppcast(client, cfg, logger),
		baseline,
		build.NewProber(client, cfg.GitHub.RunsPageSize, logger),
		build.NewTrigger(client, build.TriggerOptions{
			Workflow: cfg.GitHub.Workflow,
			Ref:      cfg.GitHub.Ref,
			DryRun:   dryRun,
		}, logger),
		orchestrator.WithLogger(logger),
	), nil
}

func requireToken(w io.Writer, cfg *config.Config) error {
	if cfg.GitHub.AccessToken == "" {
		fmt.Fprintln(w, usageLine(programName()))
		return errMissingToken
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := requireToken(cmd.OutOrStdout(), cfg); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	o, err := newOrchestrator(cfg, logger, dryRun)
	if err != nil {
		return err
	}

	result, err := o.Run(cmd.Context())
	if err != nil {
		return err
	}

	printRunSummary(cmd.OutOrStdout(), result, dryRun)
	return nil
}

func Execute() int {
	if err := rootCmd.ExecuteContext(signalContext()); err != nil {
		if !errors.Is(err, errMissingToken) {
			fmt.Fprintln(os.Stderr, console.ErrorStyle.Render("Error: "+err.Error()))
		}
		return 1
	}
	return 0
}
