package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/gh-buildtrigger/internal/config"
	"github.com/Cloudsky01/gh-buildtrigger/internal/console"
	"github.com/Cloudsky01/gh-buildtrigger/internal/paths"
)

var (
	forceInit bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage buildtrigger configuration",
		Long: `Manage buildtrigger configuration files.

Configuration Locations (first match wins):
  Local config:    ./.buildtrigger.yaml
  User config:     ~/.config/buildtrigger/config.yaml

Configuration Precedence (lowest to highest):
  1. Built-in defaults
  2. Configuration file
  3. Environment variables (BUILDTRIGGER_*)
  4. CLI flags`,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		Long:  `Display the paths to all configuration files and their existence status.`,
		RunE:  runConfigPath,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long:  `Show the effective configuration after merging all sources. The access token is redacted.`,
		RunE:  runConfigShow,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Long:  `Write the built-in defaults to --config, or to the user config file when --config is not set.`,
		RunE:  runConfigInit,
	}
)

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing configuration file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	p, err := paths.New()
	if err != nil {
		return fmt.Errorf("failed to initialize paths: %w", err)
	}

	printConfigPaths(cmd.OutOrStdout(), p, configPath)
	return nil
}

func printConfigPaths(w io.Writer, p *paths.Paths, explicit string) {
	fmt.Fprintln(w, "Configuration File Locations")
	fmt.Fprintln(w, "════════════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	if explicit != "" {
		fmt.Fprintf(w, "Explicit Config:    %s %s\n", explicit, existsIndicator(fileExists(explicit)))
	}
	fmt.Fprintf(w, "Local Config:       %s %s\n", p.LocalConfigFile(), existsIndicator(fileExists(p.LocalConfigFile())))
	fmt.Fprintf(w, "User Config:        %s %s\n", p.UserConfigFile(), existsIndicator(fileExists(p.UserConfigFile())))

	fmt.Fprintln(w)
	if explicit != "" {
		fmt.Fprintf(w, "Active Source:      %s\n", paths.SourceExplicit)
	} else if found, ok := p.FindConfig(); ok {
		fmt.Fprintf(w, "Active Source:      %s (%s)\n", p.Source(found), found)
	} else {
		fmt.Fprintf(w, "Active Source:      %s\n", paths.SourceDefaults)
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := redacted(cfg)
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	w := cmd.OutOrStdout()
	source := "defaults"
	if cfg.ConfigPath() != "" {
		source = cfg.ConfigPath()
	}
	fmt.Fprintf(w, "# Effective configuration (source: %s)\n\n", source)
	fmt.Fprint(w, string(data))
	return nil
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.GitHub.AccessToken != "" {
		out.GitHub.AccessToken = "********"
	}
	return out
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	target, err := resolveInitTarget(configPath)
	if err != nil {
		return err
	}

	if fileExists(target) && !forceInit {
		if !console.IsTTY() {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", target)
		}

		overwrite := false
		if err := console.AskConfirm("Configuration already exists", fmt.Sprintf("Overwrite %s?", target), &overwrite); err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), console.InfoStyle.Render("Left "+target+" unchanged"))
			return nil
		}
	}

	if err := config.Default().Save(target); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), console.SuccessStyle.Render("✅ Configuration written to "+target))
	return nil
}

// resolveInitTarget returns the file config init writes. The user config
// directory is created when it is the target.
func resolveInitTarget(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	p, err := paths.New()
	if err != nil {
		return "", fmt.Errorf("failed to initialize paths: %w", err)
	}
	if err := p.EnsureUserConfigDir(); err != nil {
		return "", err
	}
	return p.UserConfigFile(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func existsIndicator(exists bool) string {
	if exists {
		return "✓"
	}
	return "(not found)"
}
