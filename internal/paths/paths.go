package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppName is the application name used in config paths
	AppName = "buildtrigger"

	// ConfigFileName is the name of the user config file
	ConfigFileName = "config.yaml"

	// LocalConfigFileName is the config file looked up in the working directory
	LocalConfigFileName = ".buildtrigger.yaml"
)

// ConfigSource indicates where the effective config came from
type ConfigSource int

const (
	SourceDefaults ConfigSource = iota
	SourceLocalConfig
	SourceUserConfig
	SourceExplicit
)

func (s ConfigSource) String() string {
	switch s {
	case SourceLocalConfig:
		return "working directory config"
	case SourceUserConfig:
		return "user config"
	case SourceExplicit:
		return "--config flag"
	default:
		return "built-in defaults"
	}
}

// Paths resolves the locations a config file may live in
type Paths struct {
	// UserConfigDir is the user's config directory (~/.config/buildtrigger)
	UserConfigDir string

	// WorkingDir is the directory searched for LocalConfigFileName
	WorkingDir string
}

// New creates a Paths rooted at the XDG user config dir and the current directory
func New() (*Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config directory: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	return &Paths{
		UserConfigDir: filepath.Join(configDir, AppName),
		WorkingDir:    cwd,
	}, nil
}

// UserConfigFile returns the path to the user's config file
func (p *Paths) UserConfigFile() string {
	return filepath.Join(p.UserConfigDir, ConfigFileName)
}

// LocalConfigFile returns the path to the working directory config file
func (p *Paths) LocalConfigFile() string {
	return filepath.Join(p.WorkingDir, LocalConfigFileName)
}

// Candidates returns the config file locations in lookup order
func (p *Paths) Candidates() []string {
	return []string{p.LocalConfigFile(), p.UserConfigFile()}
}

// FindConfig returns the first candidate that exists
func (p *Paths) FindConfig() (string, bool) {
	for _, path := range p.Candidates() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Source classifies a config path against the known locations
func (p *Paths) Source(path string) ConfigSource {
	switch path {
	case "":
		return SourceDefaults
	case p.LocalConfigFile():
		return SourceLocalConfig
	case p.UserConfigFile():
		return SourceUserConfig
	default:
		return SourceExplicit
	}
}

// EnsureUserConfigDir creates the user config directory with permission 0700
func (p *Paths) EnsureUserConfigDir() error {
	if err := os.MkdirAll(p.UserConfigDir, 0700); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf(
				"permission denied: cannot create configuration directory %s\n\n"+
					"Set a custom location with: export XDG_CONFIG_HOME=/tmp/%s-config\n\n"+
					"Original error: %v",
				p.UserConfigDir, AppName, err)
		}
		return fmt.Errorf("failed to create configuration directory %s: %w", p.UserConfigDir, err)
	}
	return nil
}
