package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/gh-buildtrigger/internal/paths"
	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const (
	EnvPrefix = "BUILDTRIGGER"

	// TokenEnvVar is read in addition to the key-derived env name
	TokenEnvVar = "BUILDTRIGGER_GITHUB_ACCESS_TOKEN"

	DefaultAPIURL       = "https://api.github.com"
	DefaultRepository   = "Aldaviva/VivaldiCustomLauncher"
	DefaultWorkflow     = "build.yml"
	DefaultRef          = "master"
	DefaultRunsPageSize = 10
	DefaultBaselineURL  = "https://raw.githubusercontent.com/Aldaviva/VivaldiCustomLauncher/master/Tests/Data/"
	DefaultContact      = "ben@aldaviva.com"
	DefaultMaxConns     = 16
	DefaultOutput       = "output.txt"
	DefaultDurationPage = 100
)

// DefaultFeeds maps each variant to its Sparkle appcast
var DefaultFeeds = map[models.BuildVariant]string{
	models.Stable:   "https://update.vivaldi.com/update/1.0/public/appcast.x64.xml",
	models.Snapshot: "https://update.vivaldi.com/update/1.0/win/appcast.x64.xml",
}

var repoFormatRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

type Config struct {
	GitHub    GitHub            `yaml:"github" mapstructure:"github"`
	Feeds     map[string]string `yaml:"feeds" mapstructure:"feeds"`
	Baseline  Baseline          `yaml:"baseline" mapstructure:"baseline"`
	HTTP      HTTP              `yaml:"http" mapstructure:"http"`
	Durations Durations         `yaml:"durations" mapstructure:"durations"`

	configPath string
}

type GitHub struct {
	AccessToken  string `yaml:"accessToken,omitempty" mapstructure:"accessToken"`
	APIURL       string `yaml:"apiUrl" mapstructure:"apiUrl"`
	Repository   string `yaml:"repository" mapstructure:"repository"`
	Workflow     string `yaml:"workflow" mapstructure:"workflow"`
	Ref          string `yaml:"ref" mapstructure:"ref"`
	RunsPageSize int    `yaml:"runsPageSize" mapstructure:"runsPageSize"`
}

type Baseline struct {
	URL string `yaml:"url" mapstructure:"url"`
}

type HTTP struct {
	Contact         string        `yaml:"contact" mapstructure:"contact"`
	MaxConnsPerHost int           `yaml:"maxConnsPerHost" mapstructure:"maxConnsPerHost"`
	Timeout         time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

type Durations struct {
	Output   string `yaml:"output" mapstructure:"output"`
	PageSize int    `yaml:"pageSize" mapstructure:"pageSize"`
}

// Option customizes the viper instance before the config is read
type Option func(*viper.Viper) error

// WithFlag lets a command-line flag override key when the flag was set
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		return v.BindPFlag(key, flag)
	}
}

// Default returns the configuration used when no file or env overrides exist
func Default() *Config {
	feeds := make(map[string]string, len(DefaultFeeds))
	for variant, feedURL := range DefaultFeeds {
		feeds[variant.Lower()] = feedURL
	}

	return &Config{
		GitHub: GitHub{
			APIURL:       DefaultAPIURL,
			Repository:   DefaultRepository,
			Workflow:     DefaultWorkflow,
			Ref:          DefaultRef,
			RunsPageSize: DefaultRunsPageSize,
		},
		Feeds:    feeds,
		Baseline: Baseline{URL: DefaultBaselineURL},
		HTTP: HTTP{
			Contact:         DefaultContact,
			MaxConnsPerHost: DefaultMaxConns,
		},
		Durations: Durations{
			Output:   DefaultOutput,
			PageSize: DefaultDurationPage,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("github.accessToken", "")
	v.SetDefault("github.apiUrl", d.GitHub.APIURL)
	v.SetDefault("github.repository", d.GitHub.Repository)
	v.SetDefault("github.workflow", d.GitHub.Workflow)
	v.SetDefault("github.ref", d.GitHub.Ref)
	v.SetDefault("github.runsPageSize", d.GitHub.RunsPageSize)
	for name, feedURL := range d.Feeds {
		v.SetDefault("feeds."+name, feedURL)
	}
	v.SetDefault("baseline.url", d.Baseline.URL)
	v.SetDefault("http.contact", d.HTTP.Contact)
	v.SetDefault("http.maxConnsPerHost", d.HTTP.MaxConnsPerHost)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("durations.output", d.Durations.Output)
	v.SetDefault("durations.pageSize", d.Durations.PageSize)
}

// Load merges defaults, the config file, BUILDTRIGGER_* env vars and bound
// flags, in increasing precedence. An empty path searches the default
// locations and falls back to defaults when none exists; an explicit path
// must exist.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("github.accessToken", TokenEnvVar); err != nil {
		return nil, fmt.Errorf("failed to bind token env var: %w", err)
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("failed to apply config option: %w", err)
		}
	}

	if path == "" {
		if p, err := paths.New(); err == nil {
			if found, ok := p.FindConfig(); ok {
				path = found
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.configPath = path

	return &config, nil
}

// ConfigPath returns the file the config was read from, or "" for defaults only
func (c *Config) ConfigPath() string {
	return c.configPath
}

// WorkflowBaseURL is the actions API root for the repository, with a trailing slash
func (c *Config) WorkflowBaseURL() string {
	return fmt.Sprintf("%s/repos/%s/actions/", strings.TrimRight(c.GitHub.APIURL, "/"), c.GitHub.Repository)
}

// FeedURL returns the appcast for a variant
func (c *Config) FeedURL(variant models.BuildVariant) (string, error) {
	feedURL, ok := c.Feeds[variant.Lower()]
	if !ok || feedURL == "" {
		return "", fmt.Errorf("no feed configured for variant %s", variant)
	}
	return feedURL, nil
}

func (c *Config) Validate() error {
	if !repoFormatRegex.MatchString(c.GitHub.Repository) {
		return fmt.Errorf("invalid repository format: %q - expected format: owner/repo", c.GitHub.Repository)
	}

	if c.GitHub.Workflow == "" {
		return errors.New("configuration must specify a workflow file")
	}

	if c.GitHub.Ref == "" {
		return errors.New("configuration must specify a ref to build")
	}

	if c.GitHub.RunsPageSize < 1 || c.GitHub.RunsPageSize > 100 {
		return fmt.Errorf("github.runsPageSize must be between 1 and 100, got %d", c.GitHub.RunsPageSize)
	}

	if c.Durations.PageSize < 1 || c.Durations.PageSize > 100 {
		return fmt.Errorf("durations.pageSize must be between 1 and 100, got %d", c.Durations.PageSize)
	}

	if c.HTTP.MaxConnsPerHost < 0 {
		return fmt.Errorf("http.maxConnsPerHost cannot be negative, got %d", c.HTTP.MaxConnsPerHost)
	}

	if err := validateURL("github.apiUrl", c.GitHub.APIURL); err != nil {
		return err
	}

	if err := validateURL("baseline.url", c.Baseline.URL); err != nil {
		return err
	}

	for key := range c.Feeds {
		if _, err := models.ParseBuildVariant(key); err != nil {
			return fmt.Errorf("feeds.%s: %w", key, err)
		}
	}

	for _, variant := range models.Variants {
		feedURL, err := c.FeedURL(variant)
		if err != nil {
			return err
		}
		if err := validateURL("feeds."+variant.Lower(), feedURL); err != nil {
			return err
		}
	}

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL for %s: %w", key, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

// Save writes the config as YAML. The access token is never written.
func (c *Config) Save(path string) error {
	out := *c
	out.GitHub.AccessToken = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# buildtrigger configuration
#
# - github: repository and workflow that builds and tests the launcher
# - feeds: Sparkle appcast per build variant (stable, snapshot)
# - baseline.url: directory holding vivaldi-<variant>-version.txt
# - http: connection limit, contact address for the User-Agent, optional timeout
# - durations: output file and page size for 'buildtrigger durations'
#
# Pass the access token with --github-access-token or BUILDTRIGGER_GITHUB_ACCESS_TOKEN.

`

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
