// Package config loads run settings from defaults, a schemacheck.yaml file,
// SCHEMACHECK_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file base name looked up without --config.
	FileName  = "schemacheck"
	EnvPrefix = "SCHEMACHECK"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists the accepted report formats.
var Formats = []string{FormatText, FormatMarkdown, FormatJSON}

type Paths struct {
	DDL    string `mapstructure:"ddl"`
	YAML   string `mapstructure:"yaml"`
	Tables string `mapstructure:"tables"`
}

type History struct {
	URL string `mapstructure:"url"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the resolved run configuration.
type Config struct {
	BaseDir        string   `mapstructure:"base_dir"`
	Paths          Paths    `mapstructure:"paths"`
	EntityRegistry string   `mapstructure:"entity_registry"`
	ExcludeTables  []string `mapstructure:"exclude_tables"`
	Tables         []string `mapstructure:"tables"`
	Checks         []string `mapstructure:"checks"`
	Format         string   `mapstructure:"format"`
	Output         string   `mapstructure:"output"`
	OutputDir      string   `mapstructure:"output_dir"`
	Color          bool     `mapstructure:"color"`
	History        History  `mapstructure:"history"`
	Log            Log      `mapstructure:"log"`
}

// New returns an isolated viper instance with defaults and environment
// binding in place.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("base_dir", "docs/database")
	v.SetDefault("paths.ddl", "ddl")
	v.SetDefault("paths.yaml", "table-details")
	v.SetDefault("paths.tables", "tables")
	v.SetDefault("entity_registry", "")
	v.SetDefault("exclude_tables", []string{})
	v.SetDefault("tables", []string{})
	v.SetDefault("checks", []string{})
	v.SetDefault("format", FormatText)
	v.SetDefault("output", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("color", false)
	v.SetDefault("history.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds command-line flags to config keys. Flags that were not set
// on the command line fall through to file, environment and defaults.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("bind flag %s: no such flag", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and decodes the merged settings. With an empty
// cfgFile it searches the working directory, then the executable's directory,
// and a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ExcludeTables = splitList(cfg.ExcludeTables)
	cfg.Tables = splitList(cfg.Tables)
	cfg.Checks = splitList(cfg.Checks)
	return &cfg, nil
}

// Validate rejects unknown formats and check names. knownChecks is the set
// the engine accepts.
func (c *Config) Validate(knownChecks []string) error {
	if !contains(Formats, c.Format) {
		return fmt.Errorf("unknown format %q (want one of %s)", c.Format, strings.Join(Formats, ", "))
	}
	for _, name := range c.Checks {
		if !contains(knownChecks, name) {
			return fmt.Errorf("unknown check %q (want one of %s)", name, strings.Join(knownChecks, ", "))
		}
	}
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir must not be empty")
	}
	return nil
}

// splitList trims entries and expands comma-separated values, so that
// "a,b" from the environment and [a, b] from the file decode the same way.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
