// Package config loads signup settings from a YAML file, an optional
// .env file and SIGNUP_* environment variables, in that order of
// precedence (environment wins). The merged result is checked against an
// embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

//go:embed schema.cue
var schemaCUE []byte

// Defaults applied to unset values.
const (
	DefaultDatabase = "signup.db"
	DefaultLogLevel = "info"
)

// Config holds the resolved settings.
type Config struct {
	Database  string          `yaml:"database,omitempty"`
	Template  string          `yaml:"template,omitempty"`
	OutputDir string          `yaml:"output_dir,omitempty"`
	LogLevel  string          `yaml:"log_level,omitempty"`
	Branding  record.Branding `yaml:"branding,omitempty"`
}

// envOverlay lists the environment variables that override file values.
// Unset variables leave the file value in place.
type envOverlay struct {
	Database    string `env:"SIGNUP_DB"`
	Template    string `env:"SIGNUP_TEMPLATE"`
	OutputDir   string `env:"SIGNUP_OUTPUT_DIR"`
	LogLevel    string `env:"SIGNUP_LOG_LEVEL"`
	CompanyName string `env:"SIGNUP_COMPANY_NAME"`
	LogoPath    string `env:"SIGNUP_LOGO_PATH"`
	AccentColor string `env:"SIGNUP_ACCENT_COLOR"`
}

// Options selects the sources Load reads.
type Options struct {
	// Path of the YAML config file. Empty means defaults only.
	Path string
	// EnvFile is a dotenv file loaded before the environment is read.
	// Existing environment variables are not overwritten.
	EnvFile string
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads, merges and validates the configuration.
func Load(opts Options) (Config, error) {
	const op = "config"

	cfg := Default()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Config{}, record.NewIOError(op, opts.EnvFile, err)
		}
	}

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return Config{}, record.NewIOError(op, opts.Path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			e := record.NewValidationError(op, fmt.Sprintf("invalid config file: %v", err))
			e.Path = opts.Path
			return Config{}, e
		}
	}

	var env envOverlay
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%s: environment: %w", op, err)
	}
	cfg.apply(env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	slog.Debug("config loaded", "path", opts.Path, "database", cfg.Database, "log_level", cfg.LogLevel)
	return cfg, nil
}

func (c *Config) apply(env envOverlay) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Database, env.Database)
	set(&c.Template, env.Template)
	set(&c.OutputDir, env.OutputDir)
	set(&c.LogLevel, env.LogLevel)
	set(&c.Branding.CompanyName, env.CompanyName)
	set(&c.Branding.LogoPath, env.LogoPath)
	set(&c.Branding.AccentColor, env.AccentColor)
}

// Validate checks the configuration against the CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}

	// Round-trip through YAML so the schema sees the file's key names.
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	v := schema.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		msg := strings.TrimSpace(cueerrors.Details(err, nil))
		return record.NewValidationError("config", msg)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MergeBranding overlays the configured branding on stored branding.
// Non-empty configured values win.
func (c Config) MergeBranding(stored record.Branding) record.Branding {
	out := stored
	if c.Branding.CompanyName != "" {
		out.CompanyName = c.Branding.CompanyName
	}
	if c.Branding.LogoPath != "" {
		out.LogoPath = c.Branding.LogoPath
	}
	if c.Branding.AccentColor != "" {
		out.AccentColor = c.Branding.AccentColor
	}
	return out
}
