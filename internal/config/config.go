// Package config provides layered configuration loading.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the resolved configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Registry RegistryConfig `yaml:"registry"`
	HTTP     HTTPConfig     `yaml:"http"`

	// Output settings
	Format  string `yaml:"format" validate:"oneof=auto json quiet styled markdown"`
	Verbose *int   `yaml:"verbose,omitempty" validate:"omitempty,min=0,max=2"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `yaml:"-"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=file sqlite badger memory"`
	Dir           string `yaml:"dir"`
	MaxValueBytes int    `yaml:"max_value_bytes" validate:"min=0"`
}

// WatchdogConfig holds the watchdog options.
type WatchdogConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	Listen      bool          `yaml:"listen"`
	RepairRate  float64       `yaml:"repair_rate" validate:"gte=0"`
	RepairBurst int           `yaml:"repair_burst" validate:"gte=0"`
}

// RegistryConfig points at an optional registry file. Empty means the
// built-in registry.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig configures the status server started by `watch`.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FileName is the config file name inside each config directory.
const FileName = "config.yaml"

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	ConfigFile string
	Backend    string
	Dir        string
	Registry   string
	Format     string
	HTTPAddr   string
	Interval   time.Duration
	NoListen   bool
}

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "file",
		},
		Watchdog: WatchdogConfig{
			Enabled:     true,
			Interval:    10 * time.Second,
			Listen:      true,
			RepairRate:  5,
			RepairBurst: 10,
		},
		Format:  "auto",
		Sources: make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > explicit file > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	if p := localConfigPath(); p != "" {
		loadFromFile(cfg, p, SourceLocal)
	}

	if overrides.ConfigFile != "" {
		if err := LoadFile(cfg, overrides.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors Config with pointer fields so a layer only overrides
// what it actually sets.
type fileConfig struct {
	Store *struct {
		Backend       *string `yaml:"backend"`
		Dir           *string `yaml:"dir"`
		MaxValueBytes *int    `yaml:"max_value_bytes"`
	} `yaml:"store"`
	Watchdog *struct {
		Enabled     *bool          `yaml:"enabled"`
		Interval    *time.Duration `yaml:"interval"`
		Listen      *bool          `yaml:"listen"`
		RepairRate  *float64       `yaml:"repair_rate"`
		RepairBurst *int           `yaml:"repair_burst"`
	} `yaml:"watchdog"`
	Registry *struct {
		Path *string `yaml:"path"`
	} `yaml:"registry"`
	HTTP *struct {
		Addr *string `yaml:"addr"`
	} `yaml:"http"`
	Format  *string `yaml:"format"`
	Verbose *int    `yaml:"verbose"`
}

// loadFromFile applies an optional layer. Missing files are skipped and
// malformed ones are skipped with a warning.
func loadFromFile(cfg *Config, path string, source Source) {
	f, err := os.Open(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}
	defer f.Close()

	if err := decodeLayer(cfg, f, path, source); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
	}
}

// LoadFile applies an explicitly requested config file. Unlike the implicit
// layers, a missing or malformed file is an error.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path) //nolint:gosec // G304: Path is supplied by the user
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	if err := decodeLayer(cfg, f, path, SourceFile); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func decodeLayer(cfg *Config, r io.Reader, path string, source Source) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	set := func(name string) { cfg.Sources[name] = string(source) }

	if s := fc.Store; s != nil {
		if s.Backend != nil {
			cfg.Store.Backend = strings.ToLower(*s.Backend)
			set("store.backend")
		}
		if s.Dir != nil {
			cfg.Store.Dir = expandDir(*s.Dir, path)
			set("store.dir")
		}
		if s.MaxValueBytes != nil {
			cfg.Store.MaxValueBytes = *s.MaxValueBytes
			set("store.max_value_bytes")
		}
	}
	if w := fc.Watchdog; w != nil {
		if w.Enabled != nil {
			cfg.Watchdog.Enabled = *w.Enabled
			set("watchdog.enabled")
		}
		if w.Interval != nil {
			cfg.Watchdog.Interval = *w.Interval
			set("watchdog.interval")
		}
		if w.Listen != nil {
			cfg.Watchdog.Listen = *w.Listen
			set("watchdog.listen")
		}
		if w.RepairRate != nil {
			cfg.Watchdog.RepairRate = *w.RepairRate
			set("watchdog.repair_rate")
		}
		if w.RepairBurst != nil {
			cfg.Watchdog.RepairBurst = *w.RepairBurst
			set("watchdog.repair_burst")
		}
	}
	if r := fc.Registry; r != nil && r.Path != nil {
		cfg.Registry.Path = expandDir(*r.Path, path)
		set("registry.path")
	}
	if h := fc.HTTP; h != nil && h.Addr != nil {
		cfg.HTTP.Addr = *h.Addr
		set("http.addr")
	}
	if fc.Format != nil {
		cfg.Format = *fc.Format
		set("format")
	}
	if fc.Verbose != nil {
		v := *fc.Verbose
		cfg.Verbose = &v
		set("verbose")
	}
	return nil
}

// expandDir resolves ~ and makes relative paths relative to the config file
// that named them.
func expandDir(p, configPath string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) && configPath != "" {
		p = filepath.Join(filepath.Dir(configPath), p)
	}
	return p
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("STOREWATCH_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
		cfg.Sources["store.backend"] = string(SourceEnv)
	}
	if v := os.Getenv("STOREWATCH_DIR"); v != "" {
		cfg.Store.Dir = v
		cfg.Sources["store.dir"] = string(SourceEnv)
	}
	if v := os.Getenv("STOREWATCH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: STOREWATCH_INTERVAL: %v", ErrInvalid, err)
		}
		cfg.Watchdog.Interval = d
		cfg.Sources["watchdog.interval"] = string(SourceEnv)
	}
	if v := os.Getenv("STOREWATCH_LISTEN"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Watchdog.Listen = b
			cfg.Sources["watchdog.listen"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("STOREWATCH_ENABLED"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Watchdog.Enabled = b
			cfg.Sources["watchdog.enabled"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("STOREWATCH_REGISTRY"); v != "" {
		cfg.Registry.Path = v
		cfg.Sources["registry.path"] = string(SourceEnv)
	}
	if v := os.Getenv("STOREWATCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
		cfg.Sources["http.addr"] = string(SourceEnv)
	}
	if v := os.Getenv("STOREWATCH_MAX_VALUE_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: STOREWATCH_MAX_VALUE_BYTES: %v", ErrInvalid, err)
		}
		cfg.Store.MaxValueBytes = n
		cfg.Sources["store.max_value_bytes"] = string(SourceEnv)
	}
	return nil
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Backend != "" {
		cfg.Store.Backend = strings.ToLower(o.Backend)
		cfg.Sources["store.backend"] = string(SourceFlag)
	}
	if o.Dir != "" {
		cfg.Store.Dir = o.Dir
		cfg.Sources["store.dir"] = string(SourceFlag)
	}
	if o.Registry != "" {
		cfg.Registry.Path = o.Registry
		cfg.Sources["registry.path"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.HTTPAddr != "" {
		cfg.HTTP.Addr = o.HTTPAddr
		cfg.Sources["http.addr"] = string(SourceFlag)
	}
	if o.Interval > 0 {
		cfg.Watchdog.Interval = o.Interval
		cfg.Sources["watchdog.interval"] = string(SourceFlag)
	}
	if o.NoListen {
		cfg.Watchdog.Listen = false
		cfg.Sources["watchdog.listen"] = string(SourceFlag)
	}
}

// Validate checks the resolved configuration.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, fe.Value())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Source returns where the named value came from, "default" when unset.
func (cfg *Config) Source(name string) string {
	if s, ok := cfg.Sources[name]; ok {
		return s
	}
	return string(SourceDefault)
}

// Path helpers

func systemConfigPath() string {
	return filepath.Join("/etc", "storewatch", FileName)
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), FileName)
}

// localConfigPath returns ./.storewatch/config.yaml when it exists. Only the
// current directory is trusted; parents are not searched.
func localConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, ".storewatch", FileName)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "storewatch")
}
