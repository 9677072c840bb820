package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every implicit config location at empty temp dirs and
// clears STOREWATCH_* variables.
func isolate(t *testing.T) (global, cwd string) {
	t.Helper()
	root := t.TempDir()
	global = filepath.Join(root, "xdg")
	cwd = filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(cwd, 0o755))

	t.Setenv("XDG_CONFIG_HOME", global)
	for _, name := range []string{
		"STOREWATCH_BACKEND", "STOREWATCH_DIR", "STOREWATCH_INTERVAL",
		"STOREWATCH_LISTEN", "STOREWATCH_ENABLED", "STOREWATCH_REGISTRY",
		"STOREWATCH_HTTP_ADDR", "STOREWATCH_MAX_VALUE_BYTES",
	} {
		t.Setenv(name, "")
	}
	t.Chdir(cwd)
	return global, cwd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.True(t, cfg.Watchdog.Enabled)
	assert.True(t, cfg.Watchdog.Listen)
	assert.Equal(t, 10*time.Second, cfg.Watchdog.Interval)
	assert.Equal(t, "auto", cfg.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultsOnly(t *testing.T) {
	isolate(t)

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "default", cfg.Source("store.backend"))
}

func TestLoadPrecedence(t *testing.T) {
	global, cwd := isolate(t)

	writeFile(t, filepath.Join(global, "storewatch", FileName), `
store:
  backend: sqlite
  max_value_bytes: 1024
watchdog:
  interval: 30s
format: json
`)
	writeFile(t, filepath.Join(cwd, ".storewatch", FileName), `
store:
  backend: badger
watchdog:
  listen: false
`)
	t.Setenv("STOREWATCH_INTERVAL", "5s")

	cfg, err := Load(FlagOverrides{Format: "quiet"})
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "local", cfg.Source("store.backend"))
	assert.Equal(t, 1024, cfg.Store.MaxValueBytes)
	assert.Equal(t, "global", cfg.Source("store.max_value_bytes"))
	assert.False(t, cfg.Watchdog.Listen)
	assert.Equal(t, 5*time.Second, cfg.Watchdog.Interval)
	assert.Equal(t, "env", cfg.Source("watchdog.interval"))
	assert.Equal(t, "quiet", cfg.Format)
	assert.Equal(t, "flag", cfg.Source("format"))
}

func TestLoadExplicitFile(t *testing.T) {
	_, cwd := isolate(t)
	path := filepath.Join(cwd, "conf", "watch.yaml")
	writeFile(t, path, `
store:
  dir: data
registry:
  path: records.yaml
http:
  addr: 127.0.0.1:9090
verbose: 1
`)

	cfg, err := Load(FlagOverrides{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cwd, "conf", "data"), cfg.Store.Dir, "relative to the config file")
	assert.Equal(t, filepath.Join(cwd, "conf", "records.yaml"), cfg.Registry.Path)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	require.NotNil(t, cfg.Verbose)
	assert.Equal(t, 1, *cfg.Verbose)
	assert.Equal(t, "file", cfg.Source("http.addr"))
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, cwd := isolate(t)

	_, err := Load(FlagOverrides{ConfigFile: filepath.Join(cwd, "nope.yaml")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadExplicitFileUnknownField(t *testing.T) {
	_, cwd := isolate(t)
	path := filepath.Join(cwd, "bad.yaml")
	writeFile(t, path, "store:\n  backnd: file\n")

	_, err := Load(FlagOverrides{ConfigFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backnd")
}

func TestMalformedImplicitLayerSkipped(t *testing.T) {
	global, _ := isolate(t)
	writeFile(t, filepath.Join(global, "storewatch", FileName), "store: [unterminated")

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestEmptyFileIsFine(t *testing.T) {
	_, cwd := isolate(t)
	path := filepath.Join(cwd, "empty.yaml")
	writeFile(t, path, "")

	_, err := Load(FlagOverrides{ConfigFile: path})
	require.NoError(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("STOREWATCH_BACKEND", "SQLite")
	t.Setenv("STOREWATCH_DIR", "/var/lib/storewatch")
	t.Setenv("STOREWATCH_LISTEN", "off")
	t.Setenv("STOREWATCH_ENABLED", "maybe")
	t.Setenv("STOREWATCH_REGISTRY", "/etc/records.yaml")
	t.Setenv("STOREWATCH_HTTP_ADDR", ":8080")
	t.Setenv("STOREWATCH_MAX_VALUE_BYTES", "2048")

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/storewatch", cfg.Store.Dir)
	assert.False(t, cfg.Watchdog.Listen)
	assert.True(t, cfg.Watchdog.Enabled, "unrecognized bools are ignored")
	assert.Equal(t, "/etc/records.yaml", cfg.Registry.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2048, cfg.Store.MaxValueBytes)
}

func TestLoadFromEnvBadValues(t *testing.T) {
	isolate(t)
	t.Setenv("STOREWATCH_INTERVAL", "soon")

	_, err := Load(FlagOverrides{})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{
		Backend:  "Memory",
		Dir:      "/tmp/x",
		Registry: "r.yaml",
		HTTPAddr: ":1",
		Interval: time.Minute,
		NoListen: true,
	})

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "/tmp/x", cfg.Store.Dir)
	assert.Equal(t, "r.yaml", cfg.Registry.Path)
	assert.Equal(t, ":1", cfg.HTTP.Addr)
	assert.Equal(t, time.Minute, cfg.Watchdog.Interval)
	assert.False(t, cfg.Watchdog.Listen)
	for _, k := range []string{"store.backend", "store.dir", "registry.path", "http.addr", "watchdog.interval", "watchdog.listen"} {
		assert.Equal(t, "flag", cfg.Source(k), k)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Store.Backend = "redis" }, "Store.Backend must be one of"},
		{"interval", func(c *Config) { c.Watchdog.Interval = 0 }, "Watchdog.Interval must be greater than 0"},
		{"negative quota", func(c *Config) { c.Store.MaxValueBytes = -1 }, "Store.MaxValueBytes"},
		{"format", func(c *Config) { c.Format = "xml" }, "Format must be one of"},
		{"addr", func(c *Config) { c.HTTP.Addr = "localhost" }, "HTTP.Addr must be host:port"},
		{"verbose", func(c *Config) { v := 3; c.Verbose = &v }, "Verbose must be at most 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	isolate(t)
	_, err := Load(FlagOverrides{Backend: "redis"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestGlobalConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom")
	assert.Equal(t, filepath.Join("/custom", "storewatch"), GlobalConfigDir())
}

func TestExpandDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), expandDir("~/data", "/etc/storewatch/config.yaml"))
	assert.Equal(t, "/abs", expandDir("/abs", "/etc/storewatch/config.yaml"))
	assert.Equal(t, "/etc/storewatch/rel", expandDir("rel", "/etc/storewatch/config.yaml"))
	assert.Equal(t, "", expandDir("", "/x"))
}
