package internal

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaframe/internal/tz"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(afero.NewMemMapFs(), "", nil)
	require.NoError(t, err)
	require.Equal(t, "safe-fill", cfg.Timezone.Strategy)
	require.Equal(t, "index", cfg.Index.ReservedKey)

	ac, err := cfg.AllocConfig()
	require.NoError(t, err)
	require.Equal(t, tz.SafeFill, ac.Strategy)
	require.Equal(t, tz.DefaultCacheSize, ac.ZoneCacheSize)
	require.Zero(t, ac.MaxBytes)
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/novaframe.yaml", []byte(`
timezone:
  strategy: deferred
  cache_size: 8
index:
  reserved_key: idx
alloc:
  max_bytes: 64MB
log:
  level: debug
  format: json
`), 0o644))

	t.Setenv("NOVAFRAME_TIMEZONE_CACHE_SIZE", "16")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.format", "text", "")
	require.NoError(t, flags.Parse([]string{"--log.format=text"}))

	cfg, err := LoadConfig(fs, "/etc/novaframe.yaml", flags)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Timezone.CacheSize)
	require.Equal(t, "text", cfg.Log.Format)

	ac, err := cfg.AllocConfig()
	require.NoError(t, err)
	require.Equal(t, tz.Deferred, ac.Strategy)
	require.Equal(t, "idx", ac.IndexKey)
	require.Equal(t, int64(64<<20), ac.MaxBytes)

	var out bytes.Buffer
	logger, err := cfg.Logger(&out)
	require.NoError(t, err)
	logger.Debug("hello")
	require.Contains(t, out.String(), "level=DEBUG")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(afero.NewMemMapFs(), "/missing.yaml", nil)
	require.Error(t, err)

	cfg, err := LoadConfig(afero.NewMemMapFs(), "", nil)
	require.NoError(t, err)

	cfg.Timezone.Strategy = "eager"
	_, err = cfg.AllocConfig()
	require.Error(t, err)

	cfg.Timezone.Strategy = ""
	cfg.Alloc.MaxBytes = "lots"
	_, err = cfg.AllocConfig()
	require.Error(t, err)

	cfg.Log.Format = "xml"
	_, err = cfg.Logger(&bytes.Buffer{})
	require.Error(t, err)
}
