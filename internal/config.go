package internal

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tuannm99/novaframe/internal/alloc"
	"github.com/tuannm99/novaframe/internal/tz"
)

const EnvPrefix = "NOVAFRAME"

type NovaFrameConfig struct {
	Timezone struct {
		Strategy  string `mapstructure:"strategy"`
		CacheSize int    `mapstructure:"cache_size"`
	} `mapstructure:"timezone"`

	Index struct {
		ReservedKey string `mapstructure:"reserved_key"`
	} `mapstructure:"index"`

	Alloc struct {
		MaxBytes string `mapstructure:"max_bytes"`
	} `mapstructure:"alloc"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone.strategy", tz.SafeFill.String())
	v.SetDefault("timezone.cache_size", tz.DefaultCacheSize)
	v.SetDefault("index.reserved_key", alloc.DefaultIndexKey)
	v.SetDefault("alloc.max_bytes", "0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads the YAML file at path from fs. An empty path uses
// defaults only. Environment variables (NOVAFRAME_TIMEZONE_STRATEGY, ...)
// override the file, and flags whose names match config keys override both.
func LoadConfig(fs afero.Fs, path string, flags *pflag.FlagSet) (*NovaFrameConfig, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg NovaFrameConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// AllocConfig converts the file form into allocator settings.
func (c *NovaFrameConfig) AllocConfig() (alloc.Config, error) {
	strategy, err := tz.ParseStrategy(c.Timezone.Strategy)
	if err != nil {
		return alloc.Config{}, err
	}
	var maxBytes datasize.ByteSize
	if s := strings.TrimSpace(c.Alloc.MaxBytes); s != "" {
		if err := maxBytes.UnmarshalText([]byte(s)); err != nil {
			return alloc.Config{}, fmt.Errorf("alloc.max_bytes: %w", err)
		}
	}
	return alloc.Config{
		Strategy:      strategy,
		IndexKey:      c.Index.ReservedKey,
		MaxBytes:      int64(maxBytes.Bytes()),
		ZoneCacheSize: c.Timezone.CacheSize,
	}, nil
}

// Logger builds the process logger described by the log section.
func (c *NovaFrameConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
}
