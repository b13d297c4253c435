package primitive

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/gcdeform/pkg/deform"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())
	assert.NoError(t, cfg.check())

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, deform.Skinning, mode)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestParseConfig(t *testing.T) {
	t.Run("partial document keeps defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("cage_sides = 8\ndeformer = \"green\"\nlog_level = \"debug\"\n"))
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.CageSides)
		assert.Equal(t, "green", cfg.Deformer)
		assert.Equal(t, slog.LevelDebug, cfg.Level())
		assert.Equal(t, 1.3, cfg.CageScale)
		assert.Equal(t, 10, cfg.SpineSamples)
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := ParseConfig([]byte("cage_colour = \"red\"\n"))
		assert.Error(t, err)
	})
	t.Run("wrong type", func(t *testing.T) {
		_, err := ParseConfig([]byte("cage_sides = \"six\"\n"))
		assert.Error(t, err)
	})
	t.Run("encode round trip", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CageScale = 1.75
		cfg.Workers = 2
		data, err := cfg.Encode()
		require.NoError(t, err)
		assert.Contains(t, string(data), "cage_scale")

		back, err := ParseConfig(data)
		require.NoError(t, err)
		assert.Equal(t, cfg, back)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gcfit.toml")
	require.NoError(t, os.WriteFile(path, []byte("spine_samples = 24\nsmooth_passes = 0\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.SpineSamples)
	assert.Equal(t, 0, cfg.SmoothPasses)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		severity ValidationSeverity
	}{
		{"tight cage", func(c *Config) { c.CageScale = 1 }, "cage_scale", SeverityError},
		{"triangle cage inside surface", func(c *Config) { c.CageSides = 3 }, "cage_scale", SeverityError},
		{"square cage inside surface", func(c *Config) { c.CageSides, c.CageScale = 4, 1.4 }, "cage_scale", SeverityError},
		{"square cage enclosing", func(c *Config) { c.CageSides, c.CageScale = 4, 1.5 }, "", 0},
		{"loose cage", func(c *Config) { c.CageScale = 4 }, "cage_scale", SeverityWarning},
		{"too few sides", func(c *Config) { c.CageSides = 2 }, "cage_sides", SeverityError},
		{"many sides", func(c *Config) { c.CageSides = 100 }, "cage_sides", SeverityWarning},
		{"zero delta", func(c *Config) { c.DeltaScale = 0 }, "delta_scale", SeverityError},
		{"one sample", func(c *Config) { c.SpineSamples = 1 }, "spine_samples", SeverityError},
		{"negative smoothing", func(c *Config) { c.SmoothPasses = -1 }, "smooth_passes", SeverityError},
		{"zero radius", func(c *Config) { c.DefaultRadius = 0 }, "default_radius", SeverityError},
		{"unknown deformer", func(c *Config) { c.Deformer = "mls" }, "deformer", SeverityError},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers", SeverityError},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level", SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if tt.field == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.severity, errs[0].Severity)
			if tt.severity == SeverityWarning {
				assert.NoError(t, cfg.check())
			} else {
				assert.Error(t, cfg.check())
			}
		})
	}
}

func TestValidationSeverityString(t *testing.T) {
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "ValidationSeverity(5)", ValidationSeverity(5).String())
}
