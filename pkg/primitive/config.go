package primitive

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/chazu/gcdeform/pkg/deform"
	"github.com/chazu/gcdeform/pkg/skeleton"
)

// Config holds the tunables of a primitive. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	CageScale     float64 `toml:"cage_scale"`     // ring inflation of the cage
	CageSides     int     `toml:"cage_sides"`     // samples per cage ring
	DeltaScale    float64 `toml:"delta_scale"`    // step factor for interactive grow and shrink
	SpineSamples  int     `toml:"spine_samples"`  // minimum spine points when fitting
	SmoothPasses  int     `toml:"smooth_passes"`  // spine low-pass iterations
	DefaultRadius float64 `toml:"default_radius"` // last-resort cross-section radius
	Deformer      string  `toml:"deformer"`       // "skinning" or "green"
	Workers       int     `toml:"workers"`        // reconstruction goroutines
	LogLevel      string  `toml:"log_level"`      // debug, info, warn or error
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		CageScale:     1.3,
		CageSides:     6,
		DeltaScale:    1.3,
		SpineSamples:  10,
		SmoothPasses:  3,
		DefaultRadius: 1.0,
		Deformer:      deform.Skinning.String(),
		Workers:       1,
		LogLevel:      "info",
	}
}

// ParseConfig decodes TOML on top of DefaultConfig. Keys that are absent
// keep their default; unknown keys are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and decodes a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// Encode renders the config as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Mode returns the deformation mode named by Deformer.
func (c Config) Mode() (deform.Mode, error) {
	return deform.ParseMode(c.Deformer)
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c Config) skeletonOptions() skeleton.Options {
	opts := skeleton.DefaultOptions()
	opts.Samples = c.SpineSamples
	opts.SmoothPasses = c.SmoothPasses
	opts.DefaultRadius = c.DefaultRadius
	opts.Logger = Logger()
	return opts
}

// ValidationSeverity indicates whether a finding makes the config
// unusable or is advisory.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // config is rejected
	SeverityWarning                           // config is used as is
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single config finding.
type ValidationError struct {
	Field    string
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Field, e.Message)
}

// Validate checks every field and returns all findings. An empty slice
// means the config is valid. Validate never mutates c.
func (c Config) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	warn := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
	}

	switch {
	case c.CageScale <= 1:
		fail("cage_scale", "must be greater than 1 for the cage to enclose the surface, got %g", c.CageScale)
	case c.CageSides >= 3 && c.CageScale*math.Cos(math.Pi/float64(c.CageSides)) <= 1:
		// The flat faces of an n-sided ring sit at scale*cos(pi/n) of the radius.
		fail("cage_scale", "%g leaves the faces of a %d-sided cage inside the surface, need more than %.4g",
			c.CageScale, c.CageSides, 1/math.Cos(math.Pi/float64(c.CageSides)))
	case c.CageScale > 3:
		warn("cage_scale", "%g gives a loose cage and weak local control", c.CageScale)
	}
	switch {
	case c.CageSides < 3:
		fail("cage_sides", "must be at least 3, got %d", c.CageSides)
	case c.CageSides > 64:
		warn("cage_sides", "%d sides make Green coordinates slow to bind", c.CageSides)
	}
	if c.DeltaScale <= 0 {
		fail("delta_scale", "must be positive, got %g", c.DeltaScale)
	}
	if c.SpineSamples < 2 {
		fail("spine_samples", "must be at least 2, got %d", c.SpineSamples)
	}
	if c.SmoothPasses < 0 {
		fail("smooth_passes", "must not be negative, got %d", c.SmoothPasses)
	}
	if c.DefaultRadius <= 0 {
		fail("default_radius", "must be positive, got %g", c.DefaultRadius)
	}
	if _, err := c.Mode(); err != nil {
		fail("deformer", "%v", err)
	}
	switch {
	case c.Workers < 1:
		fail("workers", "must be at least 1, got %d", c.Workers)
	case c.Workers > runtime.NumCPU():
		warn("workers", "%d exceeds the %d available CPUs", c.Workers, runtime.NumCPU())
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); c.LogLevel != "" && err != nil {
		warn("log_level", "unknown level %q, using info", c.LogLevel)
	}
	return errs
}

// check joins the error-severity findings of Validate.
func (c Config) check() error {
	var errs []error
	for _, v := range c.Validate() {
		if v.Severity == SeverityError {
			errs = append(errs, v)
		}
	}
	return errors.Join(errs...)
}
