// Package config loads barprep settings from a YAML file, BARPREP_*
// environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "BARPREP_"

// DateLayout is the layout of exam dates.
const DateLayout = "2006-01-02"

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	DB        DBConfig        `koanf:"db"`
	User      UserConfig      `koanf:"user"`
	Exam      ExamConfig      `koanf:"exam"`
	Sources   SourcesConfig   `koanf:"sources"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Log       LogConfig       `koanf:"log"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type UserConfig struct {
	ID string `koanf:"id" validate:"required,max=64"`
}

type ExamConfig struct {
	// Date of the exam as YYYY-MM-DD. Empty means no exam is scheduled.
	Date string `koanf:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SourcesConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type SchedulerConfig struct {
	MatureInterval int     `koanf:"mature_interval" validate:"gte=1"`
	MinEasiness    float64 `koanf:"min_easiness" validate:"gte=1.3"`
	SecondInterval int     `koanf:"second_interval" validate:"gte=1"`
}

type AnalyzerConfig struct {
	WeakThreshold    float64 `koanf:"weak_threshold" validate:"gte=0,lte=100"`
	HighWorkload     int     `koanf:"high_workload" validate:"gte=0"`
	LowRetention     float64 `koanf:"low_retention" validate:"gte=0,lte=100"`
	LowEasiness      float64 `koanf:"low_easiness" validate:"gte=0"`
	MaxFocusSubjects int     `koanf:"max_focus_subjects" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// ExamDate parses the configured exam date in loc. ok is false when no
// date is configured.
func (c Config) ExamDate(loc *time.Location) (date time.Time, ok bool, err error) {
	if c.Exam.Date == "" {
		return time.Time{}, false, nil
	}
	date, err = time.ParseInLocation(DateLayout, c.Exam.Date, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse exam date %q: %w", c.Exam.Date, err)
	}
	return date, true, nil
}

// Flags returns a flag set declaring every setting with its default value.
// Flag names map onto config keys by replacing the first '-' with '.'
// and the rest with '_' (e.g. --scheduler-mature-interval sets
// scheduler.mature_interval).
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db-path", "barprep.db", "Path to the SQLite database file")
	fs.String("user-id", "default", "Identifier of the studying user")
	fs.String("exam-date", "", "Exam date as YYYY-MM-DD")
	fs.String("sources-repos-dir", "repos", "Directory git sources are cloned into")
	fs.Int("scheduler-mature-interval", 21, "Interval in days from which a card is mature")
	fs.Float64("scheduler-min-easiness", 1.3, "Lowest easiness factor a card can reach (at least 1.3)")
	fs.Int("scheduler-second-interval", 6, "Interval in days after the second successful review")
	fs.Float64("analyzer-weak-threshold", 60, "Subject accuracy (%) below which a subject is weak")
	fs.Int("analyzer-high-workload", 50, "Due cards above which a workload warning is given")
	fs.Float64("analyzer-low-retention", 70, "Retention (%) below which a retention warning is given")
	fs.Float64("analyzer-low-easiness", 2.0, "Mean easiness below which a difficulty warning is given")
	fs.Int("analyzer-max-focus-subjects", 3, "Weak subjects named in a focus suggestion")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-format", "text", "Log format: text or json")
	return fs
}

func flagKey(name string) string {
	section, rest, ok := strings.Cut(name, "-")
	if !ok {
		return name
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load reads configuration for an already parsed flag set returned by
// Flags. The config file is taken from --config, then BARPREP_CONFIG.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys that are still missing.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		return flagKey(f.Name), posflag.FlagVal(fs, f)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger builds the application logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
