package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ptapal/experimental-psychology/internal/rule"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region types
// Presenter kinds.
const (
	PresenterTerminal = "terminal"
	PresenterRemote   = "remote"
)

// Config is the full runtime configuration of a testing station.
type Config struct {
	DBPath           string        `yaml:"db_path"`
	Trials           int           `yaml:"trials"`
	ResponseTimeout  time.Duration `yaml:"response_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	FeedbackDuration time.Duration `yaml:"feedback_duration"`
	StreakThreshold  int           `yaml:"streak_threshold"`
	Seed             uint64        `yaml:"seed"` // 0 draws a fresh seed per session
	Presenter        string        `yaml:"presenter"`
	PresenterAddr    string        `yaml:"presenter_addr"`
	PresenterGrace   time.Duration `yaml:"presenter_grace"`
	MetricsAddr      string        `yaml:"metrics_addr"` // empty disables the metrics server
	LogLevel         string        `yaml:"log_level"`
	LogJSON          bool          `yaml:"log_json"`
}

// #endregion types

// #region defaults
// Default returns the standard administration parameters.
func Default() Config {
	sess := session.DefaultConfig()
	return Config{
		DBPath:           "wcst.db",
		Trials:           sess.Trials,
		ResponseTimeout:  sess.ResponseTimeout,
		PollInterval:     sess.PollInterval,
		FeedbackDuration: time.Second,
		StreakThreshold:  rule.DefaultConfig().Threshold,
		Presenter:        PresenterTerminal,
		PresenterAddr:    "localhost:50061",
		PresenterGrace:   2 * time.Second,
		MetricsAddr:      "",
		LogLevel:         "info",
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults, then applies WCST_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBPath = envOr("WCST_DB_PATH", c.DBPath)
	c.Presenter = envOr("WCST_PRESENTER", c.Presenter)
	c.PresenterAddr = envOr("WCST_PRESENTER_ADDR", c.PresenterAddr)
	c.MetricsAddr = envOr("WCST_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = envOr("WCST_LOG_LEVEL", c.LogLevel)

	var errs []error
	envInt(&errs, "WCST_TRIALS", &c.Trials)
	envInt(&errs, "WCST_STREAK_THRESHOLD", &c.StreakThreshold)
	envDuration(&errs, "WCST_RESPONSE_TIMEOUT", &c.ResponseTimeout)
	envDuration(&errs, "WCST_POLL_INTERVAL", &c.PollInterval)
	envDuration(&errs, "WCST_FEEDBACK_DURATION", &c.FeedbackDuration)
	envDuration(&errs, "WCST_PRESENTER_GRACE", &c.PresenterGrace)
	if v := os.Getenv("WCST_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("WCST_SEED: %w", err))
		}
		c.Seed = seed
	}
	if v := os.Getenv("WCST_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WCST_LOG_JSON: %w", err))
		}
		c.LogJSON = b
	}
	return errors.Join(errs...)
}

// #endregion load

// #region validate
// Validate rejects configurations the session runner cannot execute.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trials must be positive, got %d", c.Trials))
	}
	if c.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("response_timeout must be positive, got %s", c.ResponseTimeout))
	}
	if c.PollInterval <= 0 || c.PollInterval > c.ResponseTimeout {
		errs = append(errs, fmt.Errorf("poll_interval must be in (0, response_timeout], got %s", c.PollInterval))
	}
	if c.FeedbackDuration < 0 {
		errs = append(errs, fmt.Errorf("feedback_duration must not be negative, got %s", c.FeedbackDuration))
	}
	if c.StreakThreshold <= 0 {
		errs = append(errs, fmt.Errorf("streak_threshold must be positive, got %d", c.StreakThreshold))
	}
	switch c.Presenter {
	case PresenterTerminal:
	case PresenterRemote:
		if c.PresenterAddr == "" {
			errs = append(errs, errors.New("presenter_addr is required for the remote presenter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown presenter %q", c.Presenter))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region conversions
// SessionConfig returns the runner parameters.
func (c Config) SessionConfig() session.Config {
	sc := session.Config{
		Trials:          c.Trials,
		ResponseTimeout: c.ResponseTimeout,
		PollInterval:    c.PollInterval,
	}
	if c.Presenter == PresenterRemote {
		sc.ResponseGrace = c.PresenterGrace
	}
	return sc
}

// RuleConfig returns the engine parameters.
func (c Config) RuleConfig() rule.Config {
	return rule.Config{Threshold: c.StreakThreshold}
}

// #endregion conversions

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(errs *[]error, key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func envDuration(errs *[]error, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// #endregion helpers
