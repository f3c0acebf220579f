package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OnError selects what the batch pipeline does with rows that fail to convert
type OnError string

const (
	OnErrorFail OnError = "fail" // abort the batch
	OnErrorSkip OnError = "skip" // drop the row
	OnErrorKeep OnError = "keep" // write the row with its error status
)

// ParseOnError parses an error policy name
func ParseOnError(s string) (OnError, error) {
	switch p := OnError(strings.ToLower(strings.TrimSpace(s))); p {
	case OnErrorFail, OnErrorSkip, OnErrorKeep:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported error policy: %s (supported: fail, skip, keep)", s)
	}
}

func (p OnError) String() string { return string(p) }

// Set implements pflag.Value
func (p *OnError) Set(s string) error {
	v, err := ParseOnError(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value
func (p *OnError) Type() string { return "policy" }

// Config holds the global configuration for conversions
type Config struct {
	// Grid settings
	TKY2JGDPath  string `yaml:"tky2jgd"`  // TKY2JGD.par or compiled grid
	PatchJGDPath string `yaml:"patchjgd"` // touhokutaiheiyouoki2011.par or compiled grid
	StrictGrid   bool   `yaml:"strict_grid"`

	// Inverse iteration
	InverseTolerance float64 `yaml:"inverse_tolerance"` // arc-seconds
	MaxIterations    int     `yaml:"max_iterations"`

	// Batch settings
	Workers   int     `yaml:"workers"`
	BatchSize int     `yaml:"batch_size"`
	OnError   OnError `yaml:"on_error"`

	// Database settings
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBSchema   string `yaml:"db_schema"`
	DBTable    string `yaml:"db_table"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"` // empty = no file logging
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TKY2JGDPath:      "TKY2JGD.par",
		PatchJGDPath:     "touhokutaiheiyouoki2011.par",
		InverseTolerance: 1e-5,
		MaxIterations:    10,
		Workers:          runtime.NumCPU(),
		BatchSize:        10000,
		OnError:          OnErrorFail,
		DBHost:           "localhost",
		DBPort:           5432,
		DBName:           "gis",
		DBUser:           "postgres",
		DBSchema:         "public",
		DBTable:          "jgd_points",
		MetricsInterval:  30 * time.Second,
	}
}

// LoadFile overlays settings from a YAML file. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.OnError != "" {
		policy, err := ParseOnError(string(c.OnError))
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		c.OnError = policy
	}
	return nil
}

// envVars maps JGD_* variables to their setters
var envVars = map[string]func(c *Config, v string) error{
	"JGD_TKY2JGD":  func(c *Config, v string) error { c.TKY2JGDPath = v; return nil },
	"JGD_PATCHJGD": func(c *Config, v string) error { c.PatchJGDPath = v; return nil },
	"JGD_STRICT_GRID": func(c *Config, v string) (err error) {
		c.StrictGrid, err = strconv.ParseBool(v)
		return err
	},
	"JGD_INVERSE_TOLERANCE": func(c *Config, v string) (err error) {
		c.InverseTolerance, err = strconv.ParseFloat(v, 64)
		return err
	},
	"JGD_MAX_ITERATIONS": func(c *Config, v string) (err error) {
		c.MaxIterations, err = strconv.Atoi(v)
		return err
	},
	"JGD_WORKERS": func(c *Config, v string) (err error) {
		c.Workers, err = strconv.Atoi(v)
		return err
	},
	"JGD_BATCH_SIZE": func(c *Config, v string) (err error) {
		c.BatchSize, err = strconv.Atoi(v)
		return err
	},
	"JGD_ON_ERROR": func(c *Config, v string) (err error) {
		c.OnError, err = ParseOnError(v)
		return err
	},
	"JGD_DB_HOST": func(c *Config, v string) error { c.DBHost = v; return nil },
	"JGD_DB_PORT": func(c *Config, v string) (err error) {
		c.DBPort, err = strconv.Atoi(v)
		return err
	},
	"JGD_DB_NAME":     func(c *Config, v string) error { c.DBName = v; return nil },
	"JGD_DB_USER":     func(c *Config, v string) error { c.DBUser = v; return nil },
	"JGD_DB_PASSWORD": func(c *Config, v string) error { c.DBPassword = v; return nil },
	"JGD_DB_SCHEMA":   func(c *Config, v string) error { c.DBSchema = v; return nil },
	"JGD_DB_TABLE":    func(c *Config, v string) error { c.DBTable = v; return nil },
	"JGD_VERBOSE": func(c *Config, v string) (err error) {
		c.Verbose, err = strconv.ParseBool(v)
		return err
	},
	"JGD_LOG_FILE": func(c *Config, v string) error { c.LogFile = v; return nil },
	"JGD_METRICS_INTERVAL": func(c *Config, v string) (err error) {
		c.MetricsInterval, err = time.ParseDuration(v)
		return err
	},
}

// LoadEnv overlays JGD_* environment variables. Any given .env files are
// loaded first; missing files are ignored and variables already set in
// the environment take precedence over them.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	for name, set := range envVars {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", name, v, err)
		}
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.TKY2JGDPath == "" && c.PatchJGDPath == "" {
		return fmt.Errorf("at least one grid file is required")
	}
	if c.InverseTolerance <= 0 {
		return fmt.Errorf("inverse tolerance must be positive")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if _, err := ParseOnError(string(c.OnError)); err != nil {
		return err
	}
	return nil
}
