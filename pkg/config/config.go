// Package config loads and validates the tagwatch configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tagwatch/tagwatch/pkg/classify"
)

// Config is the full tagwatch configuration.
type Config struct {
	LogLevel        string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	CredentialsFile string `yaml:"credentials_file" validate:"required"`
	MappingFile     string `yaml:"mapping_file" validate:"required"`
	StateFile       string `yaml:"state_file" validate:"required"`
	ReportFile      string `yaml:"report_file"`
	// MetricsListen exposes /metrics for the duration of a run when set,
	// e.g. ":9464". Empty disables the endpoint.
	MetricsListen string `yaml:"metrics_listen"`

	Annotation AnnotationConfig `yaml:"annotation"`
	Impact     classify.Policy  `yaml:"impact"`
	Events     EventsConfig     `yaml:"events"`
	History    HistoryConfig    `yaml:"history"`
	Explorer   ExplorerConfig   `yaml:"explorer"`
}

// AnnotationConfig controls annotation posting.
type AnnotationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig selects the analysis-event transport. Endpoint is the listen
// or dial address of the pub socket, e.g. tcp://127.0.0.1:5563.
type EventsConfig struct {
	Transport string `yaml:"transport" validate:"omitempty,oneof=none nng zmq"`
	Endpoint  string `yaml:"endpoint"`
}

// HistoryConfig enables the Postgres run-history store when DSN is set.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// ExplorerConfig configures the graph explorer server.
type ExplorerConfig struct {
	Listen string `yaml:"listen"`
	// PasswordBcrypt is a bcrypt hash; when set, requests must present it via
	// basic auth. Plain-text passwords are never stored.
	PasswordBcrypt string `yaml:"password_bcrypt"`
	User           string `yaml:"user"`
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		CredentialsFile: "credentials.json",
		MappingFile:     "gtm_ga4_mapping.csv",
		StateFile:       "last_versions.json.sz",
		ReportFile:      "tagwatch_report.json",
		Annotation:      AnnotationConfig{Enabled: true},
		Impact:          classify.DefaultPolicy(),
		Events:          EventsConfig{Transport: "none"},
		Explorer:        ExplorerConfig{Listen: ":8632"},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct constraints plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Events.Transport != "" && c.Events.Transport != "none" && c.Events.Endpoint == "" {
		return fmt.Errorf("events.endpoint: required when events.transport is %q", c.Events.Transport)
	}
	if c.Impact.MaxVisitedNodes < 0 {
		return fmt.Errorf("impact.max_visited_nodes: must not be negative")
	}
	return nil
}
