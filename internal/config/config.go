package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/ransac"
)

// Config represents the complete configuration for the pano application.
// It includes settings for all commands (estimate, compose, run, batch, serve)
// and supports loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose"   yaml:"verbose"   json:"verbose"`

	Estimator EstimatorConfig `mapstructure:"estimator" yaml:"estimator" json:"estimator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"  json:"pipeline"`
	Output    OutputConfig    `mapstructure:"output"    yaml:"output"    json:"output"`
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"    json:"server"`
	Batch     BatchConfig     `mapstructure:"batch"     yaml:"batch"     json:"batch"`
}

// EstimatorConfig contains RANSAC settings.
type EstimatorConfig struct {
	MaxIterations   int     `mapstructure:"max_iterations"   yaml:"max_iterations"   json:"max_iterations"`
	InlierThreshold float64 `mapstructure:"inlier_threshold" yaml:"inlier_threshold" json:"inlier_threshold"`
	ConsensusRatio  float64 `mapstructure:"consensus_ratio"  yaml:"consensus_ratio"  json:"consensus_ratio"`
	Sampling        string  `mapstructure:"sampling"         yaml:"sampling"         json:"sampling"`
	Workers         int     `mapstructure:"workers"          yaml:"workers"          json:"workers"`
	Seed            int64   `mapstructure:"seed"             yaml:"seed"             json:"seed"`
}

// PipelineConfig contains sequence pipeline settings.
type PipelineConfig struct {
	// Reference image index; -1 selects automatically.
	Reference  int `mapstructure:"reference"   yaml:"reference"   json:"reference"`
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file"   yaml:"file"   json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int             `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"       yaml:"rate_limit"       json:"rate_limit"`
}

// RateLimitConfig contains per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled                  bool `mapstructure:"enabled"                     yaml:"enabled"                     json:"enabled"`
	RequestsPerMinute        int  `mapstructure:"requests_per_minute"         yaml:"requests_per_minute"         json:"requests_per_minute"`
	RequestsPerHour          int  `mapstructure:"requests_per_hour"           yaml:"requests_per_hour"           json:"requests_per_hour"`
	MaxRequestsPerDay        int  `mapstructure:"max_requests_per_day"        yaml:"max_requests_per_day"        json:"max_requests_per_day"`
	MaxCorrespondencesPerDay int  `mapstructure:"max_correspondences_per_day" yaml:"max_correspondences_per_day" json:"max_correspondences_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers"           yaml:"workers"           json:"workers"`
	OutputDir       string   `mapstructure:"output_dir"        yaml:"output_dir"        json:"output_dir"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool     `mapstructure:"recursive"         yaml:"recursive"         json:"recursive"`
	Include         []string `mapstructure:"include"           yaml:"include"           json:"include"`
	Exclude         []string `mapstructure:"exclude"           yaml:"exclude"           json:"exclude"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	est := ransac.DefaultConfig()
	return Config{
		LogLevel: "info",
		Estimator: EstimatorConfig{
			MaxIterations:   est.MaxIterations,
			InlierThreshold: est.Threshold,
			ConsensusRatio:  est.ConsensusRatio,
			Sampling:        string(est.Sampling),
			Workers:         est.Workers,
		},
		Pipeline: PipelineConfig{
			Reference:  pipeline.AutoReference,
			MaxWorkers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:                  false,
				RequestsPerMinute:        60,
				RequestsPerHour:          1000,
				MaxRequestsPerDay:        10000,
				MaxCorrespondencesPerDay: 5_000_000,
			},
		},
		Batch: BatchConfig{
			Workers: 4,
			Include: []string{"*.json", "*.yaml", "*.yml"},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"json", "yaml", "text", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := c.ToEstimatorConfig().Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if c.Pipeline.Reference < pipeline.AutoReference {
		return fmt.Errorf("invalid pipeline reference: %d (must be -1 or a valid image index)", c.Pipeline.Reference)
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("invalid pipeline max workers: %d (must be positive)", c.Pipeline.MaxWorkers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if err := c.Server.RateLimit.validate(); err != nil {
		return err
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

func (r RateLimitConfig) validate() error {
	limits := map[string]int{
		"requests_per_minute":         r.RequestsPerMinute,
		"requests_per_hour":           r.RequestsPerHour,
		"max_requests_per_day":        r.MaxRequestsPerDay,
		"max_correspondences_per_day": r.MaxCorrespondencesPerDay,
	}
	for name, v := range limits {
		if v < 0 {
			return fmt.Errorf("invalid rate_limit.%s: %d (must not be negative)", name, v)
		}
	}
	return nil
}

// ToEstimatorConfig converts to the ransac package configuration.
func (c *Config) ToEstimatorConfig() ransac.Config {
	return ransac.Config{
		MaxIterations:  c.Estimator.MaxIterations,
		Threshold:      c.Estimator.InlierThreshold,
		ConsensusRatio: c.Estimator.ConsensusRatio,
		Sampling:       ransac.Sampling(c.Estimator.Sampling),
		Workers:        c.Estimator.Workers,
	}
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Estimator: c.ToEstimatorConfig(),
		Seed:      c.Estimator.Seed,
		Reference: c.Pipeline.Reference,
		Parallel:  pipeline.ParallelConfig{MaxWorkers: c.Pipeline.MaxWorkers},
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
