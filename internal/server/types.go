// Package server exposes estimation and composition over HTTP and WebSocket.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipelineConfig pipeline.Config
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	rateLimiter    *RateLimiter
	logger         *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// RateLimitConfig mirrors the rate limit section of the configuration file.
type RateLimitConfig struct {
	Enabled                  bool
	RequestsPerMinute        int
	RequestsPerHour          int
	MaxRequestsPerDay        int
	MaxCorrespondencesPerDay int64
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// EstimateRequest is the body of POST /v1/estimate. Rows are [x, y, u, v].
type EstimateRequest struct {
	Correspondences [][]float64 `json:"correspondences"`
	Seed            *int64      `json:"seed,omitempty"`
	Threshold       *float64    `json:"threshold,omitempty"`
}

// EstimateResponse wraps a single pair estimate.
type EstimateResponse struct {
	Success bool                 `json:"success"`
	Result  *pipeline.PairResult `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// ComposeRequest is the body of POST /v1/compose.
type ComposeRequest = sequence.Chain

// ComposeResponse holds the composed transforms.
type ComposeResponse struct {
	Success    bool                      `json:"success"`
	Reference  int                       `json:"reference"`
	Transforms []pipeline.ImageTransform `json:"transforms,omitempty"`
	Canvas     *pipeline.Canvas          `json:"canvas,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// SequenceResponse wraps a full sequence result.
type SequenceResponse struct {
	Success bool             `json:"success"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new server instance.
func NewServer(config Config) (*Server, error) {
	if err := config.PipelineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	s := &Server{
		pipelineConfig: config.PipelineConfig,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		logger:         slog.Default().With("component", "server"),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 10
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxCorrespondencesPerDay)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/estimate", s.corsMiddleware(s.rateLimitMiddleware(s.estimateHandler)))
	mux.HandleFunc("/v1/compose", s.corsMiddleware(s.rateLimitMiddleware(s.composeHandler)))
	mux.HandleFunc("/v1/sequence", s.corsMiddleware(s.rateLimitMiddleware(s.sequenceHandler)))
	mux.HandleFunc("/v1/ws", s.rateLimitMiddleware(s.sequenceWebSocketHandler))
}

// Handler returns a ServeMux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
