package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/pano/internal/chain"
	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/MeKo-Tech/pano/internal/homography"
	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/ransac"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/MeKo-Tech/pano/internal/version"
)

// errBadRequest marks request problems that are the client's fault.
var errBadRequest = errors.New("bad request")

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// estimateHandler runs RANSAC on a single correspondence set.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req EstimateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	seq := &sequence.Sequence{Pairs: []sequence.Pair{{Correspondences: req.Correspondences}}}
	set, err := seq.Correspondences(0)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.consumeQuota(w, r, int64(len(set))) {
		return
	}

	cfg := s.pipelineConfig
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Threshold != nil {
		cfg.Estimator.Threshold = *req.Threshold
	}
	if err := cfg.Validate(); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := pipeline.New(cfg, pipeline.WithLogger(s.log())).EstimatePair(ctx, 0, set)
	estimationDuration.WithLabelValues("estimate").Observe(time.Since(start).Seconds())
	if err != nil {
		estimationsTotal.WithLabelValues("estimate", "error").Inc()
		s.writeErrorResponse(w, "Estimation failed: "+err.Error(), statusForError(err))
		return
	}
	estimationsTotal.WithLabelValues("estimate", "success").Inc()
	observePair(*res)

	s.writeJSON(w, http.StatusOK, EstimateResponse{Success: true, Result: res})
}

// composeHandler chains pairwise homographies into the reference frame.
func (s *Server) composeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := sequence.ParseChain(body, requestFormat(r))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := pipeline.ComposeChain(req, pipeline.AutoReference)
	if err != nil {
		compositionFailures.Inc()
		s.writeErrorResponse(w, "Composition failed: "+err.Error(), statusForError(err))
		return
	}

	resp := ComposeResponse{Success: true, Reference: res.Reference, Transforms: res.Transforms, Canvas: res.Canvas}
	s.writeJSON(w, http.StatusOK, resp)
}

// sequenceHandler runs the full pipeline on a sequence document.
func (s *Server) sequenceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	seq, err := sequence.Parse(body, requestFormat(r))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.consumeQuota(w, r, sequenceSize(seq)) {
		return
	}

	cfg, err := s.configFromQuery(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.runSequence(ctx, cfg, seq, "sequence")
	if err != nil {
		s.writeErrorResponse(w, "Processing failed: "+err.Error(), statusForError(err))
		return
	}

	format := r.URL.Query().Get("format")
	switch strings.ToLower(format) {
	case "", "json":
		s.writeJSON(w, http.StatusOK, SequenceResponse{Success: true, Result: res})
	default:
		out, err := pipeline.Format(res, format)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentTypeFor(format))
		_, _ = io.WriteString(w, out)
	}
}

// runSequence processes seq and records metrics under the given endpoint label.
func (s *Server) runSequence(ctx context.Context, cfg pipeline.Config, seq *sequence.Sequence, endpoint string, opts ...pipeline.Option) (*pipeline.Result, error) {
	opts = append([]pipeline.Option{pipeline.WithLogger(s.log())}, opts...)
	start := time.Now()
	res, err := pipeline.New(cfg, opts...).Process(ctx, seq)
	estimationDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		estimationsTotal.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, geometry.ErrSingularMatrix) || errors.Is(err, chain.ErrInvalidReference) {
			compositionFailures.Inc()
		}
		return nil, err
	}
	estimationsTotal.WithLabelValues(endpoint, "success").Inc()
	for _, p := range res.Pairs {
		observePair(p)
	}
	return res, nil
}

// configFromQuery applies seed and reference query parameters.
func (s *Server) configFromQuery(r *http.Request) (pipeline.Config, error) {
	cfg := s.pipelineConfig
	q := r.URL.Query()
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid seed %q", errBadRequest, v)
		}
		cfg.Seed = seed
	}
	if v := q.Get("reference"); v != "" {
		ref, err := strconv.Atoi(v)
		if err != nil || ref < 0 {
			return cfg, fmt.Errorf("%w: invalid reference %q", errBadRequest, v)
		}
		cfg.Reference = ref
	}
	return cfg, nil
}

// readBody reads a size-limited request body, writing the error response
// itself when it fails.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		}
		return nil, false
	}
	requestBodyBytes.Observe(float64(len(body)))
	return body, true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return s.requestContextFrom(r.Context())
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, sequence.ErrInvalidSequence),
		errors.Is(err, chain.ErrInvalidReference),
		errors.Is(err, homography.ErrInsufficientCorrespondences):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ransac.ErrNoConsensus),
		errors.Is(err, geometry.ErrSingularMatrix),
		errors.Is(err, pipeline.ErrUnboundedCanvas):
		return http.StatusUnprocessableEntity
	default:
		var pe *pipeline.PairError
		if errors.As(err, &pe) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

// requestFormat selects YAML for YAML content types and JSON otherwise.
func requestFormat(r *http.Request) sequence.Format {
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return sequence.FormatYAML
	}
	return sequence.FormatJSON
}

func contentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv"
	case "yaml", "yml":
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

func sequenceSize(seq *sequence.Sequence) int64 {
	var n int64
	for _, p := range seq.Pairs {
		n += int64(len(p.Correspondences))
	}
	return n
}

// writeJSON writes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
