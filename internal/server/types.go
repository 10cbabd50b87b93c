// Package server exposes the label-masking workflow over HTTP: the
// processImage and restoreDetail endpoints, a websocket progress variant,
// health and diagnostic endpoints, and Prometheus metrics.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BilalWohlig/labelwipe/internal/pipeline"
)

// workflowRunner is the slice of the pipeline the server needs.
type workflowRunner interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	workflow    workflowRunner
	corsOrigin  string
	maxUploadMB int64
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// Rate limiting is disabled when all limits are zero.
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDayMB   int64
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// FieldsResponse is the /fields payload describing what the detector can
// find. The same data rides along in error metadata.
type FieldsResponse struct {
	SupportedFieldTypes       []string            `json:"supportedFieldTypes"`
	LabelVariants             map[string][]string `json:"labelVariants"`
	PossibleMaskingStrategies []string            `json:"possibleMaskingStrategies"`
}

// ErrorResponse is the structured failure payload for all endpoints.
type ErrorResponse struct {
	Success   bool          `json:"success"`
	Error     string        `json:"error"`
	ErrorType string        `json:"errorType"`
	Metadata  ErrorMetadata `json:"metadata"`
}

// ErrorMetadata carries static diagnostic context with every failure.
type ErrorMetadata struct {
	SupportedFieldTypes       []string `json:"supportedFieldTypes"`
	PossibleMaskingStrategies []string `json:"possibleMaskingStrategies"`
}

// NewServer creates a server around an assembled workflow.
func NewServer(workflow workflowRunner, config Config) *Server {
	s := &Server{
		workflow:    workflow,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if config.RequestsPerMinute > 0 || config.RequestsPerHour > 0 ||
		config.MaxRequestsPerDay > 0 || config.MaxDataPerDayMB > 0 {
		s.rateLimiter = NewRateLimiter(
			config.RequestsPerMinute,
			config.RequestsPerHour,
			config.MaxRequestsPerDay,
			config.MaxDataPerDayMB*1024*1024,
		)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/fields", s.corsMiddleware(s.fieldsHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ocr/processImage", s.corsMiddleware(s.rateLimitMiddleware(s.processImageHandler)))
	mux.HandleFunc("/ocr/restoreDetail", s.corsMiddleware(s.rateLimitMiddleware(s.restoreDetailHandler)))
	mux.HandleFunc("/ocr/progress", s.progressWebSocketHandler)
}
