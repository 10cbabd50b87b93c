package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/pipeline"
	"github.com/BilalWohlig/labelwipe/internal/restore"
	"github.com/BilalWohlig/labelwipe/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// fieldsHandler returns the supported field types, their label variants and
// the possible masking strategies.
func (s *Server) fieldsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	variants := make(map[string][]string, len(fields.LabelVariants))
	for t, vs := range fields.LabelVariants {
		variants[string(t)] = vs
	}
	response := FieldsResponse{
		SupportedFieldTypes:       supportedFieldTypes(),
		LabelVariants:             variants,
		PossibleMaskingStrategies: possibleStrategies(),
	}
	writeJSON(w, http.StatusOK, response)
}

// processImageHandler runs the full masking workflow for one stored image.
func (s *Server) processImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(apperr.Validation, "server.processImage", "invalid JSON body", err))
		return
	}

	start := time.Now()
	res, err := s.workflow.Run(r.Context(), req, nil)
	duration := time.Since(start)

	if err != nil {
		workflowRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeError(w, err)
		return
	}
	workflowRequestsTotal.WithLabelValues("http", "success").Inc()
	workflowDuration.WithLabelValues("http").Observe(duration.Seconds())
	fieldsDetected.Observe(float64(len(res.AutoDetectedFields)))

	writeJSON(w, http.StatusOK, res)
}

// restoreDetailHandler recombines an original/mask/inpainted triple and
// streams back the restored PNG.
func (s *Server) restoreDetailHandler(w http.ResponseWriter, r *http.Request) {
	const op = "server.restoreDetail"

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, apperr.Wrap(apperr.Validation, op, "failed to parse form data", err))
		return
	}

	original, err := readFormFile(r, "original")
	if err != nil {
		s.writeError(w, err)
		return
	}
	mask, err := readFormFile(r, "mask")
	if err != nil {
		s.writeError(w, err)
		return
	}
	inpainted, err := readFormFile(r, "inpainted")
	if err != nil {
		s.writeError(w, err)
		return
	}
	uploadSizeBytes.Observe(float64(len(original) + len(mask) + len(inpainted)))

	opts, err := parseRestoreOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := time.Now()
	restored, err := restore.Restore(original, mask, inpainted, opts)
	if err != nil {
		workflowRequestsTotal.WithLabelValues("restore", "error").Inc()
		s.writeError(w, err)
		return
	}
	workflowRequestsTotal.WithLabelValues("restore", "success").Inc()
	workflowDuration.WithLabelValues("restore").Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="restored.png"`)
	if _, err := w.Write(restored); err != nil {
		slog.Error("failed to write restored image", "error", err)
	}
}

// parseRestoreOptions reads the optional tuning form values.
func parseRestoreOptions(r *http.Request) (restore.Options, error) {
	const op = "server.restoreDetail"

	opts := restore.DefaultOptions()
	if v := r.FormValue("featherRadius"); v != "" {
		radius, err := strconv.Atoi(v)
		if err != nil || radius < 0 {
			return opts, apperr.New(apperr.Validation, op, "featherRadius must be a non-negative integer")
		}
		opts.FeatherRadius = radius
	}
	mode, err := restore.ParseBlendMode(r.FormValue("blendMode"))
	if err != nil {
		return opts, apperr.Wrap(apperr.Validation, op, "invalid blendMode", err)
	}
	opts.BlendMode = mode
	channel, err := restore.ParseMaskChannel(r.FormValue("maskChannel"))
	if err != nil {
		return opts, apperr.Wrap(apperr.Validation, op, "invalid maskChannel", err)
	}
	opts.MaskChannel = channel
	return opts, nil
}

func readFormFile(r *http.Request, name string) ([]byte, error) {
	const op = "server.restoreDetail"

	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, apperr.New(apperr.Validation, op, "missing file "+strconv.Quote(name))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to read file "+strconv.Quote(name), err)
	}
	return data, nil
}

// writeError maps a classified error onto its HTTP status and structured
// payload.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		slog.Error("request failed", "errorType", string(kind), "error", err)
	} else {
		slog.Warn("request rejected", "errorType", string(kind), "error", err)
	}

	message := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
		if ae.Err != nil {
			message += ": " + ae.Err.Error()
		}
	}

	writeJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: string(kind),
		Metadata: ErrorMetadata{
			SupportedFieldTypes:       supportedFieldTypes(),
			PossibleMaskingStrategies: possibleStrategies(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func supportedFieldTypes() []string {
	out := make([]string, 0, len(fields.AllTypes))
	for _, t := range fields.AllTypes {
		out = append(out, string(t))
	}
	return out
}

func possibleStrategies() []string {
	out := make([]string, 0, len(fields.PossibleStrategies))
	for _, st := range fields.PossibleStrategies {
		out = append(out, string(st))
	}
	return out
}
