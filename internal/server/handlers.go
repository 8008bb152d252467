package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiocards/internal/archive"
	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/job"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/transcript"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.Service
	validator *validator.Validate
	logger    *slog.Logger
	target    loudness.Target
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDefaultTarget sets the loudness target used when a normalize request
// leaves it out.
func WithDefaultTarget(t loudness.Target) HandlerOption {
	return func(h *Handlers) {
		h.target = t
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
		target:    loudness.DefaultTarget(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Normalize handles POST /jobs/normalize requests.
func (h *Handlers) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	target := h.target
	if req.TargetLUFS != nil {
		target.IntegratedLUFS = *req.TargetLUFS
	}
	if req.PeakDBTP != nil {
		target.TruePeakDBTP = *req.PeakDBTP
	}

	created, err := h.service.SubmitNormalize(r.Context(), job.NormalizeInput{
		Audio:    decodeBase64(req.AudioBase64),
		Target:   target,
		PushToS3: req.PushToS3,
	})
	h.created(w, created, err)
}

// Cut handles POST /jobs/cut requests.
func (h *Handlers) Cut(w http.ResponseWriter, r *http.Request) {
	var req CutRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.service.SubmitCut(r.Context(), job.CutInput{
		Audio:       decodeBase64(req.AudioBase64),
		SourceJobID: req.SourceJobID,
		Transcript:  decodeBase64(req.TranscriptBase64),
		Suffix:      req.Suffix,
		PushToS3:    req.PushToS3,
	})
	h.created(w, created, err)
}

// Join handles POST /jobs/join requests.
func (h *Handlers) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !h.decode(w, r, &req) {
		return
	}

	var files []archive.Entry
	for _, f := range req.Files {
		files = append(files, archive.Entry{Name: f.Name, Data: decodeBase64(f.DataBase64)})
	}

	created, err := h.service.SubmitJoin(r.Context(), job.JoinInput{
		Files:       files,
		SourceJobID: req.SourceJobID,
		Mode:        audio.Mode(req.Mode),
		Suffix:      req.Suffix,
		PushToS3:    req.PushToS3,
	})
	h.created(w, created, err)
}

// Anki handles POST /jobs/anki requests.
func (h *Handlers) Anki(w http.ResponseWriter, r *http.Request) {
	var req AnkiRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.service.SubmitAnki(r.Context(), job.AnkiInput{
		Table:       decodeBase64(req.TableBase64),
		FileNames:   req.FileNames,
		SourceJobID: req.SourceJobID,
		PushToS3:    req.PushToS3,
	})
	h.created(w, created, err)
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// GetArtifact handles GET /jobs/{id}/artifact requests by streaming the
// output file of a completed job.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	artifact, rc, err := h.service.OpenArtifact(r.Context(), jobID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("failed to stream artifact",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// CancelJob handles DELETE /jobs/{id} requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		h.serviceError(w, err)
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// decode reads and validates a JSON body into req. It writes the error
// response and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "PAYLOAD_TOO_LARGE")
			return false
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// created writes the 202 response for a submitted job.
func (h *Handlers) created(w http.ResponseWriter, j *job.Job, err error) {
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     j.ID,
		Kind:   string(j.Kind),
		Status: string(j.Status),
	})
}

// serviceError maps job service errors to HTTP responses.
func (h *Handlers) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobNotCompleted):
		writeError(w, http.StatusConflict, err.Error(), "JOB_NOT_COMPLETED")
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "job already finished", "JOB_FINISHED")
	case errors.Is(err, job.ErrMissingInput),
		errors.Is(err, job.ErrSourceKind),
		errors.Is(err, audio.ErrInvalidMode),
		errors.Is(err, loudness.ErrInvalidTarget),
		errors.Is(err, transcript.ErrInvalidSuffix):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	default:
		h.logger.Error("job request failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// toJobResponse converts a job to its HTTP representation.
func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Progress:    j.Progress,
		Error:       j.Error,
		SourceJobID: j.SourceJobID,
		CreatedAt:   j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if j.Status == job.StatusCompleted {
		resp.FileName = j.Output.FileName
		resp.ContentType = j.Output.ContentType
		resp.Size = j.Output.Size
		resp.Names = j.Output.Names
		resp.URL = j.Output.URL
	}
	return resp
}

// decodeBase64 decodes a base64 string the validator has already accepted.
func decodeBase64(s string) []byte {
	if s == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return data
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
