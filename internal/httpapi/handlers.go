package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/comfforts/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/pkg/domain"
)

const maxUploadSize = 1 << 20

// Classifier is what the handlers need from the loaded pipeline.
type Classifier interface {
	Classify(ctx context.Context, text string) (*domain.Prediction, error)
	Ready() error
}

type classifyRequest struct {
	Text string `json:"text" validate:"required"`
}

type predictionResponse struct {
	RequestID    string                `json:"request_id"`
	TopLabel     string                `json:"top_label"`
	Confidence   float64               `json:"confidence"`
	Band         domain.ConfidenceBand `json:"band"`
	Distribution []domain.Score        `json:"distribution"`
}

type labelResponse struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	log      logger.Logger
	svc      Classifier
	validate *validator.Validate
}

func newHandlers(log logger.Logger, svc Classifier) *handlers {
	return &handlers{log: log, svc: svc, validate: validator.New()}
}

func toResponse(p *domain.Prediction) predictionResponse {
	return predictionResponse{
		RequestID:    uuid.NewString(),
		TopLabel:     p.TopLabel,
		Confidence:   p.Confidence,
		Band:         p.Band,
		Distribution: p.Distribution,
	}
}

// classifyStatus maps a classification failure onto an HTTP status.
func classifyStatus(err error) int {
	switch {
	case errors.Is(err, triage.ErrNotLoaded), errors.Is(err, triage.ErrLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		Fail(h.log, w, "invalid request body", err, http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := h.validate.Struct(req); err != nil {
		Fail(h.log, w, "text is required", nil, http.StatusBadRequest)
		return
	}

	h.respond(w, r, req.Text)
}

func (h *handlers) classifyFile(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadSize {
		Fail(h.log, w, fmt.Sprintf("file too large (max %d bytes)", maxUploadSize), nil, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		Fail(h.log, w, "file is required", err, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		Fail(h.log, w, fmt.Sprintf("file too large (max %d bytes)", maxUploadSize), nil, http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".txt" && ext != ".pdf" {
		Fail(h.log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		Fail(h.log, w, "failed to read file", err, http.StatusInternalServerError)
		return
	}
	text, err := extractText(header.Filename, content)
	if err != nil {
		Fail(h.log, w, "failed to extract text", err, http.StatusBadRequest)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		Fail(h.log, w, "file contains no text", nil, http.StatusBadRequest)
		return
	}

	h.respond(w, r, text)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, text string) {
	pred, err := h.svc.Classify(r.Context(), text)
	if err != nil {
		Fail(h.log, w, "classification failed", err, classifyStatus(err))
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(pred))
}

func (h *handlers) labels(w http.ResponseWriter, r *http.Request) {
	names := domain.DepartmentRegistry().Names()
	out := make([]labelResponse, len(names))
	for i, n := range names {
		out[i] = labelResponse{ID: i, Label: n}
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		h.log.Warn("healthz write failed", "error", err.Error())
	}
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Ready()
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	case errors.Is(err, triage.ErrNotLoaded):
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	default:
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "failed", "error": err.Error()})
	}
}
