package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/fetch"
	"github.com/maltedev/product-extractor/internal/models"
)

const maxRequestBytes = 1 << 20

// Service is the extraction pipeline behind the API. *extractor.Service satisfies it.
type Service interface {
	ExtractProduct(ctx context.Context, url string) (*models.CanonicalProduct, error)
	ScrapeImages(ctx context.Context, url string) ([]models.ExtractedImage, error)
	BuildArchive(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error)
}

// OutboxStats reports the event backlog for the health endpoint. *database.Relay satisfies it.
type OutboxStats interface {
	Stats(ctx context.Context) (database.OutboxStats, error)
}

type Handlers struct {
	service Service
	outbox  OutboxStats
	logger  *slog.Logger
}

// NewHandlers wires the handlers. outbox may be nil when events are disabled.
func NewHandlers(service Service, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		service: service,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
	}
}

type URLRequest struct {
	URL string `json:"url"`
}

type ImagesResponse struct {
	URL    string                  `json:"url"`
	Count  int                     `json:"count"`
	Images []models.ExtractedImage `json:"images"`
}

// ArchiveRequest selects the images to pack. When Images is empty the page at
// URL is scraped first; Limit keeps the first N images.
type ArchiveRequest struct {
	URL    string                  `json:"url,omitempty"`
	Images []models.ExtractedImage `json:"images,omitempty"`
	Limit  int                     `json:"limit,omitempty"`
}

// ExtractProduct handles POST /api/v1/extract.
func (h *Handlers) ExtractProduct(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	product, err := h.service.ExtractProduct(r.Context(), req.URL)
	if err != nil {
		h.fail(w, "failed to extract product", req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ScrapeImages handles POST /api/v1/images.
func (h *Handlers) ScrapeImages(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	images, err := h.service.ScrapeImages(r.Context(), req.URL)
	if err != nil {
		h.fail(w, "failed to scrape images", req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ImagesResponse{URL: req.URL, Count: len(images), Images: images})
}

// BuildArchive handles POST /api/v1/archive and streams the ZIP back.
func (h *Handlers) BuildArchive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Images) == 0 && strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "images or url is required")
		return
	}
	if req.Limit < 0 {
		h.respondError(w, http.StatusBadRequest, "limit cannot be negative")
		return
	}

	images := req.Images
	if len(images) == 0 {
		scraped, err := h.service.ScrapeImages(r.Context(), req.URL)
		if err != nil {
			h.fail(w, "failed to scrape images", req.URL, err)
			return
		}
		images = scraped
	}
	if req.Limit > 0 && len(images) > req.Limit {
		images = images[:req.Limit]
	}

	result, err := h.service.BuildArchive(r.Context(), images)
	if err != nil {
		h.fail(w, "failed to build archive", req.URL, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, result.Folder))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Archive-Files", strconv.Itoa(len(result.Filenames)))
	w.Header().Set("X-Failed-Count", strconv.Itoa(result.Failed))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.logger.Error("failed to write archive", "archive_id", result.ID, "error", err)
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}

	if h.outbox != nil {
		stats, err := h.outbox.Stats(r.Context())
		if err != nil {
			h.logger.Warn("failed to read outbox stats", "error", err)
			health["status"] = "degraded"
			health["message"] = "outbox unavailable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}

		health["outbox"] = stats
		if stats.Pending > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if stats.DeadLetter > 100 {
			health["status"] = "warning"
			health["message"] = "High number of dead letter events"
		}
	}

	h.respondJSON(w, http.StatusOK, health)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) fail(w http.ResponseWriter, msg, url string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "url", url, "status", status, "error", err)
	} else {
		h.logger.Warn(msg, "url", url, "status", status, "error", err)
	}
	h.respondError(w, status, err.Error())
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extractor.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, fetch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, fetch.ErrForbidden), errors.Is(err, fetch.ErrAllTransportsExhausted):
		return http.StatusBadGateway
	case errors.Is(err, extractor.ErrExtractionIncomplete),
		errors.Is(err, extractor.ErrNoImagesFound),
		errors.Is(err, archive.ErrArchiveEmpty):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
