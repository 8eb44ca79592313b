package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/presskit/presskit/internal/analytics"
	"github.com/presskit/presskit/internal/handler/dto"
	"github.com/presskit/presskit/internal/middleware"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
	"github.com/presskit/presskit/internal/upload"
)

// Multipart field names accepted for media uploads.
var mediaFields = []string{"files", "file"}

// EPKService is the EPK surface used by EPKHandler.
// *service.EPKService implements it.
type EPKService interface {
	Create(ctx context.Context, user *model.User, in service.EPKInput) (*model.EPK, error)
	Get(ctx context.Context, userID, id string) (*model.EPK, error)
	Update(ctx context.Context, userID, id string, in service.EPKInput) (*model.EPK, error)
	Delete(ctx context.Context, userID, id string) error
	GetBySlug(ctx context.Context, slug string, v service.Visit) ([]byte, error)
	TrackInteraction(ctx context.Context, epkID string, interaction model.InteractionType) error
	Analytics(ctx context.Context, userID, id string) (*model.AnalyticsReport, error)
	UploadMedia(ctx context.Context, userID, id string, kind model.MediaKind, category string, files []upload.File) ([]model.MediaAsset, error)
	DeleteMedia(ctx context.Context, userID, id string, kind model.MediaKind, assetID string) error
}

var _ EPKService = (*service.EPKService)(nil)

// EPKHandler handles EPK management, public pages and media.
type EPKHandler struct {
	svc    EPKService
	limits upload.Limits
	errors response.ErrorWriter
	logger *slog.Logger
}

// NewEPKHandler creates a new EPKHandler.
func NewEPKHandler(svc EPKService, limits upload.Limits, errs response.ErrorWriter, logger *slog.Logger) *EPKHandler {
	return &EPKHandler{svc: svc, limits: limits, errors: errs, logger: componentLogger(logger, "epk")}
}

// OwnerScope restricts generic list queries to the caller's EPKs.
func OwnerScope(r *http.Request) (map[string]string, error) {
	p := principalFrom(r)
	if p == nil {
		return nil, errNotAuthorized
	}
	return map[string]string{"userId": p.UserID()}, nil
}

// Create handles POST /epks.
func (h *EPKHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.EPKRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	epk, err := h.svc.Create(r.Context(), p.User, req.ToInput())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, epk, "EPK created successfully")
}

// Get handles GET /epks/{id}.
func (h *EPKHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	epk, err := h.svc.Get(r.Context(), p.UserID(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, epk, "")
}

// Update handles PUT /epks/{id}.
func (h *EPKHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.EPKRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	epk, err := h.svc.Update(r.Context(), p.UserID(), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, epk, "EPK updated successfully")
}

// Delete handles DELETE /epks/{id}.
func (h *EPKHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), p.UserID(), chi.URLParam(r, "id")); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "EPK deleted successfully")
}

// GetBySlug handles GET /epks/slug/{slug}. The cached page bytes are
// embedded in the envelope without re-encoding.
func (h *EPKHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"), visitFrom(r))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, json.RawMessage(data), "")
}

// TrackInteraction handles POST /epks/{id}/interactions.
func (h *EPKHandler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	var req dto.InteractionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.svc.TrackInteraction(r.Context(), chi.URLParam(r, "id"), req.Type); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Interaction recorded")
}

// Analytics handles GET /epks/{id}/analytics.
func (h *EPKHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	report, err := h.svc.Analytics(r.Context(), p.UserID(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, report, "")
}

// UploadMedia handles POST /epks/{id}/media?type=image|audio|document&category=.
// The type defaults to image.
func (h *EPKHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}

	kind := model.MediaKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if kind == "" {
		kind = model.MediaImage
	}
	if !kind.IsValid() {
		h.errors.Write(w, r, service.ErrInvalidMediaKind)
		return
	}

	files, err := upload.Parse(w, r, h.limits, mediaFields...)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" && r.MultipartForm != nil {
		if vals := r.MultipartForm.Value["category"]; len(vals) > 0 {
			category = vals[0]
		}
	}

	id := chi.URLParam(r, "id")
	assets, err := h.svc.UploadMedia(r.Context(), p.UserID(), id, kind, category, files)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	h.logger.Info("media_uploaded", "epk_id", id, "type", kind, "count", len(assets))
	response.Success(w, http.StatusOK, assets, "Files uploaded successfully")
}

// DeleteMedia handles DELETE /epks/{id}/media.
func (h *EPKHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.DeleteMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	if req.Type == "" {
		req.Type = model.MediaImage
	}
	if err := h.svc.DeleteMedia(r.Context(), p.UserID(), chi.URLParam(r, "id"), req.Type, req.Asset()); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "File deleted successfully")
}

// visitFrom extracts the sanitized visitor attributes of a request.
func visitFrom(r *http.Request) service.Visit {
	return service.Visit{
		IP:        middleware.GetClientIP(r),
		UserAgent: analytics.TruncateUserAgent(r.UserAgent()),
		Referrer:  analytics.SanitizeReferrer(r.Referer()),
		Country:   analytics.ExtractCountryCode(r.Header.Get("CF-IPCountry")),
	}
}
