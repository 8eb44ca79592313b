package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/presskit/presskit/internal/analytics"
	"github.com/presskit/presskit/internal/handler/dto"
	"github.com/presskit/presskit/internal/middleware"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
)

// ContactService is the inquiry surface used by ContactHandler.
// *service.ContactService implements it.
type ContactService interface {
	Submit(ctx context.Context, epkID string, in service.SubmitInput) (*model.ContactInquiry, error)
	List(ctx context.Context, userID string, in service.ListInput) (*repository.Page[model.ContactInquiry], error)
	Stats(ctx context.Context, userID string) (*model.InquiryStats, error)
	UpdateStatus(ctx context.Context, userID, id, status, note string) (*model.ContactInquiry, error)
	Respond(ctx context.Context, userID, id, message string) (*model.ContactInquiry, error)
	AddNote(ctx context.Context, userID, id, content string) (*model.ContactInquiry, error)
}

var _ ContactService = (*service.ContactService)(nil)

// ContactHandler handles inquiry submission and the owner's inbox.
type ContactHandler struct {
	svc    ContactService
	errors response.ErrorWriter
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(svc ContactService, errs response.ErrorWriter, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{svc: svc, errors: errs, logger: componentLogger(logger, "contact")}
}

// Submit handles POST /epks/{epkId}/contact. No authentication is required.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.InquiryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	meta := model.InquiryMetadata{
		UserAgent: analytics.TruncateUserAgent(r.UserAgent()),
		IPAddress: middleware.GetClientIP(r),
		Referrer:  analytics.SanitizeReferrer(r.Referer()),
	}
	inquiry, err := h.svc.Submit(r.Context(), chi.URLParam(r, "epkId"), req.ToInput(meta))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, inquiry, "Inquiry sent successfully")
}

// List handles GET /contact/inquiries?page=&limit=&status=&type=.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	query := r.URL.Query()
	in := service.ListInput{
		Status: query.Get("status"),
		Type:   query.Get("type"),
		Page:   atoiOr(query.Get("page"), repository.DefaultPage),
		Limit:  atoiOr(query.Get("limit"), repository.DefaultLimit),
	}

	page, err := h.svc.List(r.Context(), p.UserID(), in)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []*model.ContactInquiry{}
	}
	response.Paginated(w, items, page.Page, page.Limit, page.Total)
}

// Stats handles GET /contact/stats.
func (h *ContactHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(r.Context(), p.UserID())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, stats, "")
}

// UpdateStatus handles PATCH /contact/{id}/status.
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.InquiryStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	inquiry, err := h.svc.UpdateStatus(r.Context(), p.UserID(), chi.URLParam(r, "id"), req.Status, req.Note)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, inquiry, "Inquiry status updated")
}

// Respond handles POST /contact/{id}/respond.
func (h *ContactHandler) Respond(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	inquiry, err := h.svc.Respond(r.Context(), p.UserID(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	h.logger.Info("inquiry_responded", "inquiry_id", inquiry.ID, "user_id", p.UserID())
	response.Success(w, http.StatusOK, inquiry, "Response sent successfully")
}

// AddNote handles POST /contact/{id}/notes.
func (h *ContactHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	inquiry, err := h.svc.AddNote(r.Context(), p.UserID(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, inquiry, "Note added successfully")
}
