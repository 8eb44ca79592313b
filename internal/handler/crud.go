package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/response"
)

// Store is the generic persistence surface behind a Resource.
// *repository.Table implements it.
type Store[T any] interface {
	List(ctx context.Context, q repository.ListQuery) (*repository.Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	FindBy(ctx context.Context, field, value string, scope map[string]string) ([]*T, error)
	Exists(ctx context.Context, field, value string, scope map[string]string) (bool, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id string) error
	BulkCreate(ctx context.Context, items []*T) error
	BulkUpdate(ctx context.Context, items []*T) error
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}

var _ Store[struct{}] = (*repository.Table[struct{}])(nil)

// reservedListKeys are query parameters that never become filters.
var reservedListKeys = map[string]bool{"page": true, "limit": true, "sort": true, "select": true}

var (
	errResourceNotFound = apperror.NotFound(apperror.MsgResourceNotFound)
	errInvalidField     = apperror.BadRequest("Invalid lookup field")
)

// ResourceConfig configures a Resource.
type ResourceConfig[T any] struct {
	// Param is the chi URL parameter carrying the id. Defaults to "id".
	Param string
	// Missing is the store's not-found sentinel; it is answered with 404.
	Missing error
	// SetID assigns the URL id to a decoded body before Update.
	SetID func(item *T, id string)
	// Scope returns equality filters forced onto every list and lookup
	// query, typically the caller's ownership.
	Scope func(r *http.Request) (map[string]string, error)
}

// Resource exposes generic create, list, read, update, delete and bulk
// endpoints over a Store.
type Resource[T any] struct {
	store  Store[T]
	cfg    ResourceConfig[T]
	errors response.ErrorWriter
}

// NewResource creates a Resource over store.
func NewResource[T any](store Store[T], errs response.ErrorWriter, cfg ResourceConfig[T]) *Resource[T] {
	if cfg.Param == "" {
		cfg.Param = "id"
	}
	if cfg.Missing == nil {
		cfg.Missing = repository.ErrNotFound
	}
	return &Resource[T]{store: store, cfg: cfg, errors: errs}
}

// ParseListQuery reads page, limit and sort from the query string. Every
// other parameter becomes an equality filter; the store ignores filters on
// fields it does not know.
func ParseListQuery(r *http.Request) repository.ListQuery {
	values := r.URL.Query()
	q := repository.ListQuery{
		Page:    atoiOr(values.Get("page"), repository.DefaultPage),
		Limit:   atoiOr(values.Get("limit"), repository.DefaultLimit),
		Sort:    strings.TrimSpace(values.Get("sort")),
		Filters: make(map[string]string),
	}
	for key, vals := range values {
		if reservedListKeys[key] || len(vals) == 0 {
			continue
		}
		q.Filters[key] = vals[0]
	}
	q.Normalize()
	return q
}

func atoiOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func (h *Resource[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, h.cfg.Missing):
		err = errResourceNotFound
	case errors.Is(err, repository.ErrUnknownField):
		err = errInvalidField
	}
	h.errors.Write(w, r, err)
}

func (h *Resource[T]) scope(r *http.Request) (map[string]string, error) {
	if h.cfg.Scope == nil {
		return nil, nil
	}
	return h.cfg.Scope(r)
}

// lookupParams reads {field}/{value}. matchable is false when the value
// contradicts the scope, in which case nothing can match.
func (h *Resource[T]) lookupParams(r *http.Request, scope map[string]string) (field, value string, matchable bool) {
	field, value = chi.URLParam(r, "field"), chi.URLParam(r, "value")
	if scoped, ok := scope[field]; ok && scoped != value {
		return field, value, false
	}
	return field, value, true
}

// List returns one page with pagination meta.
//
// GET /
func (h *Resource[T]) List(w http.ResponseWriter, r *http.Request) {
	q := ParseListQuery(r)
	scope, err := h.scope(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	for k, v := range scope {
		q.Filters[k] = v
	}

	page, err := h.store.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []*T{}
	}
	response.Paginated(w, items, page.Page, page.Limit, page.Total)
}

// Get returns one item by id.
//
// GET /{id}
func (h *Resource[T]) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.Get(r.Context(), chi.URLParam(r, h.cfg.Param))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, item, "")
}

// GetByField returns every item in scope whose field equals value.
//
// GET /by/{field}/{value}
func (h *Resource[T]) GetByField(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var items []*T
	if field, value, ok := h.lookupParams(r, scope); ok {
		items, err = h.store.FindBy(r.Context(), field, value, scope)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if items == nil {
		items = []*T{}
	}
	response.Success(w, http.StatusOK, items, "")
}

// Exists reports whether any item in scope has field equal to value.
//
// GET /exists/{field}/{value}
func (h *Resource[T]) Exists(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scope(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	found := false
	if field, value, ok := h.lookupParams(r, scope); ok {
		found, err = h.store.Exists(r.Context(), field, value, scope)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	response.Success(w, http.StatusOK, map[string]bool{"exists": found}, "")
}

// Create inserts the decoded body.
//
// POST /
func (h *Resource[T]) Create(w http.ResponseWriter, r *http.Request) {
	item := new(T)
	if err := decodeJSON(r, item); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.store.Create(r.Context(), item); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, item, "Resource created successfully")
}

// Update overwrites the item named by the URL with the decoded body.
//
// PUT /{id}
func (h *Resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	item := new(T)
	if err := decodeJSON(r, item); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if h.cfg.SetID != nil {
		h.cfg.SetID(item, chi.URLParam(r, h.cfg.Param))
	}
	if err := h.store.Update(r.Context(), item); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, item, "Resource updated successfully")
}

// Delete removes the item named by the URL.
//
// DELETE /{id}
func (h *Resource[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, h.cfg.Param)); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Resource deleted successfully")
}

// BulkCreate inserts every item of a JSON array.
//
// POST /bulk
func (h *Resource[T]) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var items []*T
	if err := decodeJSON(r, &items); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.store.BulkCreate(r.Context(), items); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, items, "Resources created successfully")
}

// BulkUpdate overwrites every item of a JSON array.
//
// PUT /bulk
func (h *Resource[T]) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var items []*T
	if err := decodeJSON(r, &items); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.store.BulkUpdate(r.Context(), items); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, items, "Resources updated successfully")
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDelete removes every id in {"ids": [...]}.
//
// DELETE /bulk
func (h *Resource[T]) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	n, err := h.store.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]int64{"deleted": n}, "Resources deleted successfully")
}

// Routes mounts every generic endpoint on a new router.
func (h *Resource[T]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.BulkCreate)
	r.Put("/bulk", h.BulkUpdate)
	r.Delete("/bulk", h.BulkDelete)
	r.Get("/by/{field}/{value}", h.GetByField)
	r.Get("/exists/{field}/{value}", h.Exists)
	r.Get("/{"+h.cfg.Param+"}", h.Get)
	r.Put("/{"+h.cfg.Param+"}", h.Update)
	r.Delete("/{"+h.cfg.Param+"}", h.Delete)
	return r
}
