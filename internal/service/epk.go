package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/presskit/presskit/internal/analytics"
	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/storage"
	"github.com/presskit/presskit/internal/upload"
)

// EPK errors surfaced to clients.
var (
	ErrEPKNotFound        = apperror.NotFound("EPK not found")
	ErrEPKUpdateForbidden = apperror.Forbidden("Not authorized to update this EPK")
	ErrEPKDeleteForbidden = apperror.Forbidden("Not authorized to delete this EPK")
	ErrEPKViewForbidden   = apperror.Forbidden("Not authorized to access this EPK")
	ErrAnalyticsForbidden = apperror.Forbidden("Not authorized to view these analytics")
	ErrInvalidMediaKind   = apperror.BadRequest("Invalid media type. Use image, audio or document")
	ErrMediaIDRequired    = apperror.BadRequest("Asset ID is required")
	ErrInvalidInteraction = apperror.BadRequest("Invalid interaction type")
)

const (
	msgMediaUploadFailed   = "Failed to upload file"
	msgMediaDeleteFailed   = "Failed to delete file"
	maxTitleLength         = 100
	maxMetaDescriptionSize = 300
)

// EPKDeps groups the collaborators of EPKService.
type EPKDeps struct {
	EPKs      EPKStore
	Analytics AnalyticsStore
	Cache     EPKCache // nil disables caching
	Counters  LiveCounters
	Events    EventPublisher // nil disables the analytics stream
	Storage   storage.Storage
	Limits    upload.Limits
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// EPKService handles EPK lifecycle, public pages, media and analytics.
type EPKService struct {
	epks      EPKStore
	analytics AnalyticsStore
	cache     EPKCache
	counters  LiveCounters
	events    EventPublisher
	storage   storage.Storage
	limits    upload.Limits
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewEPKService creates a new EPKService.
func NewEPKService(d EPKDeps) *EPKService {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoop()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &EPKService{
		epks:      d.EPKs,
		analytics: d.Analytics,
		cache:     d.Cache,
		counters:  d.Counters,
		events:    d.Events,
		storage:   d.Storage,
		limits:    d.Limits,
		metrics:   d.Metrics,
		logger:    d.Logger.With("component", "service.epk"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EPKInput carries EPK content. Nil fields are left unchanged on update.
type EPKInput struct {
	Title         *string
	Status        *model.EPKStatus
	Bio           *model.Bio
	Photos        []model.PhotoCategory
	Music         *model.Music
	PressKit      *model.PressKit
	Contact       *model.Contact
	Customization *model.Customization
	SEO           *model.SEO
}

func (in EPKInput) validate(creating bool) error {
	var msgs []string
	if in.Title != nil || creating {
		title := ""
		if in.Title != nil {
			title = strings.TrimSpace(*in.Title)
		}
		switch {
		case title == "":
			msgs = append(msgs, "Please add a title")
		case utf8.RuneCountInString(title) > maxTitleLength:
			msgs = append(msgs, fmt.Sprintf("Title cannot be more than %d characters", maxTitleLength))
		case model.Slugify(title) == "":
			msgs = append(msgs, "Title must contain letters or numbers")
		}
	}
	if in.Status != nil && !in.Status.IsValid() {
		msgs = append(msgs, "Status must be draft or published")
	}
	if in.Contact != nil && in.Contact.Email != "" && !model.IsValidEmail(model.NormalizeEmail(in.Contact.Email)) {
		msgs = append(msgs, "Please provide a valid contact email")
	}
	if in.SEO != nil && utf8.RuneCountInString(in.SEO.MetaDescription) > maxMetaDescriptionSize {
		msgs = append(msgs, fmt.Sprintf("Meta description cannot be more than %d characters", maxMetaDescriptionSize))
	}
	return apperror.Validation(msgs...)
}

func (in EPKInput) apply(e *model.EPK, now time.Time) {
	if in.Title != nil {
		e.SetTitle(*in.Title, now)
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.Bio != nil {
		e.Bio = *in.Bio
	}
	if in.Photos != nil {
		e.Photos = in.Photos
	}
	if in.Music != nil {
		e.Music = *in.Music
		if e.Music.Tracks == nil {
			e.Music.Tracks = []model.Track{}
		}
	}
	if in.PressKit != nil {
		e.PressKit = *in.PressKit
	}
	if in.Contact != nil {
		e.Contact = *in.Contact
		e.Contact.Email = model.NormalizeEmail(e.Contact.Email)
	}
	if in.Customization != nil {
		e.Customization = *in.Customization
	}
	if in.SEO != nil {
		e.SEO = *in.SEO
	}
	e.UpdatedAt = now
}

// Create creates an EPK for user, enforcing the tier quota.
func (s *EPKService) Create(ctx context.Context, user *model.User, in EPKInput) (*model.EPK, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	if limit, unlimited := model.EPKQuota(user.Tier); !unlimited {
		count, err := s.epks.CountEPKsByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("count epks: %w", err)
		}
		if count >= int64(limit) {
			return nil, apperror.Forbidden(fmt.Sprintf("You have reached the maximum number of EPKs allowed for your %s tier", user.Tier))
		}
	}

	now := s.now()
	epk := model.NewEPK(user.ID, *in.Title, now)
	in.apply(epk, now)
	if epk.Contact.Email == "" {
		epk.Contact.Email = user.Email
	}

	if err := s.epks.CreateEPK(ctx, epk); err != nil {
		return nil, err
	}

	s.metrics.IncEPKCreated()
	s.logger.Info("epk_created", "epk_id", epk.ID, "user_id", user.ID)
	return epk, nil
}

// Get returns an EPK owned by userID.
func (s *EPKService) Get(ctx context.Context, userID, id string) (*model.EPK, error) {
	return s.owned(ctx, userID, id, ErrEPKViewForbidden)
}

// Update applies in to an EPK owned by userID and evicts its cached page.
func (s *EPKService) Update(ctx context.Context, userID, id string, in EPKInput) (*model.EPK, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}
	epk, err := s.owned(ctx, userID, id, ErrEPKUpdateForbidden)
	if err != nil {
		return nil, err
	}

	oldSlug := epk.Slug
	in.apply(epk, s.now())
	if err := s.epks.UpdateEPK(ctx, epk); err != nil {
		return nil, err
	}

	s.invalidate(ctx, epk.ID, oldSlug)
	s.metrics.IncEPKUpdated()
	return epk, nil
}

// Delete removes an EPK with its assets, cached page and live counters. The
// store drops the EPK with its inquiries and analytics in one transaction.
// Each step tolerates having already run, so a failed delete can be retried.
func (s *EPKService) Delete(ctx context.Context, userID, id string) error {
	epk, err := s.owned(ctx, userID, id, ErrEPKDeleteForbidden)
	if err != nil {
		return err
	}

	if keys := epk.AssetIDs(); len(keys) > 0 {
		if err := s.storage.DeleteMany(ctx, keys); err != nil {
			return apperror.External(msgMediaDeleteFailed, err)
		}
	}
	if err := s.epks.DeleteEPK(ctx, epk.ID); err != nil {
		return err
	}

	if s.counters != nil {
		if err := s.counters.DeleteAnalytics(ctx, epk.ID); err != nil {
			s.logger.Warn("live counter cleanup failed", "epk_id", epk.ID, "error", err)
		}
	}
	s.invalidate(ctx, epk.ID, epk.Slug)

	s.metrics.IncEPKDeleted()
	s.logger.Info("epk_deleted", "epk_id", epk.ID, "user_id", userID)
	return nil
}

// Visit describes the request behind a public page view or interaction.
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
	Country   string
}

// GetBySlug returns the serialized public page for slug. The page view is
// recorded before the cache is consulted; cache failures behave as misses.
func (s *EPKService) GetBySlug(ctx context.Context, slug string, v Visit) ([]byte, error) {
	start := time.Now()
	defer func() { s.metrics.ObservePublicEPKDuration(time.Since(start)) }()

	slug = strings.ToLower(strings.TrimSpace(slug))

	if s.cache != nil {
		if id, ok := s.cache.GetEPKIDBySlug(ctx, slug); ok {
			s.recordPageView(ctx, id, v)
			if data, ok := s.cache.GetEPK(ctx, id); ok {
				s.metrics.IncEPKCacheHit()
				return data, nil
			}
			s.metrics.IncEPKCacheMiss()
			epk, err := s.epks.GetEPK(ctx, id)
			if err == nil && epk.Slug == slug {
				return s.fill(ctx, epk)
			}
			if err != nil && !errors.Is(err, repository.ErrEPKNotFound) {
				return nil, err
			}
			// Stale index entry; resolve the slug from the store.
		} else {
			s.metrics.IncEPKCacheMiss()
		}
	}

	epk, err := s.epks.GetEPKBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrEPKNotFound) {
			return nil, ErrEPKNotFound
		}
		return nil, err
	}
	s.recordPageView(ctx, epk.ID, v)
	return s.fill(ctx, epk)
}

// fill serializes epk and writes it through to the cache.
func (s *EPKService) fill(ctx context.Context, epk *model.EPK) ([]byte, error) {
	data, err := json.Marshal(epk)
	if err != nil {
		return nil, fmt.Errorf("marshal epk: %w", err)
	}
	if s.cache != nil {
		s.cache.SetEPK(ctx, epk.ID, data)
		s.cache.SetEPKSlug(ctx, epk.Slug, epk.ID)
	}
	return data, nil
}

func (s *EPKService) recordPageView(ctx context.Context, epkID string, v Visit) {
	now := s.now()
	hash := analytics.GenerateVisitorHash(v.IP, v.UserAgent, now)

	unique := false
	if s.counters != nil {
		var err error
		unique, err = s.counters.RecordPageView(ctx, epkID, hash)
		if err != nil {
			s.logger.Warn("page view not recorded", "epk_id", epkID, "error", err)
		}
	}
	s.publish(&model.AnalyticsEvent{
		Kind:        model.EventPageView,
		EPKID:       epkID,
		VisitorHash: hash,
		Unique:      unique,
		Referrer:    v.Referrer,
		UserAgent:   v.UserAgent,
		CountryCode: v.Country,
		OccurredAt:  now,
	})
}

// TrackInteraction records a visitor interaction on a public page.
func (s *EPKService) TrackInteraction(ctx context.Context, epkID string, interaction model.InteractionType) error {
	if !interaction.IsValid() {
		return ErrInvalidInteraction
	}
	if _, err := s.load(ctx, epkID); err != nil {
		return err
	}
	s.recordInteraction(ctx, epkID, interaction)
	return nil
}

func (s *EPKService) recordInteraction(ctx context.Context, epkID string, interaction model.InteractionType) {
	if s.counters != nil {
		if err := s.counters.RecordInteraction(ctx, epkID, interaction); err != nil {
			s.logger.Warn("interaction not recorded", "epk_id", epkID, "interaction", interaction, "error", err)
		}
	}
	s.publish(&model.AnalyticsEvent{
		Kind:        model.EventInteraction,
		EPKID:       epkID,
		Interaction: interaction,
		OccurredAt:  s.now(),
	})
}

func (s *EPKService) publish(event *model.AnalyticsEvent) {
	if s.events != nil {
		s.events.PublishAsync(event)
	}
}

// Analytics returns live counters and the persisted record for an owned EPK.
func (s *EPKService) Analytics(ctx context.Context, userID, id string) (*model.AnalyticsReport, error) {
	epk, err := s.owned(ctx, userID, id, ErrAnalyticsForbidden)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &model.AnalyticsReport{
		EPKID:       epk.ID,
		Live:        model.LiveCounters{Interactions: map[model.InteractionType]int64{}},
		GeneratedAt: now,
	}

	if s.counters != nil {
		live, err := s.counters.LiveCounters(ctx, epk.ID)
		if err != nil {
			s.logger.Warn("live counters unavailable", "epk_id", epk.ID, "error", err)
		} else {
			report.Live = *live
		}
	}
	report.Live.ComputeEngagementRate()

	history, err := s.analytics.GetAnalytics(ctx, epk.ID)
	switch {
	case err == nil:
		report.History = history
	case errors.Is(err, repository.ErrAnalyticsNotFound):
		report.History = model.NewAnalytics(epk.ID, now)
	default:
		return nil, err
	}
	return report, nil
}

// UploadMedia validates files, stores them under epk/<id> and appends them to
// the collection named by kind. Nothing reaches the asset host unless every
// file passes validation.
func (s *EPKService) UploadMedia(ctx context.Context, userID, id string, kind model.MediaKind, category string, files []upload.File) ([]model.MediaAsset, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidMediaKind
	}
	if err := upload.Validate(files, s.limits); err != nil {
		return nil, err
	}
	for _, f := range files {
		if upload.Category(f.ContentType) != string(kind) {
			return nil, upload.ErrUnsupportedType
		}
	}

	epk, err := s.owned(ctx, userID, id, ErrEPKUpdateForbidden)
	if err != nil {
		return nil, err
	}

	assets := make([]model.MediaAsset, 0, len(files))
	for _, f := range files {
		obj, err := s.store(ctx, epk.ID, f)
		if err != nil {
			s.rollback(ctx, assets)
			return nil, apperror.External(msgMediaUploadFailed, err)
		}
		assets = append(assets, model.MediaAsset{URL: obj.URL, AssetID: obj.Key, Type: kind, Filename: f.Filename})
	}

	epk.AddMedia(kind, strings.TrimSpace(category), assets, s.now())
	if err := s.epks.UpdateEPK(ctx, epk); err != nil {
		s.rollback(ctx, assets)
		return nil, err
	}

	s.invalidate(ctx, epk.ID, epk.Slug)
	s.metrics.IncMediaUploaded(string(kind), len(assets))
	return assets, nil
}

func (s *EPKService) store(ctx context.Context, epkID string, f upload.File) (*storage.Object, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return s.storage.Upload(ctx, "epk/"+epkID, f.Filename, f.ContentType, r)
}

func (s *EPKService) rollback(ctx context.Context, assets []model.MediaAsset) {
	if len(assets) == 0 {
		return
	}
	keys := make([]string, len(assets))
	for i, a := range assets {
		keys[i] = a.AssetID
	}
	if err := s.storage.DeleteMany(ctx, keys); err != nil {
		s.logger.Warn("orphaned uploads", "keys", keys, "error", err)
	}
}

// DeleteMedia removes an asset from the host, then from the EPK collection.
// Removing an asset that is already gone succeeds.
func (s *EPKService) DeleteMedia(ctx context.Context, userID, id string, kind model.MediaKind, assetID string) error {
	if !kind.IsValid() {
		return ErrInvalidMediaKind
	}
	if strings.TrimSpace(assetID) == "" {
		return ErrMediaIDRequired
	}
	epk, err := s.owned(ctx, userID, id, ErrEPKUpdateForbidden)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, assetID); err != nil {
		return apperror.External(msgMediaDeleteFailed, err)
	}
	if !epk.RemoveMedia(kind, assetID, s.now()) {
		return nil
	}
	if err := s.epks.UpdateEPK(ctx, epk); err != nil {
		return err
	}
	s.invalidate(ctx, epk.ID, epk.Slug)
	return nil
}

// load fetches an EPK, mapping a missing row to 404.
func (s *EPKService) load(ctx context.Context, id string) (*model.EPK, error) {
	epk, err := s.epks.GetEPK(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEPKNotFound) {
			return nil, ErrEPKNotFound
		}
		return nil, err
	}
	return epk, nil
}

// owned loads an EPK and checks userID owns it.
func (s *EPKService) owned(ctx context.Context, userID, id string, forbidden error) (*model.EPK, error) {
	epk, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !epk.OwnedBy(userID) {
		return nil, forbidden
	}
	return epk, nil
}

// invalidate evicts the cached page and the slug index. Failures are logged.
func (s *EPKService) invalidate(ctx context.Context, id string, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteEPK(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", "epk_id", id, "error", err)
	}
	for _, slug := range slugs {
		if err := s.cache.DeleteEPKSlug(ctx, slug); err != nil {
			s.logger.Warn("cache invalidation failed", "slug", slug, "error", err)
		}
	}
}
