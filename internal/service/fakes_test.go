package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/mail"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/storage"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[string]model.User{}}
	for _, u := range users {
		f.users[u.ID] = *u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return &apperror.DuplicateError{Field: "email"}
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUsers) find(match func(model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return f.find(func(u model.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetUserByCustomerID(_ context.Context, customerID string) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.Subscription.CustomerID == customerID })
}

func (f *fakeUsers) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) UserExists(_ context.Context, field, value string) (bool, error) {
	_, err := f.find(func(u model.User) bool {
		if field == "email" {
			return u.Email == value
		}
		return u.Username == value
	})
	return err == nil, nil
}

func (f *fakeUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LastLoginAt = &at
	f.users[id] = u
	return nil
}

func (f *fakeUsers) get(id string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

type fakeEPKs struct {
	mu        sync.Mutex
	epks      map[string]model.EPK
	reads     int
	slugReads int
}

func newFakeEPKs(epks ...*model.EPK) *fakeEPKs {
	f := &fakeEPKs{epks: map[string]model.EPK{}}
	for _, e := range epks {
		f.epks[e.ID] = *e
	}
	return f
}

func (f *fakeEPKs) CreateEPK(_ context.Context, e *model.EPK) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epks[e.ID] = *e
	return nil
}

func (f *fakeEPKs) GetEPK(_ context.Context, id string) (*model.EPK, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	e, ok := f.epks[id]
	if !ok {
		return nil, repository.ErrEPKNotFound
	}
	return &e, nil
}

func (f *fakeEPKs) GetEPKBySlug(_ context.Context, slug string) (*model.EPK, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugReads++
	for _, e := range f.epks {
		if e.Slug == slug {
			return &e, nil
		}
	}
	return nil, repository.ErrEPKNotFound
}

func (f *fakeEPKs) UpdateEPK(_ context.Context, e *model.EPK) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.epks[e.ID]; !ok {
		return repository.ErrEPKNotFound
	}
	f.epks[e.ID] = *e
	return nil
}

func (f *fakeEPKs) DeleteEPK(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.epks, id)
	return nil
}

func (f *fakeEPKs) CountEPKsByUser(_ context.Context, userID string) (int64, error) {
	ids, _ := f.EPKIDsByUser(context.Background(), userID)
	return int64(len(ids)), nil
}

func (f *fakeEPKs) EPKIDsByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, e := range f.epks {
		if e.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeEPKs) storeReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads + f.slugReads
}

type fakeInquiries struct {
	mu        sync.Mutex
	inquiries map[string]model.ContactInquiry
	lastQuery repository.InquiryFilter
}

func newFakeInquiries() *fakeInquiries {
	return &fakeInquiries{inquiries: map[string]model.ContactInquiry{}}
}

func (f *fakeInquiries) CreateInquiry(_ context.Context, q *model.ContactInquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inquiries[q.ID] = *q
	return nil
}

func (f *fakeInquiries) GetInquiry(_ context.Context, id string) (*model.ContactInquiry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.inquiries[id]
	if !ok {
		return nil, repository.ErrInquiryNotFound
	}
	return &q, nil
}

func (f *fakeInquiries) UpdateInquiry(_ context.Context, q *model.ContactInquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inquiries[q.ID] = *q
	return nil
}

func (f *fakeInquiries) ListInquiries(_ context.Context, filter repository.InquiryFilter) (*repository.Page[model.ContactInquiry], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = filter
	allowed := map[string]bool{}
	for _, id := range filter.EPKIDs {
		allowed[id] = true
	}
	items := []*model.ContactInquiry{}
	for _, q := range f.inquiries {
		if !allowed[q.EPKID] {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		items = append(items, &q)
	}
	return &repository.Page[model.ContactInquiry]{Items: items, Total: int64(len(items)), Page: 1, Limit: len(items)}, nil
}

func (f *fakeInquiries) InquiryStats(_ context.Context, epkIDs []string) (*model.InquiryStats, error) {
	page, _ := f.ListInquiries(context.Background(), repository.InquiryFilter{EPKIDs: epkIDs})
	stats := &model.InquiryStats{Total: int64(len(page.Items))}
	for _, q := range page.Items {
		switch q.Status {
		case model.InquiryNew:
			stats.Pending++
		case model.InquiryRead:
			stats.Read++
		case model.InquiryReplied:
			stats.Responded++
		case model.InquiryArchived:
			stats.Archived++
		}
	}
	return stats, nil
}

type fakeAnalytics struct {
	mu      sync.Mutex
	records map[string]*model.Analytics
}

func (f *fakeAnalytics) GetAnalytics(_ context.Context, epkID string) (*model.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.records[epkID]
	if !ok {
		return nil, repository.ErrAnalyticsNotFound
	}
	return a, nil
}

type fakePaymentEvents struct {
	mu        sync.Mutex
	seen      map[string]bool
	forgotten []string
}

func (f *fakePaymentEvents) MarkPaymentEventProcessed(_ context.Context, eventID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakePaymentEvents) ForgetPaymentEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, eventID)
	f.forgotten = append(f.forgotten, eventID)
	return nil
}

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, fingerprint string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.revoked == nil {
		f.revoked = map[string]time.Duration{}
	}
	f.revoked[fingerprint] = ttl
	return nil
}

func (f *fakeBlacklist) IsTokenBlacklisted(_ context.Context, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[fingerprint]
	return ok, nil
}

type fakeCache struct {
	mu    sync.Mutex
	pages map[string][]byte
	slugs map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: map[string][]byte{}, slugs: map[string]string{}}
}

func (f *fakeCache) GetEPK(_ context.Context, id string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.pages[id]
	return data, ok
}

func (f *fakeCache) SetEPK(_ context.Context, id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[id] = data
}

func (f *fakeCache) DeleteEPK(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pages, id)
	return nil
}

func (f *fakeCache) GetEPKIDBySlug(_ context.Context, slug string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.slugs[slug]
	return id, ok
}

func (f *fakeCache) SetEPKSlug(_ context.Context, slug, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugs[slug] = id
}

func (f *fakeCache) DeleteEPKSlug(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.slugs, slug)
	return nil
}

type fakeCounters struct {
	mu           sync.Mutex
	views        map[string]int64
	visitors     map[string]map[string]bool
	interactions map[string]map[model.InteractionType]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{
		views:        map[string]int64{},
		visitors:     map[string]map[string]bool{},
		interactions: map[string]map[model.InteractionType]int64{},
	}
}

func (f *fakeCounters) RecordPageView(_ context.Context, epkID, visitorHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[epkID]++
	if f.visitors[epkID] == nil {
		f.visitors[epkID] = map[string]bool{}
	}
	if f.visitors[epkID][visitorHash] {
		return false, nil
	}
	f.visitors[epkID][visitorHash] = true
	return true, nil
}

func (f *fakeCounters) RecordInteraction(_ context.Context, epkID string, interaction model.InteractionType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interactions[epkID] == nil {
		f.interactions[epkID] = map[model.InteractionType]int64{}
	}
	f.interactions[epkID][interaction]++
	return nil
}

func (f *fakeCounters) LiveCounters(_ context.Context, epkID string) (*model.LiveCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := &model.LiveCounters{
		PageViews:      f.views[epkID],
		UniqueVisitors: int64(len(f.visitors[epkID])),
		Interactions:   map[model.InteractionType]int64{},
	}
	for k, v := range f.interactions[epkID] {
		live.Interactions[k] = v
	}
	return live, nil
}

func (f *fakeCounters) DeleteAnalytics(_ context.Context, epkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.views, epkID)
	delete(f.visitors, epkID)
	delete(f.interactions, epkID)
	return nil
}

func (f *fakeCounters) pageViews(epkID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[epkID]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*model.AnalyticsEvent
}

func (f *fakePublisher) PublishAsync(event *model.AnalyticsEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type sentMail struct {
	Kind string
	To   string
	Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) record(kind, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{Kind: kind, To: to, Body: body})
	return nil
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, _, token string) error {
	return f.record("welcome", to, token)
}

func (f *fakeMailer) SendVerification(_ context.Context, to, _, token string) error {
	return f.record("verification", to, token)
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return f.record("reset", to, token)
}

func (f *fakeMailer) SendContactNotification(_ context.Context, to string, n mail.ContactNotification) error {
	return f.record("contact", to, n.Message)
}

func (f *fakeMailer) SendInquiryResponse(_ context.Context, to, _, _, message string) error {
	return f.record("response", to, message)
}

func (f *fakeMailer) SendSubscriptionConfirmation(_ context.Context, to, plan, _ string) error {
	return f.record("subscription", to, plan)
}

func (f *fakeMailer) byKind(kind string) []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMail
	for _, m := range f.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	uploads int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, folder, filename, _ string, data io.Reader) (*storage.Object, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	key := fmt.Sprintf("%s/%d-%s", folder, f.uploads, filename)
	f.objects[key] = body
	return &storage.Object{Key: key, URL: "https://assets.test/" + key}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) DeleteMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := f.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStorage) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

// fakeProcessor overrides the Disabled processor where a test needs it.
type fakeProcessor struct {
	payment.Disabled
	customerID string
	sub        *payment.Subscription
	event      *payment.Event
	methods    []payment.PaymentMethod
	detached   []string
}

func (f *fakeProcessor) CreateCustomer(context.Context, string, string) (string, error) {
	return f.customerID, nil
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, customerID, priceID, _ string) (*payment.Subscription, error) {
	sub := *f.sub
	sub.CustomerID = customerID
	sub.PriceID = priceID
	return &sub, nil
}

func (f *fakeProcessor) CancelSubscription(context.Context, string) error { return nil }

func (f *fakeProcessor) ListPaymentMethods(context.Context, string) ([]payment.PaymentMethod, error) {
	return f.methods, nil
}

func (f *fakeProcessor) DetachPaymentMethod(_ context.Context, id string) error {
	f.detached = append(f.detached, id)
	return nil
}

func (f *fakeProcessor) ParseWebhook([]byte, string) (*payment.Event, error) {
	return f.event, nil
}
