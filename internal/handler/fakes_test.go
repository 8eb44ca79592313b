package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
	"github.com/presskit/presskit/internal/testutil"
	"github.com/presskit/presskit/internal/upload"
)

// Well-formed IDs for routes guarded by ValidateIDParams.
const (
	epkID     = "01HV7Z8K3M4N5P6Q7R8S9T0VWX"
	inquiryID = "01HV7Z8K3M4N5P6Q7R8S9T0VWY"
)

var testErrors = response.ErrorWriter{Logger: testutil.TestLogger(), Production: true}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Meta    *response.Meta  `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func withUser(r *http.Request, user *model.User, token string) *http.Request {
	return r.WithContext(auth.ContextWithPrincipal(r.Context(), &auth.Principal{User: user, Token: token}))
}

func testUser() *model.User {
	return &model.User{ID: "user-1", Email: "artist@example.com", Username: "artist", Tier: model.TierFree, IsActive: true}
}

// fakeAuth records calls and returns canned results.
type fakeAuth struct {
	session *service.Session
	user    *model.User
	pair    *auth.TokenPair
	err     error

	registered service.RegisterInput
	token      string
	userID     string
	passwords  [2]string
	email      string
	profile    service.UpdateProfileInput
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*service.Session, error) {
	f.registered = in
	return f.session, f.err
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*service.Session, error) {
	f.email, f.passwords[0] = email, password
	return f.session, f.err
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.token = token
	return f.err
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*auth.TokenPair, error) {
	f.token = refreshToken
	return f.pair, f.err
}

func (f *fakeAuth) Me(_ context.Context, userID string) (*model.User, error) {
	f.userID = userID
	return f.user, f.err
}

func (f *fakeAuth) UpdateProfile(_ context.Context, userID string, in service.UpdateProfileInput) (*model.User, error) {
	f.userID, f.profile = userID, in
	return f.user, f.err
}

func (f *fakeAuth) ChangePassword(_ context.Context, userID, current, next string) error {
	f.userID, f.passwords = userID, [2]string{current, next}
	return f.err
}

func (f *fakeAuth) ForgotPassword(_ context.Context, email string) error {
	f.email = email
	return f.err
}

func (f *fakeAuth) ResetPassword(_ context.Context, token, password string) error {
	f.token, f.passwords[1] = token, password
	return f.err
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token string) error {
	f.token = token
	return f.err
}

func (f *fakeAuth) ResendVerification(_ context.Context, userID string) error {
	f.userID = userID
	return f.err
}

// Authenticate lets fakeAuth stand in for the bearer authenticator.
func (f *fakeAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	if f.user == nil || token != "good-token" {
		return nil, auth.ErrTokenInvalid
	}
	return f.user, nil
}

// fakeEPKs records calls and returns canned results.
type fakeEPKs struct {
	epk     *model.EPK
	page    []byte
	report  *model.AnalyticsReport
	assets  []model.MediaAsset
	err     error
	calls   int
	user    *model.User
	userID  string
	id      string
	input   service.EPKInput
	visit   service.Visit
	slug    string
	kind    model.MediaKind
	cat     string
	assetID string
	files   []upload.File
	action  model.InteractionType
}

func (f *fakeEPKs) Create(_ context.Context, user *model.User, in service.EPKInput) (*model.EPK, error) {
	f.calls++
	f.user, f.input = user, in
	return f.epk, f.err
}

func (f *fakeEPKs) Get(_ context.Context, userID, id string) (*model.EPK, error) {
	f.calls++
	f.userID, f.id = userID, id
	return f.epk, f.err
}

func (f *fakeEPKs) Update(_ context.Context, userID, id string, in service.EPKInput) (*model.EPK, error) {
	f.calls++
	f.userID, f.id, f.input = userID, id, in
	return f.epk, f.err
}

func (f *fakeEPKs) Delete(_ context.Context, userID, id string) error {
	f.calls++
	f.userID, f.id = userID, id
	return f.err
}

func (f *fakeEPKs) GetBySlug(_ context.Context, slug string, v service.Visit) ([]byte, error) {
	f.calls++
	f.slug, f.visit = slug, v
	return f.page, f.err
}

func (f *fakeEPKs) TrackInteraction(_ context.Context, id string, interaction model.InteractionType) error {
	f.calls++
	f.id, f.action = id, interaction
	return f.err
}

func (f *fakeEPKs) Analytics(_ context.Context, userID, id string) (*model.AnalyticsReport, error) {
	f.calls++
	f.userID, f.id = userID, id
	return f.report, f.err
}

func (f *fakeEPKs) UploadMedia(_ context.Context, userID, id string, kind model.MediaKind, category string, files []upload.File) ([]model.MediaAsset, error) {
	f.calls++
	f.userID, f.id, f.kind, f.cat, f.files = userID, id, kind, category, files
	return f.assets, f.err
}

func (f *fakeEPKs) DeleteMedia(_ context.Context, userID, id string, kind model.MediaKind, assetID string) error {
	f.calls++
	f.userID, f.id, f.kind, f.assetID = userID, id, kind, assetID
	return f.err
}

// fakeContact records calls and returns canned results.
type fakeContact struct {
	inquiry *model.ContactInquiry
	page    *repository.Page[model.ContactInquiry]
	stats   *model.InquiryStats
	err     error

	epkID   string
	submit  service.SubmitInput
	list    service.ListInput
	userID  string
	id      string
	status  string
	note    string
	message string
}

func (f *fakeContact) Submit(_ context.Context, epkID string, in service.SubmitInput) (*model.ContactInquiry, error) {
	f.epkID, f.submit = epkID, in
	return f.inquiry, f.err
}

func (f *fakeContact) List(_ context.Context, userID string, in service.ListInput) (*repository.Page[model.ContactInquiry], error) {
	f.userID, f.list = userID, in
	return f.page, f.err
}

func (f *fakeContact) Stats(_ context.Context, userID string) (*model.InquiryStats, error) {
	f.userID = userID
	return f.stats, f.err
}

func (f *fakeContact) UpdateStatus(_ context.Context, userID, id, status, note string) (*model.ContactInquiry, error) {
	f.userID, f.id, f.status, f.note = userID, id, status, note
	return f.inquiry, f.err
}

func (f *fakeContact) Respond(_ context.Context, userID, id, message string) (*model.ContactInquiry, error) {
	f.userID, f.id, f.message = userID, id, message
	return f.inquiry, f.err
}

func (f *fakeContact) AddNote(_ context.Context, userID, id, content string) (*model.ContactInquiry, error) {
	f.userID, f.id, f.note = userID, id, content
	return f.inquiry, f.err
}

// fakeBilling records calls and returns canned results.
type fakeBilling struct {
	sub     *payment.Subscription
	methods []payment.PaymentMethod
	invoice *payment.Invoice
	secret  string
	err     error

	user      *model.User
	plan      string
	method    string
	amount    int64
	currency  string
	invoiceID string
	payload   []byte
	signature string
	calls     int
}

func (f *fakeBilling) GetSubscription(_ context.Context, user *model.User) (*payment.Subscription, error) {
	f.calls++
	f.user = user
	return f.sub, f.err
}

func (f *fakeBilling) CreateSubscription(_ context.Context, user *model.User, plan, paymentMethodID string) (*payment.Subscription, error) {
	f.calls++
	f.user, f.plan, f.method = user, plan, paymentMethodID
	return f.sub, f.err
}

func (f *fakeBilling) UpdateSubscription(_ context.Context, user *model.User, plan string) (*payment.Subscription, error) {
	f.calls++
	f.user, f.plan = user, plan
	return f.sub, f.err
}

func (f *fakeBilling) CancelSubscription(_ context.Context, user *model.User) error {
	f.calls++
	f.user = user
	return f.err
}

func (f *fakeBilling) ListPaymentMethods(_ context.Context, user *model.User) ([]payment.PaymentMethod, error) {
	f.calls++
	f.user = user
	return f.methods, f.err
}

func (f *fakeBilling) AddPaymentMethod(_ context.Context, user *model.User, paymentMethodID string) error {
	f.calls++
	f.user, f.method = user, paymentMethodID
	return f.err
}

func (f *fakeBilling) RemovePaymentMethod(_ context.Context, user *model.User, paymentMethodID string) error {
	f.calls++
	f.user, f.method = user, paymentMethodID
	return f.err
}

func (f *fakeBilling) CreatePaymentIntent(_ context.Context, amount int64, currency string) (string, error) {
	f.calls++
	f.amount, f.currency = amount, currency
	return f.secret, f.err
}

func (f *fakeBilling) GetInvoice(_ context.Context, invoiceID string) (*payment.Invoice, error) {
	f.calls++
	f.invoiceID = invoiceID
	return f.invoice, f.err
}

func (f *fakeBilling) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.calls++
	f.payload, f.signature = payload, signature
	return f.err
}

// widget is a minimal resource for exercising the generic CRUD handlers.
type widget struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

// memStore is an in-memory Store keyed by ID.
type memStore struct {
	mu        sync.Mutex
	items     map[string]*widget
	lastQuery repository.ListQuery
	lastScope map[string]string
	err       error
}

func newMemStore(items ...*widget) *memStore {
	s := &memStore{items: map[string]*widget{}}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *memStore) sorted() []*widget {
	out := make([]*widget, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) List(_ context.Context, q repository.ListQuery) (*repository.Page[widget], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	var items []*widget
	for _, it := range s.sorted() {
		if owner, ok := q.Filters["userId"]; ok && it.UserID != owner {
			continue
		}
		items = append(items, it)
	}
	return &repository.Page[widget]{Items: items, Total: int64(len(items)), Page: q.Page, Limit: q.Limit}, nil
}

func (s *memStore) Get(_ context.Context, id string) (*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return it, nil
}

func (s *memStore) FindBy(_ context.Context, field, value string, scope map[string]string) ([]*widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScope = scope
	if field != "name" && field != "userId" {
		return nil, fmt.Errorf("widgets %q: %w", field, repository.ErrUnknownField)
	}
	var out []*widget
	for _, it := range s.sorted() {
		if owner, ok := scope["userId"]; ok && it.UserID != owner {
			continue
		}
		if (field == "name" && it.Name == value) || (field == "userId" && it.UserID == value) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) Exists(ctx context.Context, field, value string, scope map[string]string) (bool, error) {
	found, err := s.FindBy(ctx, field, value, scope)
	return len(found) > 0, err
}

func (s *memStore) Create(_ context.Context, item *widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *memStore) Update(_ context.Context, item *widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) BulkCreate(ctx context.Context, items []*widget) error {
	for _, it := range items {
		if err := s.Create(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) BulkUpdate(ctx context.Context, items []*widget) error {
	for _, it := range items {
		if err := s.Update(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) BulkDelete(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
