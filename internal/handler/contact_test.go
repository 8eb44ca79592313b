package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/service"
	"github.com/presskit/presskit/internal/testutil"
)

func newContactHandler(svc *fakeContact) *ContactHandler {
	return NewContactHandler(svc, testErrors, testutil.TestLogger())
}

func TestContactHandler_Submit(t *testing.T) {
	svc := &fakeContact{inquiry: &model.ContactInquiry{ID: inquiryID, EPKID: epkID, Status: model.InquiryNew}}

	req := jsonRequest(http.MethodPost, "/api/v1/epks/"+epkID+"/contact",
		`{"name":"Booker","email":"booker@venue.com","subject":"Summer show","message":"Would love to book you in July.","type":"booking"}`)
	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://presskit.example.com/nova?ref=mail")
	req = withURLParams(req, "epkId", epkID)
	rec := httptest.NewRecorder()
	newContactHandler(svc).Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Inquiry sent successfully", decode(t, rec).Message)
	assert.Equal(t, epkID, svc.epkID)
	assert.Equal(t, "Booker", svc.submit.Name)
	assert.Equal(t, model.InquiryBooking, svc.submit.Type)
	assert.Equal(t, model.InquiryMetadata{
		UserAgent: "Mozilla/5.0",
		IPAddress: "198.51.100.7",
		Referrer:  "https://presskit.example.com/nova",
	}, svc.submit.Metadata)
}

func TestContactHandler_SubmitValidation(t *testing.T) {
	svc := &fakeContact{err: apperror.Validation("Message must be at least 10 characters")}
	req := withURLParams(jsonRequest(http.MethodPost, "/", `{"message":"hi"}`), "epkId", epkID)
	rec := httptest.NewRecorder()
	newContactHandler(svc).Submit(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message must be at least 10 characters", decode(t, rec).Error)
}

func TestContactHandler_List(t *testing.T) {
	svc := &fakeContact{page: &repository.Page[model.ContactInquiry]{
		Items: []*model.ContactInquiry{{ID: inquiryID}},
		Total: 21,
		Page:  2,
		Limit: 10,
	}}
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/contact/inquiries?page=2&status=new&type=press", nil), testUser(), "tok")
	rec := httptest.NewRecorder()
	newContactHandler(svc).List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, 10, env.Meta.Limit)
	assert.EqualValues(t, 21, env.Meta.Total)
	assert.Equal(t, 3, env.Meta.TotalPages)
	assert.Equal(t, service.ListInput{Status: "new", Type: "press", Page: 2, Limit: 10}, svc.list)
	assert.Equal(t, "user-1", svc.userID)

	var items []model.ContactInquiry
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)
}

func TestContactHandler_ListInvalidStatus(t *testing.T) {
	svc := &fakeContact{err: service.ErrInvalidInquiryStatus}
	req := withUser(httptest.NewRequest(http.MethodGet, "/?status=bogus", nil), testUser(), "tok")
	rec := httptest.NewRecorder()
	newContactHandler(svc).List(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status value", decode(t, rec).Error)
}

func TestContactHandler_Stats(t *testing.T) {
	svc := &fakeContact{stats: &model.InquiryStats{Total: 3, Pending: 2, Archived: 1}}
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/contact/stats", nil), testUser(), "tok")
	rec := httptest.NewRecorder()
	newContactHandler(svc).Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.InquiryStats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Pending)
}

func TestContactHandler_Mutations(t *testing.T) {
	user := testUser()

	t.Run("status with note", func(t *testing.T) {
		svc := &fakeContact{inquiry: &model.ContactInquiry{ID: inquiryID}}
		req := withURLParams(withUser(jsonRequest(http.MethodPatch, "/", `{"status":"read","note":"seen it"}`), user, "tok"), "id", inquiryID)
		rec := httptest.NewRecorder()
		newContactHandler(svc).UpdateStatus(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "read", svc.status)
		assert.Equal(t, "seen it", svc.note)
		assert.Equal(t, inquiryID, svc.id)
	})

	t.Run("respond", func(t *testing.T) {
		svc := &fakeContact{inquiry: &model.ContactInquiry{ID: inquiryID}}
		req := withURLParams(withUser(jsonRequest(http.MethodPost, "/", `{"message":"Thanks, July works."}`), user, "tok"), "id", inquiryID)
		rec := httptest.NewRecorder()
		newContactHandler(svc).Respond(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Response sent successfully", decode(t, rec).Message)
		assert.Equal(t, "Thanks, July works.", svc.message)
	})

	t.Run("respond to someone else's inquiry", func(t *testing.T) {
		svc := &fakeContact{err: service.ErrInquiryRespondForbidden}
		req := withURLParams(withUser(jsonRequest(http.MethodPost, "/", `{"message":"hello there"}`), user, "tok"), "id", inquiryID)
		rec := httptest.NewRecorder()
		newContactHandler(svc).Respond(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Not authorized to respond to this inquiry", decode(t, rec).Error)
	})

	t.Run("note", func(t *testing.T) {
		svc := &fakeContact{inquiry: &model.ContactInquiry{ID: inquiryID}}
		req := withURLParams(withUser(jsonRequest(http.MethodPost, "/", `{"content":"call back Friday"}`), user, "tok"), "id", inquiryID)
		rec := httptest.NewRecorder()
		newContactHandler(svc).AddNote(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "call back Friday", svc.note)
	})
}
