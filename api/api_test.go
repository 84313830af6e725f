package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	model2 "github.com/Brunux-hub/albru-engagement/api/model"

	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/database/mocks"
	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"

	engagement "github.com/Brunux-hub/albru-engagement"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockDataSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})
	datasource := new(mocks.MockDataSource)
	service, err := engagement.NewEngagement(datasource)
	require.NoError(t, err)
	router := NewAPI(service).Router()
	return router, datasource
}

func toJSON(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestCreateLeadAPI(t *testing.T) {
	router, datasource := setupRouter(t)

	leadID := "lead_" + gofakeit.UUID()
	datasource.On("CreateLead", mock.Anything, mock.MatchedBy(func(l model.Lead) bool {
		return l.LeadID == leadID
	})).Return(model.Lead{LeadID: leadID, DispatchStatus: model.DispatchNone, WorkerStatus: model.WorkerNone}, nil)

	var created model.Lead
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, model2.CreateLead{LeadID: leadID}),
		Router:   router,
		Response: &created,
		Method:   http.MethodPost,
		Route:    "/leads",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, leadID, created.LeadID)
}

func TestGetLeadAPINotFound(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("GetLeadByID", mock.Anything, "lead_missing").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "lead lead_missing not found", nil))

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/leads/lead_missing",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAcquireLeaseAPI(t *testing.T) {
	router, datasource := setupRouter(t)

	lease := &model.Lease{
		LeadID:    "lead_1",
		Holder:    "dispatcher-1",
		Token:     model.GenerateLeaseToken(),
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}
	datasource.On("AcquireLease", mock.Anything, "lead_1", "dispatcher-1", 120*time.Second).Return(lease, nil)

	var granted model.Lease
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, model2.AcquireLease{Holder: "dispatcher-1"}),
		Router:   router,
		Response: &granted,
		Method:   http.MethodPost,
		Route:    "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, lease.Token, granted.Token)
}

func TestAcquireLeaseAPIConflict(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("AcquireLease", mock.Anything, "lead_1", "dispatcher-2", mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrConflict, "lead lead_1 is already leased", map[string]interface{}{
			"owner": "dispatcher-1",
		}))

	var body apierror.APIError
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, model2.AcquireLease{Holder: "dispatcher-2"}),
		Router:   router,
		Response: &body,
		Method:   http.MethodPost,
		Route:    "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, apierror.ErrConflict, body.Code)
}

func TestAcquireLeaseAPIValidation(t *testing.T) {
	router, _ := setupRouter(t)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.AcquireLease{}),
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReleaseLeaseAPIForbidden(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("ReleaseLease", mock.Anything, "lead_1", "intruder", "").
		Return(apierror.NewAPIError(apierror.ErrForbidden, "lease on lead lead_1 is held by another dispatcher", nil))

	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.ReleaseLease{Holder: "intruder"}),
		Router:  router,
		Method:  http.MethodDelete,
		Route:   "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestGetLeaseAPIFree(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("GetLease", mock.Anything, "lead_1").Return(nil, nil)

	var body map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &body,
		Method:   http.MethodGet,
		Route:    "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, false, body["leased"])
}

func TestUpdateStatusAPI(t *testing.T) {
	router, datasource := setupRouter(t)

	lead := &model.Lead{LeadID: "lead_1", DispatchStatus: model.DispatchNew, WorkerStatus: model.WorkerNone, Version: 1}
	datasource.On("GetLeadByID", mock.Anything, "lead_1").Return(lead, nil)
	datasource.On("UpdateLeadTransition", mock.Anything, "lead_1", (*int64)(nil), mock.Anything).
		Return(&model.Lead{LeadID: "lead_1", DispatchStatus: model.DispatchDispatched, Version: 2}, nil)

	var body struct {
		Lead    model.Lead `json:"lead"`
		Actions []string   `json:"actions"`
	}
	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.UpdateStatus{
			Track:  model.TrackDispatcher,
			Status: model.DispatchDispatched,
		}),
		Router:   router,
		Response: &body,
		Method:   http.MethodPut,
		Route:    "/leads/lead_1/status",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.DispatchDispatched, body.Lead.DispatchStatus)
	assert.Contains(t, body.Actions, engagement.ActionStartDispatchTimeout)
}

func TestUpdateStatusAPIRejectsBadTrack(t *testing.T) {
	router, _ := setupRouter(t)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.UpdateStatus{
			Track:  "supervisor",
			Status: model.DispatchDispatched,
		}),
		Router: router,
		Method: http.MethodPut,
		Route:  "/leads/lead_1/status",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateStatusAPIVersionConflict(t *testing.T) {
	router, datasource := setupRouter(t)

	current := &model.Lead{LeadID: "lead_1", DispatchStatus: model.DispatchNew, Version: 4}
	datasource.On("GetLeadByID", mock.Anything, "lead_1").Return(current, nil)
	stale := int64(3)
	datasource.On("UpdateLeadTransition", mock.Anything, "lead_1", &stale, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrConflict, "lead lead_1 was modified concurrently", current))

	var body apierror.APIError
	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.UpdateStatus{
			Track:           model.TrackDispatcher,
			Status:          model.DispatchDispatched,
			ExpectedVersion: &stale,
		}),
		Router:   router,
		Response: &body,
		Method:   http.MethodPut,
		Route:    "/leads/lead_1/status",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.NotNil(t, body.Details)
}

func TestSessionAPILifecycle(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("TouchLeadActivity", mock.Anything, "lead_1", mock.Anything).Return(nil)

	var session model.Session
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, model2.StartSession{Worker: "worker-7"}),
		Router:   router,
		Response: &session,
		Method:   http.MethodPost,
		Route:    "/leads/lead_1/session",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "worker-7", session.Worker)

	var status map[string]interface{}
	resp, err = SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &status,
		Method:   http.MethodGet,
		Route:    "/leads/lead_1/session",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, status["active"])

	resp, err = SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.Heartbeat{Worker: "worker-7"}),
		Router:  router,
		Method:  http.MethodPost,
		Route:   "/leads/lead_1/session/heartbeat",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Payload: toJSON(t, model2.EndSession{Worker: "worker-7", Outcome: model.WorkerFinished}),
		Router:  router,
		Method:  http.MethodDelete,
		Route:   "/leads/lead_1/session",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &status,
		Method:   http.MethodGet,
		Route:    "/leads/lead_1/session",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, false, status["active"])
}

func TestActiveSessionsAPI(t *testing.T) {
	router, datasource := setupRouter(t)

	datasource.On("TouchLeadActivity", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	for _, leadID := range []string{"lead_1", "lead_2"} {
		resp, err := SetUpTestRequest(TestRequest{
			Payload: toJSON(t, model2.StartSession{Worker: gofakeit.Username()}),
			Router:  router,
			Method:  http.MethodPost,
			Route:   "/leads/" + leadID + "/session",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	var sessions []model.Session
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &sessions,
		Method:   http.MethodGet,
		Route:    "/sessions/active",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, sessions, 2)
}

func TestSecretKeyAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "test-secret"},
		Redis:  config.RedisConfig{Dns: mr.Addr()},
	})
	datasource := new(mocks.MockDataSource)
	service, err := engagement.NewEngagement(datasource)
	require.NoError(t, err)
	router := NewAPI(service).Router()

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/leads/lead_1/lease",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	datasource.On("GetLease", mock.Anything, "lead_1").Return(nil, nil)
	resp, err = SetUpTestRequest(TestRequest{
		Router: router,
		Method: http.MethodGet,
		Route:  "/leads/lead_1/lease",
		Header: map[string]string{"X-Albru-Key": "test-secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
}
