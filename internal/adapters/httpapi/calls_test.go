package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/store/memory"
)

func newCallsRouter(calls *memory.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := &callAPI{store: calls}
	r.POST("/api/calls", api.create)
	r.GET("/api/calls/:id", api.get)
	r.PATCH("/api/calls/:id/status", api.updateStatus)
	return r
}

func TestCallAPI_CreateAndGet(t *testing.T) {
	calls := memory.New()
	r := newCallsRouter(calls)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(`{"callerId":"alice","calleeId":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.Call
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.CallInitiated, created.Status)
	assert.True(t, strings.HasPrefix(string(created.RoomID), "call-"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/calls/"+string(created.ID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Call
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.UserID("alice"), got.CallerID)
}

func TestCallAPI_CreateValidation(t *testing.T) {
	r := newCallsRouter(memory.New())

	tests := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "nope"},
		{name: "missing_caller", body: `{"calleeId":"bob"}`},
		{name: "missing_callee", body: `{"callerId":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/calls", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCallAPI_GetUnknown(t *testing.T) {
	r := newCallsRouter(memory.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/calls/nope", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallAPI_UpdateStatus(t *testing.T) {
	calls := memory.New()
	r := newCallsRouter(calls)

	call, err := calls.Create(t.Context(), "alice", "bob")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/calls/"+string(call.ID)+"/status", strings.NewReader(`{"status":"ongoing"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	got, err := calls.Get(t.Context(), call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallOngoing, got.Status)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/calls/"+string(call.ID)+"/status", strings.NewReader(`{"status":"weird"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/calls/nope/status", strings.NewReader(`{"status":"ended"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
