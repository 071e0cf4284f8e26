package http

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCORS(t *testing.T) {
	var calls int32
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := WithCORS(stub)

	testCases := []struct {
		description    string
		method         string
		origin         string
		expectedStatus int
		expectedCalls  int32
		expectedOrigin string
	}{
		{description: "preflight is answered directly", method: http.MethodOptions, expectedStatus: http.StatusOK, expectedOrigin: "*"},
		{description: "regular request passes through", method: http.MethodGet, expectedStatus: http.StatusNoContent, expectedCalls: 1, expectedOrigin: "*"},
		{description: "origin is reflected", method: http.MethodPost, origin: "http://localhost:3000", expectedStatus: http.StatusNoContent, expectedCalls: 1, expectedOrigin: "http://localhost:3000"},
	}

	for _, tc := range testCases {
		atomic.StoreInt32(&calls, 0)
		req := httptest.NewRequest(tc.method, "/", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)

		res := rec.Result()
		assert.EqualValues(t, tc.expectedStatus, res.StatusCode, tc.description)
		assert.EqualValues(t, tc.expectedOrigin, res.Header.Get("Access-Control-Allow-Origin"), tc.description)
		assert.NotEmpty(t, res.Header.Get("Access-Control-Allow-Methods"), tc.description)
		assert.NotEmpty(t, res.Header.Get("Access-Control-Allow-Headers"), tc.description)
		assert.EqualValues(t, tc.expectedCalls, atomic.LoadInt32(&calls), tc.description)
	}
}

func TestWithRecover(t *testing.T) {
	handler := WithRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
