package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/emotion-check/internal/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "localhost:5000", "http://", "://bad"} {
		_, err := New(raw, 0)
		assert.Error(t, err, raw)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:5000/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", c.BaseURL())
	assert.Equal(t, "http://localhost:5000/api/health", c.resolveURL("api/health"))
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/health", r.URL.Path)
		writeJSON(w, http.StatusOK, api.HealthResponse{
			Response:   api.Response{Success: true},
			Status:     api.StatusHealthy,
			Classifier: "mock",
		})
	})

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StatusHealthy, resp.Status)
	assert.Equal(t, "mock", resp.Classifier)
}

func TestClient_UploadFrames_SendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.UploadFramesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc", req.SessionID)
		assert.Len(t, req.Frames, 2)
		assert.Equal(t, 2, req.Frames[1].FrameNumber)

		writeJSON(w, http.StatusOK, api.UploadFramesResponse{Response: api.Response{Success: true}, FramesSaved: 2})
	})

	resp, err := c.UploadFrames(context.Background(), "abc", []api.Frame{{FrameNumber: 1}, {FrameNumber: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.FramesSaved)
}

func TestClient_StatusErrorUsesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Response: api.Response{Error: "Session not found"}})
	})

	_, err := c.AnalyzeEmotions(context.Background(), "missing")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Session not found", se.Message)
	assert.True(t, IsNotFound(err))
}

func TestClient_StatusErrorFallsBackToBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.CreateSession(context.Background())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bad gateway", se.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.GetRecommendations(context.Background(), "happy", nil)
	assert.ErrorContains(t, err, "could not decode response")
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Health(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second)
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	assert.ErrorContains(t, err, "could not send request")
}
