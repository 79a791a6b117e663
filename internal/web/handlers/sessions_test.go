package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/emotion-check/internal/api"
)

func TestSessionsHandler_Create(t *testing.T) {
	h := NewSessionsHandler(newTestService(t))
	recorder := httptest.NewRecorder()

	h.Create(recorder, httptest.NewRequest(http.MethodPost, "/api/create-session", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result api.CreateSessionResponse
	parseJSONResponse(t, recorder, &result)
	if !result.Success {
		t.Error("expected success true")
	}
	if result.SessionID == "" {
		t.Error("expected a session id")
	}
	if result.Message != "Session created successfully" {
		t.Errorf("unexpected message '%s'", result.Message)
	}
}

func TestSessionsHandler_UploadFrames(t *testing.T) {
	svc := newTestService(t)
	h := NewSessionsHandler(svc)
	id := createSession(t, svc)
	recorder := httptest.NewRecorder()

	req := jsonRequest(t, "/api/upload-frames", api.UploadFramesRequest{
		SessionID: id,
		Frames:    []api.Frame{testFrame(t, 1), testFrame(t, 2), {FrameNumber: 3, ImageData: "garbage"}},
	})
	h.UploadFrames(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result api.UploadFramesResponse
	parseJSONResponse(t, recorder, &result)
	if result.FramesSaved != 2 {
		t.Errorf("expected 2 frames saved, got %d", result.FramesSaved)
	}
	if result.Message != "Successfully saved 2 frames" {
		t.Errorf("unexpected message '%s'", result.Message)
	}
}

func TestSessionsHandler_UploadFrames_Errors(t *testing.T) {
	svc := newTestService(t)
	h := NewSessionsHandler(svc)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{"NoBody", rawRequest("/api/upload-frames", ""), http.StatusBadRequest, "No data received"},
		{"MissingFrames", rawRequest("/api/upload-frames", `{"session_id": "abc"}`), http.StatusBadRequest, "Missing session_id or frames"},
		{"MissingSession", jsonRequest(t, "/api/upload-frames", api.UploadFramesRequest{Frames: []api.Frame{testFrame(t, 1)}}), http.StatusBadRequest, "Missing session_id or frames"},
		{"UnknownSession", jsonRequest(t, "/api/upload-frames", api.UploadFramesRequest{SessionID: "nope", Frames: []api.Frame{testFrame(t, 1)}}), http.StatusNotFound, "Session not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.UploadFrames(recorder, tc.req)

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func TestSessionsHandler_Analyze(t *testing.T) {
	svc := newTestService(t)
	h := NewSessionsHandler(svc)
	id := createSession(t, svc)

	upload := httptest.NewRecorder()
	h.UploadFrames(upload, jsonRequest(t, "/api/upload-frames", api.UploadFramesRequest{
		SessionID: id,
		Frames:    []api.Frame{testFrame(t, 1), testFrame(t, 2), testFrame(t, 3)},
	}))
	assertStatusCode(t, upload, http.StatusOK)

	recorder := httptest.NewRecorder()
	h.Analyze(recorder, jsonRequest(t, "/api/analyze-emotions", api.AnalyzeRequest{SessionID: id}))

	assertStatusCode(t, recorder, http.StatusOK)

	var result api.AnalyzeResponse
	parseJSONResponse(t, recorder, &result)
	if result.SessionID != id {
		t.Errorf("expected session id '%s', got '%s'", id, result.SessionID)
	}
	if result.TotalFrames != 3 || result.SuccessfulAnalyses != 3 {
		t.Errorf("expected 3/3 frames, got %d/%d", result.SuccessfulAnalyses, result.TotalFrames)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Results))
	}
	if result.Results[0].Frame != 1 {
		t.Errorf("expected first result for frame 1, got %d", result.Results[0].Frame)
	}
	if len(result.AverageEmotions) != 7 {
		t.Errorf("expected 7 averaged emotions, got %d", len(result.AverageEmotions))
	}
	if result.DominantEmotion == "" {
		t.Error("expected dominant emotion")
	}
	if result.ClassifierUsed {
		t.Error("expected classifier_used false for the mock classifier")
	}
}

func TestSessionsHandler_Analyze_Errors(t *testing.T) {
	svc := newTestService(t)
	h := NewSessionsHandler(svc)
	empty := createSession(t, svc)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{"NoBody", rawRequest("/api/analyze-emotions", ""), http.StatusBadRequest, "No data received"},
		{"MissingSessionID", rawRequest("/api/analyze-emotions", `{"session_id": ""}`), http.StatusBadRequest, "Missing session_id"},
		{"UnknownSession", jsonRequest(t, "/api/analyze-emotions", api.AnalyzeRequest{SessionID: "missing"}), http.StatusNotFound, "Session not found"},
		{"NoFrames", jsonRequest(t, "/api/analyze-emotions", api.AnalyzeRequest{SessionID: empty}), http.StatusBadRequest, "No frames found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.Analyze(recorder, tc.req)

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.message)
		})
	}
}
