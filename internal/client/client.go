// Package client talks to the emotion-check backend over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/emotion-check/internal/api"
)

// StatusError is returned for an unexpected HTTP status. Message is the
// server's error field when the body carries one, the raw body otherwise.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Client struct {
	parsedURL  *url.URL
	httpClient *http.Client
}

// New creates a client for the backend at baseURL. A zero timeout means no limit
// beyond the caller's context.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid backend URL: missing host")
	}
	return &Client{
		parsedURL:  parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.parsedURL.String()
}

func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	return doRequestJSON[api.HealthResponse](ctx, c, http.MethodGet, "api/health", nil, http.StatusOK)
}

func (c *Client) CreateSession(ctx context.Context) (*api.CreateSessionResponse, error) {
	return doRequestJSON[api.CreateSessionResponse](ctx, c, http.MethodPost, "api/create-session", struct{}{}, http.StatusOK)
}

func (c *Client) UploadFrames(ctx context.Context, sessionID string, frames []api.Frame) (*api.UploadFramesResponse, error) {
	body := api.UploadFramesRequest{SessionID: sessionID, Frames: frames}
	return doRequestJSON[api.UploadFramesResponse](ctx, c, http.MethodPost, "api/upload-frames", body, http.StatusOK)
}

func (c *Client) AnalyzeEmotions(ctx context.Context, sessionID string) (*api.AnalyzeResponse, error) {
	body := api.AnalyzeRequest{SessionID: sessionID}
	return doRequestJSON[api.AnalyzeResponse](ctx, c, http.MethodPost, "api/analyze-emotions", body, http.StatusOK)
}

func (c *Client) GetRecommendations(ctx context.Context, dominant string, emotions map[string]float64) (*api.RecommendationsResponse, error) {
	body := api.RecommendationsRequest{DominantEmotion: dominant, Emotions: emotions}
	return doRequestJSON[api.RecommendationsResponse](ctx, c, http.MethodPost, "api/get-recommendations", body, http.StatusOK)
}

// doRequestJSON performs an HTTP request and decodes the JSON response into T.
func doRequestJSON[T any](ctx context.Context, c *Client, method, endpoint string, requestBody any, expectedStatuses ...int) (*T, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from the validated base URL
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if !isExpectedStatus(resp.StatusCode, expectedStatuses) {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}
	return &result, nil
}

// readErrorBody returns the error field of a JSON error payload, or the raw body.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "(could not read error body)"
	}
	var payload api.ErrorResponse
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func isExpectedStatus(code int, expected []int) bool {
	return slices.Contains(expected, code)
}
