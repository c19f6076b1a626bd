package digitalocean

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
)

func completionHandler(t *testing.T, content string, capture *InferenceRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(InferenceResponse{
			ID:      "cmpl-1",
			Choices: []InferenceChoice{{Message: InferenceMessage{Role: "assistant", Content: content}}},
		})
	}
}

func newTestClient(url string, timeout time.Duration) *InferenceClient {
	return NewInferenceClient(InferenceConfig{
		APIKey:    "test-key",
		BaseURL:   url,
		Timeout:   timeout,
		RateLimit: 100,
	})
}

func TestStructure_SendsSamplingAndTrimsFences(t *testing.T) {
	var got InferenceRequest
	srv := httptest.NewServer(completionHandler(t, "```json\n{\"success\":true}\n```", &got))
	defer srv.Close()

	out, err := newTestClient(srv.URL, time.Second).Structure(context.Background(), "syllabus text", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system prompt", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "syllabus text", got.Messages[1].Content)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	assert.InDelta(t, 0.8, got.TopP, 1e-9)
	assert.Equal(t, StructuringStop, got.Stop)
	assert.Equal(t, DefaultInferenceModel, got.Model)
}

func TestStructure_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).Structure(context.Background(), "text", "prompt")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "upstream unavailable")
}

func TestStructure_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Structure(context.Background(), "text", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructuringTimeout)
}

func TestStructure_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).Structure(context.Background(), "text", "prompt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStructuringTimeout)
}

func TestCountsAgainstUpstream(t *testing.T) {
	assert.True(t, countsAgainstUpstream(&APIError{StatusCode: 503}))
	assert.True(t, countsAgainstUpstream(&APIError{StatusCode: 429}))
	assert.False(t, countsAgainstUpstream(&APIError{StatusCode: 400}))
	assert.False(t, countsAgainstUpstream(context.Canceled))
	assert.True(t, countsAgainstUpstream(errors.New("connection refused")))
}

func TestStructure_RequestCarriesOnlyCompletionFields(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(InferenceResponse{
			Choices: []InferenceChoice{{Message: InferenceMessage{Role: "assistant", Content: "{}"}}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).Structure(context.Background(), "text", "prompt")
	require.NoError(t, err)

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"model", "messages", "temperature", "max_tokens", "top_p", "stop"}, keys)
}
