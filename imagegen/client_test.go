package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResponse(imageData, text string) string {
	return `{"candidates":[{"content":{"parts":[` +
		`{"inlineData":{"mimeType":"image/png","data":"` + imageData + `"}},` +
		`{"text":"` + text + `"}]}}]}`
}

func TestGenerateSendsPromptAndReferences(t *testing.T) {
	var captured generateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse("aW1n", "done")))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1", "secret", "test-model")

	refs := []ImageContent{
		{MimeType: "image/png", Data: "c2VlZA=="},
		{MimeType: "image/png", Data: "cHJldg=="},
	}
	result, err := client.Generate(context.Background(), "draw a frame", refs, Options{AspectRatio: "1:1"})
	require.NoError(t, err)
	assert.Equal(t, "aW1n", result.Image.Data)
	assert.Equal(t, "image/png", result.Image.MimeType)
	assert.Equal(t, "done", result.Text)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "draw a frame", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "c2VlZA==", parts[1].InlineData.Data, "reference order must be preserved")
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "cHJldg==", parts[2].InlineData.Data)

	require.NotNil(t, captured.GenerationConfig.ImageConfig)
	assert.Equal(t, "1:1", captured.GenerationConfig.ImageConfig.AspectRatio)
	assert.Equal(t, []string{"IMAGE", "TEXT"}, captured.GenerationConfig.ResponseModalities)
}

func TestEditSendsSourceFirst(t *testing.T) {
	var captured generateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(okResponse("aW1n", "")))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "test-model")

	source := ImageContent{MimeType: "image/png", Data: "c3Jj"}
	_, err := client.Edit(context.Background(), source, "make it blue", nil, Options{})
	require.NoError(t, err)

	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "c3Jj", parts[0].InlineData.Data)
	assert.Equal(t, "make it blue", parts[1].Text)

	assert.Nil(t, captured.GenerationConfig.ImageConfig, "no aspect ratio requested")
}

func TestGenerateValidation(t *testing.T) {
	client := NewClient("http://localhost:0", "k", "m")

	_, err := client.Generate(context.Background(), "  ", nil, Options{})
	assert.Error(t, err)

	_, err = client.Edit(context.Background(), ImageContent{}, "prompt", nil, Options{})
	assert.Error(t, err)
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "test-model")

	_, err := client.Generate(context.Background(), "draw", nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateNoImageInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "test-model")

	_, err := client.Generate(context.Background(), "draw", nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image")
}
