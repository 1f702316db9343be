package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModelID = "gemini-2.5-flash-image"
)

// ImageContent is one base64-encoded image attached to a model request or
// returned from it.
type ImageContent struct {
	MimeType string
	Data     string
}

// Options carries per-call generation parameters.
type Options struct {
	AspectRatio string
}

// Result is the model output: the rendered image plus any accompanying text.
type Result struct {
	Image ImageContent
	Text  string
}

// Generator is the capability consumed by the generation pipelines. The
// concrete implementation talks to an external image model; tests substitute
// scripted fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, references []ImageContent, opts Options) (Result, error)
	Edit(ctx context.Context, source ImageContent, prompt string, references []ImageContent, opts Options) (Result, error)
}

// Client wraps the HTTP calls to a Gemini-compatible image generation API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - IMAGEGEN_API_KEY: required API key for the provider
//   - IMAGEGEN_BASE_URL: optional override for the API base URL (defaults to defaultBaseURL)
//   - IMAGEGEN_MODEL_ID: optional override for the target model (defaults to defaultModelID)
func NewClientFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("IMAGEGEN_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("imagegen: IMAGEGEN_API_KEY environment variable is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("IMAGEGEN_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("imagegen: invalid base URL %q", baseURL)
	}

	modelID := strings.TrimSpace(os.Getenv("IMAGEGEN_MODEL_ID"))
	if modelID == "" {
		modelID = defaultModelID
	}

	// Image generation calls routinely take tens of seconds; the timeout is
	// the only forward-progress guarantee the pipeline has.
	httpClient := &http.Client{Timeout: 120 * time.Second}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelID:    modelID,
	}, nil
}

// NewClient constructs a Client with explicit settings. Used by tests.
func NewClient(baseURL, apiKey, modelID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelID:    modelID,
	}
}

type inlineData struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type requestContent struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"response_modalities"`
	ImageConfig        *imageConfig `json:"image_config,omitempty"`
}

type generateContentRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generation_config"`
}

type responsePart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt with ordered reference images and returns the
// model's rendered image. Reference order matters to the model and is
// preserved as given.
func (c *Client) Generate(ctx context.Context, prompt string, references []ImageContent, opts Options) (Result, error) {
	if c == nil {
		return Result{}, errors.New("imagegen: client is nil")
	}
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return Result{}, errors.New("imagegen: prompt cannot be empty")
	}

	parts := make([]contentPart, 0, len(references)+1)
	parts = append(parts, contentPart{Text: trimmed})
	for _, ref := range references {
		parts = append(parts, imagePart(ref))
	}

	return c.invoke(ctx, parts, opts)
}

// Edit sends the source image first, then the instruction, then any extra
// reference images.
func (c *Client) Edit(ctx context.Context, source ImageContent, prompt string, references []ImageContent, opts Options) (Result, error) {
	if c == nil {
		return Result{}, errors.New("imagegen: client is nil")
	}
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return Result{}, errors.New("imagegen: prompt cannot be empty")
	}
	if strings.TrimSpace(source.Data) == "" {
		return Result{}, errors.New("imagegen: source image cannot be empty")
	}

	parts := make([]contentPart, 0, len(references)+2)
	parts = append(parts, imagePart(source))
	parts = append(parts, contentPart{Text: trimmed})
	for _, ref := range references {
		parts = append(parts, imagePart(ref))
	}

	return c.invoke(ctx, parts, opts)
}

func imagePart(ref ImageContent) contentPart {
	mime := strings.TrimSpace(ref.MimeType)
	if mime == "" {
		mime = "image/png"
	}
	return contentPart{InlineData: &inlineData{MimeType: mime, Data: ref.Data}}
}

func (c *Client) invoke(ctx context.Context, parts []contentPart, opts Options) (Result, error) {
	payload := generateContentRequest{
		Contents: []requestContent{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
	if ratio := strings.TrimSpace(opts.AspectRatio); ratio != "" {
		payload.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: ratio}
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return Result{}, fmt.Errorf("imagegen: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("imagegen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("imagegen: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, fmt.Errorf("imagegen: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("imagegen: decode response: %w", err)
	}

	if len(decoded.Candidates) == 0 {
		return Result{}, errors.New("imagegen: response contains no candidates")
	}

	var result Result
	for _, part := range decoded.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" && result.Image.Data == "" {
			result.Image = ImageContent{
				MimeType: part.InlineData.MimeType,
				Data:     part.InlineData.Data,
			}
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			if result.Text != "" {
				result.Text += "\n"
			}
			result.Text += text
		}
	}

	if result.Image.Data == "" {
		return Result{}, errors.New("imagegen: response contains no image")
	}
	if result.Image.MimeType == "" {
		result.Image.MimeType = "image/png"
	}

	return result, nil
}
