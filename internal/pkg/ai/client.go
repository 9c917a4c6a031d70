package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// Completer is the outbound seam to the generative AI provider. Handlers and
// the operations service depend on this interface so tests can run against a
// fake without process-wide state.
type Completer interface {
	CompleteWithImages(ctx context.Context, prompt string, images []string) (string, error)
	CompleteStructured(ctx context.Context, system, prompt string, schema json.RawMessage) (string, error)
}

// OpenAIClient implements Completer against the provider REST API.
type OpenAIClient struct {
	APIKey      string
	APIBaseURL  string
	VisionModel string
	TextModel   string
	MaxTokens   int

	// Timeout bounds each upstream call; on expiry the operation fails with
	// ErrUpstreamTimeout instead of hanging the request.
	Timeout time.Duration

	HTTPClient *http.Client
}

// NewOpenAIClientFromEnv builds the AI client from environment config.
func NewOpenAIClientFromEnv() *OpenAIClient {
	timeout := 60 * time.Second
	if raw := env.GetEnv("OPENAI_TIMEOUT_SECONDS", ""); raw != "" {
		if d, err := time.ParseDuration(raw + "s"); err == nil && d > 0 {
			timeout = d
		}
	}
	return &OpenAIClient{
		APIKey:      strings.TrimSpace(env.GetEnv("OPENAI_API_KEY", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("OPENAI_API_BASE_URL", defaultOpenAIBaseURL), "/"),
		VisionModel: env.GetEnv("OPENAI_VISION_MODEL", "gpt-4o"),
		TextModel:   env.GetEnv("OPENAI_TEXT_MODEL", "gpt-4o"),
		MaxTokens:   2000,
		Timeout:     timeout,
		HTTPClient:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type structuredResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// CompleteWithImages sends a vision prompt with attached images and returns
// the raw model text.
func (c *OpenAIClient) CompleteWithImages(ctx context.Context, prompt string, images []string) (string, error) {
	content := make([]map[string]any, 0, len(images)+1)
	content = append(content, map[string]any{"type": "text", "text": prompt})
	for _, img := range images {
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": ensureDataURL(img)},
		})
	}

	body := map[string]any{
		"model":      c.VisionModel,
		"max_tokens": c.maxTokens(),
		"messages":   []chatMessage{{Role: "user", Content: content}},
	}

	var out chatCompletionResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUpstreamFailure)
	}
	return out.Choices[0].Message.Content, nil
}

// CompleteStructured sends a text prompt with a JSON schema constraint and
// returns the raw model text.
func (c *OpenAIClient) CompleteStructured(ctx context.Context, system, prompt string, schema json.RawMessage) (string, error) {
	body := map[string]any{
		"model": c.TextModel,
		"input": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   "solution",
				"schema": schema,
			},
		},
	}

	var out structuredResponse
	if err := c.post(ctx, "/v1/responses", body, &out); err != nil {
		return "", err
	}
	if out.OutputText != "" {
		return out.OutputText, nil
	}
	for _, item := range out.Output {
		for _, part := range item.Content {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: empty output", ErrUpstreamFailure)
}

func (c *OpenAIClient) post(ctx context.Context, path string, body any, out any) error {
	if c.APIKey == "" {
		return errors.New("OPENAI_API_KEY is not configured")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status=%d body=%s", ErrUpstreamFailure, resp.StatusCode, truncate(string(raw), 512))
	}
	return json.Unmarshal(raw, out)
}

func (c *OpenAIClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *OpenAIClient) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ensureDataURL turns a bare base64 string into a data URL; already-prefixed
// inputs pass through.
func ensureDataURL(img string) string {
	if strings.HasPrefix(img, "data:image/") {
		return img
	}
	return "data:image/jpeg;base64," + img
}
