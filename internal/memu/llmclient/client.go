// Package llmclient defines the small HTTP-profile interface the memorize
// and retrieve pipelines use for embeddings, text summarization, vision
// captioning, and audio transcription, keeping pipeline code independent
// of any specific model vendor. Every call names a configured profile
// (e.g. "embedding", "extraction", "vision", "transcription") rather than
// hardcoding an endpoint, the way internal/embedding/client.go threads a
// single EmbeddingConfig through its one call but generalized to several
// named configs.
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client is every capability a pipeline step may call through. A vendor is
// wired in by configuring Profiles on an HTTPClient, not by switching on a
// vendor name in pipeline code.
type Client interface {
	// Embed returns one embedding per text, in order, using the named
	// profile's embedding endpoint.
	Embed(ctx context.Context, profile string, texts []string) ([][]float32, error)
	// Summarize runs prompt/systemPrompt through the named profile's chat
	// model and returns its raw text response.
	Summarize(ctx context.Context, profile, prompt, systemPrompt string) (string, error)
	// Vision captions the image at imagePath given prompt/systemPrompt,
	// through the named profile.
	Vision(ctx context.Context, profile, prompt, imagePath, systemPrompt string) (string, error)
	// Transcribe returns the spoken-word transcript of the audio file at
	// audioPath, through the named profile.
	Transcribe(ctx context.Context, profile, audioPath string) (string, error)
}

// Profile is one HTTP endpoint configuration: base URL, path, model name,
// and how the API key is attached (as an Authorization bearer token, or a
// custom header).
type Profile struct {
	BaseURL   string        `yaml:"base_url"`
	Path      string        `yaml:"path"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key,omitempty"`
	APIHeader string        `yaml:"api_header,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

func (p Profile) url() string { return p.BaseURL + p.Path }

func (p Profile) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 30 * time.Second
	}
	return p.Timeout
}

func (p Profile) applyAuth(req *http.Request) {
	switch {
	case p.APIHeader == "Authorization":
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	case p.APIHeader != "":
		req.Header.Set(p.APIHeader, p.APIKey)
	}
}

// HTTPClient implements Client against a set of named Profiles, so a
// deployment can route embeddings, extraction, vision, and transcription
// to different backends without pipeline code knowing about any of them.
type HTTPClient struct {
	HTTP     *http.Client
	Profiles map[string]Profile
}

// NewHTTPClient constructs an HTTPClient with a default *http.Client.
func NewHTTPClient(profiles map[string]Profile) *HTTPClient {
	return &HTTPClient{HTTP: http.DefaultClient, Profiles: profiles}
}

func (c *HTTPClient) profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("llmclient: unconfigured profile %q", name)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Client.
func (c *HTTPClient) Embed(ctx context.Context, profile string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("llmclient: embed called with no inputs")
	}
	p, err := c.profile(profile)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(embedRequest{Model: p.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	var out embedResponse
	if err := c.doJSON(ctx, p, body, &out); err != nil {
		return nil, fmt.Errorf("llmclient: embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("llmclient: embed: got %d embeddings, want %d", len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(out.Data))
	for i := range out.Data {
		vecs[i] = out.Data[i].Embedding
	}
	return vecs, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize implements Client.
func (c *HTTPClient) Summarize(ctx context.Context, profile, prompt, systemPrompt string) (string, error) {
	p, err := c.profile(profile)
	if err != nil {
		return "", err
	}
	return c.chat(ctx, p, systemPrompt, prompt, "summarize")
}

// Vision implements Client. Images are inlined as a base64 data URL in the
// user message, matching how chat-completions-style vision endpoints
// accept image content.
func (c *HTTPClient) Vision(ctx context.Context, profile, prompt, imagePath, systemPrompt string) (string, error) {
	p, err := c.profile(profile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("llmclient: vision: read %s: %w", imagePath, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	userContent := fmt.Sprintf("%s\ndata:image/jpeg;base64,%s", prompt, encoded)
	return c.chat(ctx, p, systemPrompt, userContent, "vision")
}

func (c *HTTPClient) chat(ctx context.Context, p Profile, systemPrompt, userContent, op string) (string, error) {
	req := chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var out chatResponse
	if err := c.doJSON(ctx, p, body, &out); err != nil {
		return "", fmt.Errorf("llmclient: %s: %w", op, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llmclient: %s: empty response", op)
	}
	return out.Choices[0].Message.Content, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe implements Client, posting the audio file as a raw body to a
// Whisper-compatible transcription endpoint.
func (c *HTTPClient) Transcribe(ctx context.Context, profile, audioPath string) (string, error) {
	p, err := c.profile(profile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("llmclient: transcribe: read %s: %w", audioPath, err)
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, p.url(), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	p.applyAuth(req)

	resp, err := c.http().Do(req)
	if err != nil {
		return "", fmt.Errorf("llmclient: transcribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llmclient: transcribe: bad status %s: %s", resp.Status, string(b))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llmclient: transcribe: decode: %w", err)
	}
	return out.Text, nil
}

func (c *HTTPClient) http() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *HTTPClient) doJSON(ctx context.Context, profile Profile, body []byte, out any) error {
	cctx, cancel := context.WithTimeout(ctx, profile.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, profile.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	profile.applyAuth(req)

	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("bad status %s: %s", resp.Status, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (%s): %w", string(respBody[:min(200, len(respBody))]), err)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
