package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultOnDeviceModel is the on-device model used when none is configured
const DefaultOnDeviceModel = "gemma3:1b"

// Runtime is a model runtime on the same host
type Runtime interface {
	// Capabilities reports whether model can serve prompts right now
	Capabilities(ctx context.Context, model string) (Availability, error)
	// Prompt runs one system + user exchange and returns the raw answer
	Prompt(ctx context.Context, model, system, prompt string) (string, error)
}

// OllamaRuntime talks to a local Ollama daemon over its native API
type OllamaRuntime struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaRuntime creates a runtime client for baseURL (http://localhost:11434)
func NewOllamaRuntime(baseURL string, timeout time.Duration) *OllamaRuntime {
	return &OllamaRuntime{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ollamaRequest represents the Ollama API request format
type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

// ollamaResponse represents the Ollama API response format
type ollamaResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Capabilities lists installed models; a daemon that cannot be reached is unavailable
func (r *OllamaRuntime) Capabilities(ctx context.Context, model string) (Availability, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := r.ListModels(ctx)
	if err != nil {
		if isTransportError(err) {
			return Unavailable, nil
		}
		return Unknown, err
	}

	for _, m := range models {
		if m == model || m == model+":latest" {
			return Available, nil
		}
	}
	return Unavailable, nil
}

func (r *OllamaRuntime) Prompt(ctx context.Context, model, system, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(ollamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options:  &ollamaOptions{Temperature: LocalTemperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("%w: %w", errUndecodable, err)
	}
	return ollamaResp.Message.Content, nil
}

// ListModels returns installed models from Ollama
func (r *OllamaRuntime) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %w", errUndecodable, err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

// OnDeviceClient implements the Client interface on top of a host Runtime
type OnDeviceClient struct {
	runtime Runtime
}

// NewOnDeviceClient creates an on-device client; a nil runtime is never available
func NewOnDeviceClient(runtime Runtime) *OnDeviceClient {
	return &OnDeviceClient{runtime: runtime}
}

func (c *OnDeviceClient) Kind() ProviderKind {
	return ProviderOnDevice
}

// Probe never fails: runtime errors and panics both read as unknown
func (c *OnDeviceClient) Probe(ctx context.Context, model string) (a Availability) {
	if c.runtime == nil {
		return Unavailable
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("on-device capability probe panicked")
			a = Unknown
		}
	}()

	a, err := c.runtime.Capabilities(ctx, model)
	if err != nil {
		log.Debug().Err(err).Str("model", model).Msg("on-device capability probe failed")
		return Unknown
	}
	return a
}

func (c *OnDeviceClient) Complete(ctx context.Context, target Target, req *Request) (*Response, error) {
	if req.Image != nil || req.Input == InputImage {
		return nil, NewError(KindUnsupportedCapability, ProviderOnDevice, nil,
			"the on-device model does not support image input")
	}

	if a := c.Probe(ctx, target.Model); a != Available {
		return nil, NewError(KindUnsupportedCapability, ProviderOnDevice, nil,
			"on-device model %s is %s on this host", target.Model, a)
	}

	system := req.System
	if system == "" {
		system = SystemPromptJSONOnly
	}

	start := time.Now()
	text, err := c.runtime.Prompt(ctx, target.Model, system, req.Prompt)
	if err != nil {
		if errors.Is(err, errUndecodable) {
			return nil, NewError(KindMalformedResponse, ProviderOnDevice, err, "on-device runtime returned an unreadable response")
		}
		if isTransportError(err) {
			return nil, NewError(KindConnectionError, ProviderOnDevice, err, "failed to reach the on-device runtime")
		}
		return nil, NewError(KindProviderError, ProviderOnDevice, err, "on-device model failed")
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewError(KindMalformedResponse, ProviderOnDevice, nil, "on-device model returned an empty response")
	}

	return &Response{
		Content:  text,
		Model:    target.Model,
		Provider: ProviderOnDevice,
		Endpoint: target.Endpoint,
		Duration: time.Since(start),
	}, nil
}
