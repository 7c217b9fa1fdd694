package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalTemperature is the sampling temperature sent to local servers
const LocalTemperature = 0.3

// OpenAICompatClient implements the Client interface for user-run servers
// speaking the OpenAI chat-completions protocol (Ollama, LM Studio, vLLM)
type OpenAICompatClient struct {
	httpClient *http.Client
}

// NewOpenAICompatClient creates a new local-custom client
func NewOpenAICompatClient(timeout time.Duration) *OpenAICompatClient {
	return &OpenAICompatClient{
		httpClient: &http.Client{
			Timeout: timeout, // local models can be slow
		},
	}
}

func (c *OpenAICompatClient) Kind() ProviderKind {
	return ProviderLocal
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAICompatClient) Complete(ctx context.Context, target Target, req *Request) (*Response, error) {
	if req.Image != nil || req.Input == InputImage {
		return nil, NewError(KindUnsupportedCapability, ProviderLocal, nil,
			"the local custom model does not support image input")
	}

	system := req.System
	if system == "" {
		system = SystemPromptJSONOnly
	}

	body, err := json.Marshal(chatRequest{
		Model: target.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: LocalTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindConnectionError, ProviderLocal, err, "invalid local model URL %q", target.Endpoint)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError(KindConnectionError, ProviderLocal, err,
			"failed to reach local model at %s. Check that the local model server is running and allows cross-origin requests", target.Endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Limit error body reading to 1KB
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, NewError(KindProviderError, ProviderLocal, nil,
			"local model server at %s returned status %d: %s", target.Endpoint, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, NewError(KindMalformedResponse, ProviderLocal, err, "local model returned an unreadable response")
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil ||
		strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, NewError(KindMalformedResponse, ProviderLocal, nil, "local model response has no message content")
	}

	model := chatResp.Model
	if model == "" {
		model = target.Model
	}

	return &Response{
		Content:  chatResp.Choices[0].Message.Content,
		Model:    model,
		Provider: ProviderLocal,
		Endpoint: target.Endpoint,
		Duration: time.Since(start),
	}, nil
}
