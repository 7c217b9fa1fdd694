package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the hosted model used when neither the selection nor config names one
const DefaultGeminiModel = "gemini-3-flash-preview"

// contentGenerator is the slice of the genai client the hosted provider calls
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements the Client interface for the hosted Gemini API
type GeminiClient struct {
	httpClient *http.Client

	// newGenerator builds an SDK client per request so credential changes apply immediately
	newGenerator func(ctx context.Context, apiKey, baseURL string) (contentGenerator, error)
}

// NewGeminiClient creates a new hosted client
func NewGeminiClient(timeout time.Duration) *GeminiClient {
	c := &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
	}
	c.newGenerator = c.sdkGenerator
	return c
}

func (c *GeminiClient) sdkGenerator(ctx context.Context, apiKey, baseURL string) (contentGenerator, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}

	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cli.Models, nil
}

func (c *GeminiClient) Kind() ProviderKind {
	return ProviderHosted
}

func (c *GeminiClient) Complete(ctx context.Context, target Target, req *Request) (*Response, error) {
	if strings.TrimSpace(target.Credential) == "" {
		return nil, NewError(KindMissingCredential, ProviderHosted, nil,
			"API key is not configured. Set it in settings or via GEMINI_API_KEY")
	}

	gen, err := c.newGenerator(ctx, target.Credential, target.Endpoint)
	if err != nil {
		return nil, NewError(KindProviderError, ProviderHosted, err, "failed to create hosted client")
	}

	parts := make([]*genai.Part, 0, 2)
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: req.Image.Data, MIMEType: req.Image.MIMEType},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema.GenAI(),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, target.Model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, NewError(KindMalformedResponse, ProviderHosted, nil, "hosted model returned an empty response")
	}

	return &Response{
		Content:  text,
		Model:    target.Model,
		Provider: ProviderHosted,
		Endpoint: target.Endpoint,
		Duration: time.Since(start),
	}, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func classifyGeminiError(err error) error {
	code, status := 0, ""
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}

	msg := err.Error()
	if code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return NewError(KindQuotaExceeded, ProviderHosted, err,
			"hosted API quota exceeded. Wait for the quota to reset or switch to another API key")
	}
	if code == 0 && isTransportError(err) {
		return NewError(KindConnectionError, ProviderHosted, err, "failed to reach the hosted API")
	}
	return NewError(KindProviderError, ProviderHosted, err, "hosted API request failed")
}
