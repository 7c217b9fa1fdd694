package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeGenerator records the last call and answers with a canned response
type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newFakeGemini(gen *fakeGenerator) (*GeminiClient, *string) {
	var gotKey string
	c := NewGeminiClient(time.Second)
	c.newGenerator = func(ctx context.Context, apiKey, baseURL string) (contentGenerator, error) {
		gotKey = apiKey
		return gen, nil
	}
	return c, &gotKey
}

func TestGeminiClient_Kind(t *testing.T) {
	assert.Equal(t, ProviderHosted, NewGeminiClient(time.Second).Kind())
}

func TestGeminiClient_MissingCredential(t *testing.T) {
	c := NewGeminiClient(time.Second)
	c.newGenerator = func(ctx context.Context, apiKey, baseURL string) (contentGenerator, error) {
		t.Fatal("no client should be built without a credential")
		return nil, nil
	}

	_, err := c.Complete(context.Background(), Target{Kind: ProviderHosted, Model: "m", Credential: "  "}, &Request{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestGeminiClient_Complete_Text(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"featureName":"x","scenarios":[]}`)}
	c, gotKey := newFakeGemini(gen)

	resp, err := c.Complete(context.Background(),
		Target{Kind: ProviderHosted, Model: "gemini-3-flash-preview", Credential: "key-1"},
		&Request{Input: InputText, Prompt: "生成用例", Schema: TestSuiteSchema()})
	require.NoError(t, err)

	assert.Equal(t, "key-1", *gotKey)
	assert.Equal(t, "gemini-3-flash-preview", gen.model)
	assert.Equal(t, `{"featureName":"x","scenarios":[]}`, resp.Content)
	assert.Equal(t, ProviderHosted, resp.Provider)

	require.Len(t, gen.contents, 1)
	require.Len(t, gen.contents[0].Parts, 1)
	assert.Equal(t, "生成用例", gen.contents[0].Parts[0].Text)

	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
	assert.Equal(t, genai.TypeObject, gen.config.ResponseSchema.Type)
	assert.Nil(t, gen.config.SystemInstruction)
}

func TestGeminiClient_Complete_Image(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{}`)}
	c, _ := newFakeGemini(gen)

	_, err := c.Complete(context.Background(),
		Target{Kind: ProviderHosted, Model: "m", Credential: "k"},
		&Request{
			Input:  InputImage,
			Prompt: "分析流程图并生成测试用例。",
			Image:  &Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"},
			System: "sys",
		})
	require.NoError(t, err)

	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2, 3}, parts[0].InlineData.Data)
	assert.Equal(t, "分析流程图并生成测试用例。", parts[1].Text)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, "sys", gen.config.SystemInstruction.Parts[0].Text)
}

func TestGeminiClient_Complete_EmptyResponse(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
	c, _ := newFakeGemini(gen)

	_, err := c.Complete(context.Background(), Target{Model: "m", Credential: "k"}, &Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGeminiClient_Complete_SkipsThoughtParts(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: `{"a":1}`},
			}},
		}},
	}}
	c, _ := newFakeGemini(gen)

	resp, err := c.Complete(context.Background(), Target{Model: "m", Credential: "k"}, &Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *Error
	}{
		{"api 429", genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"}, ErrQuotaExceeded},
		{"api 429 pointer", &genai.APIError{Code: 429}, ErrQuotaExceeded},
		{"status only", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, ErrQuotaExceeded},
		{"api 500", genai.APIError{Code: 500, Message: "internal"}, ErrProvider},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrConnection},
		{"other", errors.New("boom"), ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGeminiError(tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGeminiClient_SDK_Success(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.Contains(r.URL.Path, "gemini-3-flash-preview:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gen, _ := body["generationConfig"].(map[string]any)
		if gen["responseMimeType"] != "application/json" {
			t.Errorf("responseMimeType = %v", gen["responseMimeType"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": `{"featureName":"登录","scenarios":[]}`}},
				},
			}},
		})
	}))
	defer server.Close()

	c := NewGeminiClient(5 * time.Second)
	resp, err := c.Complete(context.Background(),
		Target{Model: "gemini-3-flash-preview", Endpoint: server.URL, Credential: "test-key"},
		&Request{Prompt: "p", Schema: TestSuiteSchema()})
	require.NoError(t, err)
	assert.Equal(t, `{"featureName":"登录","scenarios":[]}`, resp.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeminiClient_SDK_Quota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	c := NewGeminiClient(5 * time.Second)
	_, err := c.Complete(context.Background(),
		Target{Model: "gemini-3-flash-preview", Endpoint: server.URL, Credential: "test-key"},
		&Request{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "API key")
}
