package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newOllamaServer(t *testing.T, models []string, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			list := make([]map[string]string, len(models))
			for i, m := range models {
				list[i] = map[string]string{"name": m}
			}
			json.NewEncoder(w).Encode(map[string]any{"models": list})
		case "/api/chat":
			var req ollamaRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Stream {
				t.Error("stream should be false")
			}
			if req.Format != "json" {
				t.Errorf("format = %q, want json", req.Format)
			}
			json.NewEncoder(w).Encode(ollamaResponse{
				Model:   req.Model,
				Message: chatMessage{Role: "assistant", Content: reply},
				Done:    true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestNewOllamaRuntime(t *testing.T) {
	r := NewOllamaRuntime("http://localhost:11434/", time.Minute)

	if r.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %s, want http://localhost:11434", r.baseURL)
	}
	if r.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
}

func TestOllamaRuntime_Capabilities(t *testing.T) {
	server := newOllamaServer(t, []string{"gemma3:1b", "llama3:latest"}, "")
	defer server.Close()

	r := NewOllamaRuntime(server.URL, time.Minute)

	tests := []struct {
		model string
		want  Availability
	}{
		{"gemma3:1b", Available},
		{"llama3", Available},
		{"qwen2.5:7b", Unavailable},
	}
	for _, tt := range tests {
		got, err := r.Capabilities(context.Background(), tt.model)
		if err != nil {
			t.Fatalf("Capabilities(%s) error = %v", tt.model, err)
		}
		if got != tt.want {
			t.Errorf("Capabilities(%s) = %s, want %s", tt.model, got, tt.want)
		}
	}
}

func TestOllamaRuntime_Capabilities_Unreachable(t *testing.T) {
	server := newOllamaServer(t, nil, "")
	url := server.URL
	server.Close()

	r := NewOllamaRuntime(url, time.Minute)
	got, err := r.Capabilities(context.Background(), "gemma3:1b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Unavailable {
		t.Errorf("Capabilities() = %s, want unavailable", got)
	}
}

func TestOllamaRuntime_Prompt(t *testing.T) {
	server := newOllamaServer(t, []string{"gemma3:1b"}, `{"featureName":"x","scenarios":[]}`)
	defer server.Close()

	r := NewOllamaRuntime(server.URL, time.Minute)
	got, err := r.Prompt(context.Background(), "gemma3:1b", SystemPromptJSONOnly, "hi")
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if got != `{"featureName":"x","scenarios":[]}` {
		t.Errorf("Prompt() = %q", got)
	}
}

func TestOllamaRuntime_Prompt_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("out of memory"))
	}))
	defer server.Close()

	r := NewOllamaRuntime(server.URL, time.Minute)
	if _, err := r.Prompt(context.Background(), "m", "", "hi"); err == nil {
		t.Error("expected error for 500 response")
	}
}

// stubRuntime is a scripted Runtime
type stubRuntime struct {
	availability Availability
	capErr       error
	panicMsg     string
	reply        string
	promptErr    error
	prompts      int
}

func (s *stubRuntime) Capabilities(ctx context.Context, model string) (Availability, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.availability, s.capErr
}

func (s *stubRuntime) Prompt(ctx context.Context, model, system, prompt string) (string, error) {
	s.prompts++
	return s.reply, s.promptErr
}

func TestOnDeviceClient_TruncatedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "gemma3:1b"}}})
		case "/api/chat":
			w.Write([]byte(`{"model":"gemma3:1b","message":{"content":"{\"feat`))
		}
	}))
	defer server.Close()

	c := NewOnDeviceClient(NewOllamaRuntime(server.URL, time.Minute))
	_, err := c.Complete(context.Background(), Target{Model: "gemma3:1b"}, &Request{Prompt: "p"})
	if KindOf(err) != KindMalformedResponse {
		t.Errorf("kind = %s (%v), want malformed_response", KindOf(err), err)
	}
}

func TestOnDeviceClient_Probe(t *testing.T) {
	tests := []struct {
		name    string
		runtime Runtime
		want    Availability
	}{
		{"nil runtime", nil, Unavailable},
		{"available", &stubRuntime{availability: Available}, Available},
		{"unavailable", &stubRuntime{availability: Unavailable}, Unavailable},
		{"error", &stubRuntime{capErr: errors.New("bad")}, Unknown},
		{"panic", &stubRuntime{panicMsg: "runtime exploded"}, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOnDeviceClient(tt.runtime)
			if got := c.Probe(context.Background(), "gemma3:1b"); got != tt.want {
				t.Errorf("Probe() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOnDeviceClient_Complete(t *testing.T) {
	rt := &stubRuntime{availability: Available, reply: `{"featureName":"x"}`}
	c := NewOnDeviceClient(rt)

	resp, err := c.Complete(context.Background(), Target{Model: "gemma3:1b"}, &Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"featureName":"x"}` || resp.Provider != ProviderOnDevice {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOnDeviceClient_NotAvailable(t *testing.T) {
	for _, a := range []Availability{Unavailable, Unknown} {
		rt := &stubRuntime{availability: a}
		c := NewOnDeviceClient(rt)

		_, err := c.Complete(context.Background(), Target{Model: "gemma3:1b"}, &Request{Prompt: "p"})
		if !errors.Is(err, ErrUnsupportedCapability) {
			t.Errorf("availability %s: error = %v, want unsupported capability", a, err)
		}
		if rt.prompts != 0 {
			t.Errorf("availability %s: runtime was prompted", a)
		}
	}
}

func TestOnDeviceClient_Image(t *testing.T) {
	c := NewOnDeviceClient(&stubRuntime{availability: Available})
	_, err := c.Complete(context.Background(), Target{Model: "m"}, &Request{Input: InputImage, Prompt: "p"})
	if !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("error = %v, want unsupported capability", err)
	}
}

func TestOnDeviceClient_PromptFailure(t *testing.T) {
	c := NewOnDeviceClient(&stubRuntime{availability: Available, promptErr: errors.New("model crashed")})
	_, err := c.Complete(context.Background(), Target{Model: "m"}, &Request{Prompt: "p"})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("error = %v, want provider error", err)
	}

	c = NewOnDeviceClient(&stubRuntime{availability: Available, reply: ""})
	_, err = c.Complete(context.Background(), Target{Model: "m"}, &Request{Prompt: "p"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want malformed response", err)
	}
}
