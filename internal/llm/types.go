package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderKind identifies an LLM backend family
type ProviderKind string

const (
	ProviderHosted   ProviderKind = "hosted-api"
	ProviderLocal    ProviderKind = "local-custom"
	ProviderOnDevice ProviderKind = "on-device"
)

// Kinds lists every provider kind in display order
var Kinds = []ProviderKind{ProviderHosted, ProviderLocal, ProviderOnDevice}

// ParseProviderKind accepts a provider kind by name. The legacy ids
// gemini-api and local-nano are accepted as aliases.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hosted-api", "hosted", "gemini-api", "gemini":
		return ProviderHosted, nil
	case "local-custom", "local", "openai":
		return ProviderLocal, nil
	case "on-device", "ondevice", "local-nano", "ollama":
		return ProviderOnDevice, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// SupportsImages reports whether a provider kind accepts image input
func (k ProviderKind) SupportsImages() bool {
	return k == ProviderHosted
}

// Valid reports whether k is a known kind
func (k ProviderKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// InputKind is the kind of user input a request carries
type InputKind string

const (
	InputText  InputKind = "text"
	InputImage InputKind = "image"
)

// Selection is the user's provider choice with optional overrides
type Selection struct {
	Kind     ProviderKind `json:"kind"`
	Model    string       `json:"model,omitempty"`
	Endpoint string       `json:"endpoint,omitempty"`
}

// Image is an inline image payload
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is one model invocation
type Request struct {
	Input    InputKind
	System   string
	Prompt   string
	Image    *Image
	Schema   *Schema
	Provider Selection
}

// Target is the fully resolved destination of a request
type Target struct {
	Kind       ProviderKind
	Model      string
	Endpoint   string
	Credential string
}

// Response is the raw model answer; parsing happens elsewhere
type Response struct {
	Content  string
	Model    string
	Provider ProviderKind
	Endpoint string
	Duration time.Duration
}

// Client is the interface for LLM providers
type Client interface {
	Kind() ProviderKind
	Complete(ctx context.Context, target Target, req *Request) (*Response, error)
}

// Prober is implemented by clients that can report model availability
type Prober interface {
	Probe(ctx context.Context, model string) Availability
}

// Availability is the result of a provider capability check
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
	Unknown     Availability = "unknown"
)

// ProviderStatus describes one provider for selection gating
type ProviderStatus struct {
	Kind           ProviderKind `json:"kind"`
	Availability   Availability `json:"availability"`
	Model          string       `json:"model,omitempty"`
	Endpoint       string       `json:"endpoint,omitempty"`
	SupportsImages bool         `json:"supports_images"`
}
