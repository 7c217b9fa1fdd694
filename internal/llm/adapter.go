package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/settings"
)

// Defaults are the configured fallbacks used during target resolution
type Defaults struct {
	Provider         ProviderKind
	HostedModel      string
	HostedBaseURL    string
	HostedCredential string
	OnDeviceModel    string
	OnDeviceURL      string
}

// DefaultsFromConfig maps LLM configuration onto resolution defaults
func DefaultsFromConfig(cfg config.LLMConfig) Defaults {
	kind, err := ParseProviderKind(cfg.DefaultProvider)
	if err != nil {
		kind = ProviderHosted
	}
	return Defaults{
		Provider:         kind,
		HostedModel:      cfg.GeminiModel,
		HostedBaseURL:    cfg.GeminiBaseURL,
		HostedCredential: cfg.GeminiAPIKey,
		OnDeviceModel:    cfg.OnDeviceModel,
		OnDeviceURL:      cfg.OnDeviceURL,
	}
}

// Adapter dispatches requests to the selected provider behind one contract.
// It transports and classifies; parsing the answer is the caller's job.
type Adapter struct {
	store    settings.Store
	defaults Defaults
	clients  map[ProviderKind]Client
	usage    *UsageTracker
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithClient registers a client for its kind, replacing any previous one
func WithClient(c Client) AdapterOption {
	return func(a *Adapter) {
		a.clients[c.Kind()] = c
	}
}

// WithUsageTracker replaces the default usage tracker
func WithUsageTracker(u *UsageTracker) AdapterOption {
	return func(a *Adapter) {
		a.usage = u
	}
}

// NewAdapter creates an adapter with no clients beyond those passed as options
func NewAdapter(store settings.Store, defaults Defaults, opts ...AdapterOption) *Adapter {
	if defaults.Provider == "" {
		defaults.Provider = ProviderHosted
	}

	a := &Adapter{
		store:    store,
		defaults: defaults,
		clients:  make(map[ProviderKind]Client),
		usage:    NewUsageTracker(UsageTrackerConfig{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAdapterFromConfig wires the hosted, local-custom and on-device clients
func NewAdapterFromConfig(cfg config.LLMConfig, store settings.Store) *Adapter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute // LLM calls can be slow
	}

	var runtime Runtime
	if cfg.OnDeviceURL != "" {
		runtime = NewOllamaRuntime(cfg.OnDeviceURL, timeout)
	}

	return NewAdapter(store, DefaultsFromConfig(cfg),
		WithClient(NewGeminiClient(timeout)),
		WithClient(NewOpenAICompatClient(timeout)),
		WithClient(NewOnDeviceClient(runtime)),
	)
}

// DefaultProvider returns the kind used when a selection names none
func (a *Adapter) DefaultProvider() ProviderKind {
	return a.defaults.Provider
}

// Usage returns the usage tracker
func (a *Adapter) Usage() *UsageTracker {
	return a.usage
}

// Resolve turns a selection into a concrete target, reading the settings store now
func (a *Adapter) Resolve(ctx context.Context, sel Selection) (Target, error) {
	kind := sel.Kind
	if kind == "" {
		kind = a.defaults.Provider
	}
	target := Target{Kind: kind}

	lookup := func(key, fallback string) (string, error) {
		v, err := settings.Lookup(ctx, a.store, key, fallback)
		if err != nil {
			return "", NewError(KindProviderError, kind, err, "failed to read setting %s", key)
		}
		return v, nil
	}

	var err error
	switch kind {
	case ProviderHosted:
		if target.Credential, err = lookup(settings.KeyCredential, a.defaults.HostedCredential); err != nil {
			return Target{}, err
		}
		target.Model = firstNonEmpty(sel.Model, a.defaults.HostedModel, DefaultGeminiModel)
		target.Endpoint = firstNonEmpty(sel.Endpoint, a.defaults.HostedBaseURL)

	case ProviderLocal:
		target.Endpoint = strings.TrimSpace(sel.Endpoint)
		if target.Endpoint == "" {
			if target.Endpoint, err = lookup(settings.KeyLocalModelURL, settings.DefaultLocalModelURL); err != nil {
				return Target{}, err
			}
		}
		target.Model = strings.TrimSpace(sel.Model)
		if target.Model == "" {
			if target.Model, err = lookup(settings.KeyLocalModelName, settings.DefaultLocalModelName); err != nil {
				return Target{}, err
			}
		}

	case ProviderOnDevice:
		target.Model = firstNonEmpty(sel.Model, a.defaults.OnDeviceModel, DefaultOnDeviceModel)
		target.Endpoint = a.defaults.OnDeviceURL

	default:
		return Target{}, NewError(KindUnsupportedCapability, kind, nil, "unknown provider %q", kind)
	}

	return target, nil
}

// Generate sends one request to the selected provider
func (a *Adapter) Generate(ctx context.Context, req *Request) (*Response, error) {
	kind := req.Provider.Kind
	if kind == "" {
		kind = a.defaults.Provider
	}
	if !kind.Valid() {
		return nil, NewError(KindUnsupportedCapability, kind, nil, "unknown provider %q", kind)
	}
	if (req.Image != nil || req.Input == InputImage) && !kind.SupportsImages() {
		return nil, NewError(KindUnsupportedCapability, kind, nil, "provider %s does not support image input", kind)
	}

	client, ok := a.clients[kind]
	if !ok {
		return nil, NewError(KindUnsupportedCapability, kind, nil, "provider %s is not configured", kind)
	}

	sel := req.Provider
	sel.Kind = kind
	target, err := a.Resolve(ctx, sel)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("provider", string(kind)).
		Str("model", target.Model).
		Str("endpoint", target.Endpoint).
		Str("input", string(req.Input)).
		Msg("sending LLM request")

	start := time.Now()
	resp, err := client.Complete(ctx, target, req)
	duration := time.Since(start)

	record := UsageRecord{
		Provider: kind,
		Model:    target.Model,
		Duration: float64(duration.Milliseconds()),
	}
	if err != nil {
		record.ErrorKind = KindOf(err)
		a.usage.Record(record)

		log.Warn().
			Err(err).
			Str("provider", string(kind)).
			Str("model", target.Model).
			Dur("duration", duration).
			Str("error_kind", string(record.ErrorKind)).
			Msg("LLM request failed")
		return nil, err
	}
	a.usage.Record(record)

	log.Info().
		Str("provider", string(kind)).
		Str("model", resp.Model).
		Dur("duration", duration).
		Int("bytes", len(resp.Content)).
		Msg("LLM request completed")

	return resp, nil
}

// Providers lists every provider kind with its availability
func (a *Adapter) Providers(ctx context.Context) []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(Kinds))

	for _, kind := range Kinds {
		status := ProviderStatus{
			Kind:           kind,
			Availability:   Unavailable,
			SupportsImages: kind.SupportsImages(),
		}

		client, ok := a.clients[kind]
		target, err := a.Resolve(ctx, Selection{Kind: kind})
		if ok && err == nil {
			status.Model = target.Model
			status.Endpoint = target.Endpoint

			switch kind {
			case ProviderHosted:
				if strings.TrimSpace(target.Credential) != "" {
					status.Availability = Available
				}
			case ProviderLocal:
				status.Availability = Unknown
			default:
				if p, ok := client.(Prober); ok {
					status.Availability = p.Probe(ctx, target.Model)
				} else {
					status.Availability = Unknown
				}
			}
		}

		statuses = append(statuses, status)
	}

	return statuses
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
