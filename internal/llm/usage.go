package llm

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UsageRecord represents a single model call
type UsageRecord struct {
	ID        uuid.UUID    `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Provider  ProviderKind `json:"provider"`
	Model     string       `json:"model"`
	Duration  float64      `json:"duration_ms"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
}

// Success reports whether the call returned content
func (r UsageRecord) Success() bool {
	return r.ErrorKind == ""
}

// ProviderUsage aggregates the calls made to one provider
type ProviderUsage struct {
	Provider      ProviderKind `json:"provider"`
	Requests      int64        `json:"requests"`
	Failures      int64        `json:"failures"`
	AvgDurationMS float64      `json:"avg_duration_ms"`
	LastErrorKind ErrorKind    `json:"last_error_kind,omitempty"`
	LastUsed      time.Time    `json:"last_used"`
}

// UsageStats is a snapshot of the rolling window
type UsageStats struct {
	TotalRequests int64           `json:"total_requests"`
	TotalFailures int64           `json:"total_failures"`
	Providers     []ProviderUsage `json:"providers"`
}

// UsageTracker keeps a rolling window of recent model calls in memory
type UsageTracker struct {
	mu sync.RWMutex

	records     []UsageRecord
	maxRecords  int
	recordIndex int
}

// UsageTrackerConfig configures the usage tracker
type UsageTrackerConfig struct {
	MaxRecords int // Max records to keep in memory
}

// NewUsageTracker creates a new usage tracker
func NewUsageTracker(cfg UsageTrackerConfig) *UsageTracker {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 1000
	}

	return &UsageTracker{
		records:    make([]UsageRecord, cfg.MaxRecords),
		maxRecords: cfg.MaxRecords,
	}
}

// Record records a usage event, overwriting the oldest once the window is full
func (t *UsageTracker) Record(record UsageRecord) {
	record.ID = uuid.New()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	t.mu.Lock()
	t.records[t.recordIndex] = record
	t.recordIndex = (t.recordIndex + 1) % t.maxRecords
	t.mu.Unlock()

	log.Debug().
		Str("provider", string(record.Provider)).
		Str("model", record.Model).
		Float64("duration_ms", record.Duration).
		Str("error_kind", string(record.ErrorKind)).
		Msg("recorded LLM usage")
}

// Stats aggregates the window per provider
func (t *UsageTracker) Stats() UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type acc struct {
		ProviderUsage
		totalMS float64
	}
	byProvider := make(map[ProviderKind]*acc)

	var stats UsageStats
	for _, r := range t.records {
		if r.ID == uuid.Nil {
			continue
		}

		a, ok := byProvider[r.Provider]
		if !ok {
			a = &acc{ProviderUsage: ProviderUsage{Provider: r.Provider}}
			byProvider[r.Provider] = a
		}
		a.Requests++
		a.totalMS += r.Duration
		if !r.Success() {
			a.Failures++
			stats.TotalFailures++
		}
		if r.Timestamp.After(a.LastUsed) {
			a.LastUsed = r.Timestamp
			a.LastErrorKind = r.ErrorKind
		}
		stats.TotalRequests++
	}

	stats.Providers = make([]ProviderUsage, 0, len(byProvider))
	for _, a := range byProvider {
		a.AvgDurationMS = a.totalMS / float64(a.Requests)
		stats.Providers = append(stats.Providers, a.ProviderUsage)
	}
	sort.Slice(stats.Providers, func(i, j int) bool {
		return stats.Providers[i].Provider < stats.Providers[j].Provider
	})

	return stats
}

// RecentRecords returns up to limit records, most recent first
func (t *UsageTracker) RecentRecords(limit int) []UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit > t.maxRecords {
		limit = t.maxRecords
	}

	result := make([]UsageRecord, 0, limit)

	// Start from most recent
	idx := (t.recordIndex - 1 + t.maxRecords) % t.maxRecords
	for i := 0; i < t.maxRecords && len(result) < limit; i++ {
		if t.records[idx].ID != uuid.Nil {
			result = append(result, t.records[idx])
		}
		idx = (idx - 1 + t.maxRecords) % t.maxRecords
	}

	return result
}

// ExportJSON exports usage records as JSON
func (t *UsageTracker) ExportJSON() ([]byte, error) {
	return json.Marshal(t.RecentRecords(t.maxRecords))
}
