package llm

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewUsageTracker(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{
		MaxRecords: 100,
	})

	if tracker == nil {
		t.Fatal("Expected non-nil tracker")
	}
	if tracker.maxRecords != 100 {
		t.Errorf("MaxRecords = %d, want 100", tracker.maxRecords)
	}
}

func TestNewUsageTracker_Defaults(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{})

	if tracker.maxRecords != 1000 {
		t.Errorf("Default MaxRecords = %d, want 1000", tracker.maxRecords)
	}
}

func TestUsageTracker_Stats(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{MaxRecords: 10})
	base := time.Now()

	tracker.Record(UsageRecord{Provider: ProviderHosted, Model: "gemini", Duration: 100, Timestamp: base})
	tracker.Record(UsageRecord{Provider: ProviderHosted, Model: "gemini", Duration: 300, Timestamp: base.Add(time.Second), ErrorKind: KindQuotaExceeded})
	tracker.Record(UsageRecord{Provider: ProviderLocal, Model: "deepseek-r1", Duration: 50, Timestamp: base})

	stats := tracker.Stats()
	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if stats.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", stats.TotalFailures)
	}
	if len(stats.Providers) != 2 {
		t.Fatalf("len(Providers) = %d, want 2", len(stats.Providers))
	}

	hosted := stats.Providers[0]
	if hosted.Provider != ProviderHosted {
		t.Fatalf("Providers[0] = %s, want hosted-api", hosted.Provider)
	}
	if hosted.Requests != 2 || hosted.Failures != 1 {
		t.Errorf("hosted requests/failures = %d/%d, want 2/1", hosted.Requests, hosted.Failures)
	}
	if hosted.AvgDurationMS != 200 {
		t.Errorf("hosted AvgDurationMS = %v, want 200", hosted.AvgDurationMS)
	}
	if hosted.LastErrorKind != KindQuotaExceeded {
		t.Errorf("hosted LastErrorKind = %s, want quota_exceeded", hosted.LastErrorKind)
	}
}

func TestUsageTracker_RecentRecords(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{MaxRecords: 10})

	for i := 0; i < 5; i++ {
		tracker.Record(UsageRecord{Provider: ProviderLocal, Model: "test-model"})
	}

	records := tracker.RecentRecords(10)
	if len(records) != 5 {
		t.Errorf("RecentRecords returned %d records, want 5", len(records))
	}
}

func TestUsageTracker_Wraparound(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{MaxRecords: 3})

	for _, m := range []string{"a", "b", "c", "d"} {
		tracker.Record(UsageRecord{Provider: ProviderLocal, Model: m})
	}

	records := tracker.RecentRecords(10)
	if len(records) != 3 {
		t.Fatalf("RecentRecords returned %d records, want 3", len(records))
	}
	if records[0].Model != "d" || records[2].Model != "b" {
		t.Errorf("records = %s..%s, want d..b", records[0].Model, records[2].Model)
	}
	if got := tracker.Stats().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}

func TestUsageTracker_ExportJSON(t *testing.T) {
	tracker := NewUsageTracker(UsageTrackerConfig{MaxRecords: 5})
	tracker.Record(UsageRecord{Provider: ProviderOnDevice, Model: "gemma3:1b", ErrorKind: KindUnsupportedCapability})

	data, err := tracker.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	var records []UsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(records) != 1 || records[0].ErrorKind != KindUnsupportedCapability {
		t.Errorf("records = %+v", records)
	}
}
