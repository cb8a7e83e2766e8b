package calllog_test

import (
	"testing"
	"time"

	"github.com/dominhhai/mws-sdk/domain/calllog"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestSummarize(t *testing.T) {
	entries := []calllog.Entry{
		{ID: "1", Outcome: calllog.OutcomeOK, Attempts: 1, DurationMs: 100, RequestBytes: 10, ResponseBytes: 1000, Timestamp: baseTime.Add(time.Minute)},
		{ID: "2", Outcome: calllog.OutcomeVendorError, Attempts: 3, DurationMs: 300, RequestBytes: 20, ResponseBytes: 200, Timestamp: baseTime},
		{ID: "3", Outcome: calllog.OutcomeOK, Attempts: 1, DurationMs: 200, RequestBytes: 30, ResponseBytes: 300, Timestamp: baseTime.Add(2 * time.Minute)},
	}

	s := calllog.Summarize(entries)

	if s.Calls != 3 {
		t.Errorf("Calls = %d, want 3", s.Calls)
	}
	if s.ByOutcome[calllog.OutcomeOK] != 2 || s.ByOutcome[calllog.OutcomeVendorError] != 1 {
		t.Errorf("ByOutcome = %v", s.ByOutcome)
	}
	if s.Retries != 2 {
		t.Errorf("Retries = %d, want 2", s.Retries)
	}
	if s.AvgLatencyMs != 200 {
		t.Errorf("AvgLatencyMs = %d, want 200", s.AvgLatencyMs)
	}
	if s.BytesOut != 60 || s.BytesIn != 1500 {
		t.Errorf("BytesOut = %d, BytesIn = %d", s.BytesOut, s.BytesIn)
	}
	if !s.First.Equal(baseTime) || !s.Last.Equal(baseTime.Add(2*time.Minute)) {
		t.Errorf("First = %v, Last = %v", s.First, s.Last)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := calllog.Summarize(nil)
	if s.Calls != 0 || s.AvgLatencyMs != 0 {
		t.Errorf("Summarize(nil) = %+v", s)
	}
	if s.ByOutcome == nil {
		t.Error("ByOutcome should be initialized")
	}
}

func TestEntry_Failed(t *testing.T) {
	if (calllog.Entry{Outcome: calllog.OutcomeOK}).Failed() {
		t.Error("ok entry reported as failed")
	}
	if !(calllog.Entry{Outcome: calllog.OutcomeTransportError}).Failed() {
		t.Error("transport error entry not reported as failed")
	}
}
