// Package calllog provides value types for the history of service calls.
package calllog

import "time"

// Outcome classifies how a call ended.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeVendorError    Outcome = "vendor_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeParseError     Outcome = "parse_error"
)

// Entry records one dispatched call (value type).
// Validation and configuration failures never reach the wire and are not recorded.
type Entry struct {
	ID            string
	Action        string
	Path          string
	Version       string
	Upload        bool
	StatusCode    int
	Outcome       Outcome
	ErrorCode     string
	Attempts      int
	DurationMs    int64
	RequestBytes  int64
	ResponseBytes int64
	Timestamp     time.Time
}

// Summary aggregates entries.
type Summary struct {
	Calls        int64
	ByOutcome    map[Outcome]int64
	Retries      int64
	AvgLatencyMs int64
	BytesOut     int64
	BytesIn      int64
	First        time.Time
	Last         time.Time
}

// Summarize combines entries into a summary.
// This is a PURE function.
func Summarize(entries []Entry) Summary {
	s := Summary{ByOutcome: make(map[Outcome]int64)}
	if len(entries) == 0 {
		return s
	}

	var totalLatency int64
	for _, e := range entries {
		s.Calls++
		s.ByOutcome[e.Outcome]++
		if e.Attempts > 1 {
			s.Retries += int64(e.Attempts - 1)
		}
		totalLatency += e.DurationMs
		s.BytesOut += e.RequestBytes
		s.BytesIn += e.ResponseBytes

		if s.First.IsZero() || e.Timestamp.Before(s.First) {
			s.First = e.Timestamp
		}
		if e.Timestamp.After(s.Last) {
			s.Last = e.Timestamp
		}
	}
	s.AvgLatencyMs = totalLatency / s.Calls
	return s
}

// Failed reports whether the call did not produce a usable reply.
func (e Entry) Failed() bool {
	return e.Outcome != OutcomeOK
}
