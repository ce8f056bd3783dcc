package ports

import "time"

// Metrics records engine activity
type Metrics interface {
	RecordRemoteCall(function, status string, duration time.Duration)
	RecordGeneration(format, outcome string)
	RecordOutputs(format string, count int)
	RecordCacheLookup(hit bool)
	RecordCacheEviction(count int)
	RecordAnalysis(kind, result string)
	RecordAutosave(result string, duration time.Duration)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) RecordRemoteCall(string, string, time.Duration) {}
func (NopMetrics) RecordGeneration(string, string)                {}
func (NopMetrics) RecordOutputs(string, int)                      {}
func (NopMetrics) RecordCacheLookup(bool)                         {}
func (NopMetrics) RecordCacheEviction(int)                        {}
func (NopMetrics) RecordAnalysis(string, string)                  {}
func (NopMetrics) RecordAutosave(string, time.Duration)           {}
