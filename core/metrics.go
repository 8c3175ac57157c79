package core

import "context"

// NopMetricsRecorder discards all measurements. It backs the service
// whenever no recorder is injected so instrumentation call sites never
// nil-check.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// cloneTags copies tag maps before handing them to recorders, which may
// retain them past the call.
func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
