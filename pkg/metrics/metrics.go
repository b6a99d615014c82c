// Package metrics defines the Prometheus collectors for the API and the
// workers. Every constructor accepts a nil registerer and then records
// nothing, so tests and tools can skip wiring a registry.
package metrics

const namespace = "foodapp"

// Run outcomes shared by the cron collectors.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
