// Package metrics records operational counters and latencies.
package metrics

import "time"

// Recorder is implemented by metric sinks. Labels other than "outcome" are
// ignored to keep cardinality bounded.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Counter and latency names used across the module.
const (
	PriceCacheHit   = "price_cache_hit"
	PriceCacheMiss  = "price_cache_miss"
	PriceStable     = "price_stable"
	PriceFetchError = "price_fetch_error"
	PriceFetch      = "price_fetch"
	ToolCall        = "tool_call"
	WebhookVerify   = "webhook_verify"
)

// Outcome builds the label set for a success/failure outcome.
func Outcome(ok bool) map[string]string {
	if ok {
		return map[string]string{"outcome": "ok"}
	}
	return map[string]string{"outcome": "error"}
}
