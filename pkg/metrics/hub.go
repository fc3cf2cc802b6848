// Package metrics defines the observability interfaces for the hub.
//
// Implementations are optional: every consumer accepts a nil metrics
// value and skips collection with zero overhead.
package metrics

// HubMetrics provides observability for node sessions and stream fan-out.
type HubMetrics interface {
	// NodeAdmitted increments the gauge of live control sessions.
	NodeAdmitted()

	// NodeRemoved decrements the gauge of live control sessions.
	NodeRemoved()

	// SampleIngested records one archived payload of the given kind.
	SampleIngested(kind string, bytes int)

	// SamplePublished records one payload fanned out on a stream bus.
	SamplePublished(kind string)

	// SubscriberAttached increments the gauge of frontend subscribers.
	SubscriberAttached(kind string)

	// SubscriberDetached decrements the gauge of frontend subscribers.
	SubscriberDetached(kind string)

	// PayloadsDropped records payloads a lagging subscriber missed.
	PayloadsDropped(kind string, count uint64)
}
