// Package adapter defines the DataSourceAdapter boundary (spec §6, C10):
// the interface pluggable producers (Loki, Graylog, Prometheus, …)
// implement, and the engine holds by name.
package adapter

import (
	"context"

	"github.com/correlator/engine/event"
)

// StreamOptions configures one createStream call. Implementations
// recognize TimeRange and Limit; everything else rides in Extra for
// adapter-specific pass-through, following this codebase's convention of
// keeping the open cases in a side map rather than widening the contract
// every time one adapter needs one more knob.
type StreamOptions struct {
	TimeRange string // duration string, e.g. "5m"
	Limit     int
	Extra     map[string]string
}

// DataSourceAdapter is the producer boundary every concrete data source
// (a Loki client, a Graylog client, a Prometheus client) implements.
// Adapters are held as interface values in the engine's registry — no
// adapter-specific code lives in the engine itself.
type DataSourceAdapter interface {
	// Name is this adapter's stable identifier; it must match the source
	// name used in queries.
	Name() string

	// CreateStream returns a channel of LogEvents for the given selector.
	// The channel is closed when the underlying source is exhausted or
	// ctx is cancelled; cancelling ctx is this call's sole means of
	// stopping production.
	CreateStream(ctx context.Context, selector string, opts StreamOptions) (<-chan event.LogEvent, error)

	// ValidateQuery is a pure syntax check of selector, independent of
	// whether the referenced data actually exists.
	ValidateQuery(selector string) bool

	// Destroy idempotently tears down any resources CreateStream opened.
	Destroy() error
}

// StreamLister is an optional capability: adapters that can enumerate
// their known stream names implement it in addition to DataSourceAdapter.
type StreamLister interface {
	AvailableStreams(ctx context.Context) ([]string, error)
}
