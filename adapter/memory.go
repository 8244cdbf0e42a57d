package adapter

import (
	"context"
	"regexp"
	"sync"

	"github.com/correlator/engine/event"
)

// MemoryAdapter is a DataSourceAdapter backed by an in-memory slice of
// events — the engine's demo/test producer, replaying seed data instead
// of polling a real log backend. Construction follows the functional
// options pattern used throughout this codebase for optional settings.
type MemoryAdapter struct {
	name      string
	events    []event.LogEvent
	selectors []string // known stream/selector names, for AvailableStreams

	mu        sync.Mutex
	destroyed bool
}

// MemoryOption configures a MemoryAdapter at construction time.
type MemoryOption func(*MemoryAdapter)

// WithSelectors declares the stream names AvailableStreams reports.
func WithSelectors(selectors ...string) MemoryOption {
	return func(a *MemoryAdapter) { a.selectors = selectors }
}

// NewMemoryAdapter creates an adapter named name that replays events.
func NewMemoryAdapter(name string, events []event.LogEvent, opts ...MemoryOption) *MemoryAdapter {
	a := &MemoryAdapter{name: name, events: events}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MemoryAdapter) Name() string { return a.name }

// CreateStream filters the seeded events by selector (a `{label="value"}`
// matcher list, same shape the query language captures) and emits them in
// seed order on a channel, honoring ctx cancellation and opts.Limit.
func (a *MemoryAdapter) CreateStream(ctx context.Context, selector string, opts StreamOptions) (<-chan event.LogEvent, error) {
	matchers, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}

	out := make(chan event.LogEvent)
	go func() {
		defer close(out)
		sent := 0
		for _, e := range a.events {
			if opts.Limit > 0 && sent >= opts.Limit {
				return
			}
			if !matchesAll(e.Labels, matchers) {
				continue
			}
			select {
			case out <- e:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *MemoryAdapter) ValidateQuery(selector string) bool {
	_, err := parseSelector(selector)
	return err == nil
}

func (a *MemoryAdapter) AvailableStreams(ctx context.Context) ([]string, error) {
	return a.selectors, nil
}

func (a *MemoryAdapter) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyed = true
	return nil
}

// selectorMatcher is one `label="value"` or `label=~"regex"` entry of a
// MemoryAdapter selector. MemoryAdapter only needs equality/regex
// matching, not the full query-language matcher set, since `!=`/`!~`
// selectors are unusual on the producer side (they're a post-filter
// concern) — this is a deliberately narrower grammar than query.Matcher.
type selectorMatcher struct {
	label string
	value string
	regex *regexp.Regexp
}

var selectorEntryRe = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*(=~|=)\s*"((?:[^"\\]|\\.)*)"`)

func parseSelector(selector string) ([]selectorMatcher, error) {
	var out []selectorMatcher
	for _, m := range selectorEntryRe.FindAllStringSubmatch(selector, -1) {
		label, op, value := m[1], m[2], m[3]
		sm := selectorMatcher{label: label, value: value}
		if op == "=~" {
			re, err := regexp.Compile(value)
			if err != nil {
				return nil, err
			}
			sm.regex = re
		}
		out = append(out, sm)
	}
	return out, nil
}

func matchesAll(labels map[string]string, matchers []selectorMatcher) bool {
	for _, m := range matchers {
		v := labels[m.label]
		if m.regex != nil {
			if !m.regex.MatchString(v) {
				return false
			}
			continue
		}
		if v != m.value {
			return false
		}
	}
	return true
}
