package joiner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator/engine/event"
)

func TestJoinN_InnerJoinAcrossThreeStreams(t *testing.T) {
	a := make(chan event.LogEvent)
	b := make(chan event.LogEvent)
	c := make(chan event.LogEvent)

	go feed(a, ev("2022-01-01T00:00:00Z", map[string]string{"id": "r1"}))
	go feed(b, ev("2022-01-01T00:00:00Z", map[string]string{"id": "r1"}))
	go feed(c, ev("2022-01-01T00:00:00Z", map[string]string{"id": "r1"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := baseOpts(JoinAnd, "id")
	out := JoinN(ctx, []Stream{
		{Ref: StreamRef{Source: "A"}, Ch: a},
		{Ref: StreamRef{Source: "B"}, Ch: b},
		{Ref: StreamRef{Source: "C"}, Ch: c},
	}, opts)

	got := collect(t, out, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, event.Complete, got[0].Metadata.Completeness)
	assert.Len(t, got[0].Events, 3)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, got[0].Metadata.MatchedStreams)
}

func TestJoinN_OrEmitsPresentInAny(t *testing.T) {
	a := make(chan event.LogEvent)
	b := make(chan event.LogEvent)
	c := make(chan event.LogEvent)

	go feed(a, ev("2022-01-01T00:00:00Z", map[string]string{"id": "r1"}))
	close(b)
	close(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := baseOpts(JoinOr, "id")
	out := JoinN(ctx, []Stream{
		{Ref: StreamRef{Source: "A"}, Ch: a},
		{Ref: StreamRef{Source: "B"}, Ch: b},
		{Ref: StreamRef{Source: "C"}, Ch: c},
	}, opts)

	got := collect(t, out, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, event.Partial, got[0].Metadata.Completeness)
	assert.Equal(t, 3, got[0].Metadata.TotalStreams)
	assert.Equal(t, []string{"A"}, got[0].Metadata.MatchedStreams)
	require.Len(t, got[0].Events, 1)
	assert.Equal(t, "A", got[0].Events[0].Source)
}

// TestJoinN_OrDoesNotReemitOnceMatched guards against a key re-entering
// emission once it has been matched under "at least one buffer": A and B
// both admit an event for the same key, but only the one the merge loop
// processes first should produce a correlation — the second admission
// must not trigger a second, overlapping correlation for the same key.
func TestJoinN_OrDoesNotReemitOnceMatched(t *testing.T) {
	a := make(chan event.LogEvent)
	b := make(chan event.LogEvent)
	c := make(chan event.LogEvent)

	go feed(a, ev("2022-01-01T00:00:00Z", map[string]string{"id": "r1"}))
	go feed(b, ev("2022-01-01T00:00:00.5Z", map[string]string{"id": "r1"}))
	close(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := baseOpts(JoinOr, "id")
	out := JoinN(ctx, []Stream{
		{Ref: StreamRef{Source: "A"}, Ch: a},
		{Ref: StreamRef{Source: "B"}, Ch: b},
		{Ref: StreamRef{Source: "C"}, Ch: c},
	}, opts)

	got := collect(t, out, time.Second)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Events, 1)
	assert.Len(t, got[0].Metadata.MatchedStreams, 1)
}

func TestJoinN_UnlessExactlyOneStream(t *testing.T) {
	a := make(chan event.LogEvent)
	b := make(chan event.LogEvent)
	c := make(chan event.LogEvent)

	go feed(a, ev("2022-01-01T00:00:00Z", map[string]string{"id": "only-a"}))
	close(b)
	close(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := baseOpts(JoinUnless, "id")
	opts.WindowSize = 10 * time.Millisecond
	opts.LateTolerance = 0
	opts.ProcessingInterval = 5 * time.Millisecond
	out := JoinN(ctx, []Stream{
		{Ref: StreamRef{Source: "A"}, Ch: a},
		{Ref: StreamRef{Source: "B"}, Ch: b},
		{Ref: StreamRef{Source: "C"}, Ch: c},
	}, opts)

	got := collect(t, out, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "only-a", got[0].JoinValue)
	assert.Equal(t, []string{"A"}, got[0].Metadata.MatchedStreams)
}
