package joiner

import (
	"time"

	"github.com/correlator/engine/query"
)

// Option configures a Join/JoinN call, following the functional-options
// shape used throughout this codebase for optional, composable settings.
type Option func(*Options)

// Options holds every modifier a two- or multi-stream join can carry,
// derived from a parsed query's JoinClause plus the engine's window
// defaults.
type Options struct {
	Type JoinType

	JoinKeys    []query.JoinKey
	Ignoring    []string
	HasIgnoring bool

	Within    time.Duration
	HasWithin bool

	GroupLeft    []string
	HasGroupLeft bool

	GroupRight    []string
	HasGroupRight bool

	Filter *query.Filter

	WindowSize    time.Duration
	LateTolerance time.Duration
	MaxEvents     int

	// ProcessingInterval paces the sweep goroutine that emits or/unless
	// correlations once a key's window has expired without a completing
	// side arriving.
	ProcessingInterval time.Duration
}

// JoinType mirrors query.JoinType, kept distinct so the joiner package
// does not leak its internal emission policy through the parser's type.
type JoinType string

const (
	JoinAnd    JoinType = "and"
	JoinOr     JoinType = "or"
	JoinUnless JoinType = "unless"
)

func fromQueryJoinType(t query.JoinType) JoinType {
	switch t {
	case query.JoinOr:
		return JoinOr
	case query.JoinUnless:
		return JoinUnless
	default:
		return JoinAnd
	}
}

// FromClause builds Options from a parsed join clause, filling window
// defaults the clause itself does not carry.
func FromClause(clause query.JoinClause, filter *query.Filter, windowSize, lateTolerance time.Duration, maxEvents int, processingInterval time.Duration) Options {
	return Options{
		Type:               fromQueryJoinType(clause.Type),
		JoinKeys:           clause.JoinKeys,
		Ignoring:           clause.Ignoring,
		HasIgnoring:        clause.HasIgnoring,
		Within:             clause.Within,
		HasWithin:          clause.HasWithin,
		GroupLeft:          clause.GroupLeft,
		HasGroupLeft:       clause.HasGroupLeft,
		GroupRight:         clause.GroupRight,
		HasGroupRight:      clause.HasGroupRight,
		Filter:             filter,
		WindowSize:         windowSize,
		LateTolerance:      lateTolerance,
		MaxEvents:          maxEvents,
		ProcessingInterval: processingInterval,
	}
}

func defaultOptions() Options {
	return Options{
		Type:               JoinAnd,
		WindowSize:         5 * time.Minute,
		LateTolerance:      30 * time.Second,
		MaxEvents:          10000,
		ProcessingInterval: 100 * time.Millisecond,
	}
}

// WithType overrides the join type, mostly useful in tests.
func WithType(t JoinType) Option { return func(o *Options) { o.Type = t } }
