// Package trace records what a build does as spans and point events.
//
// Every event has a Scope and a tracer's Level decides which scopes it keeps:
//
//	phase   driver and pass spans
//	detail  adds one event per compile task
//	debug   adds block-level events inside a function
//
// LevelError keeps everything in a ring that is only printed when the
// compiler hits an internal error.
//
//	ctx = trace.WithTracer(ctx, t)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", trace.CurrentSpan(ctx))
//	defer span.End("")
package trace

import (
	"fmt"
	"strings"
	"time"
)

type Level uint8

const (
	LevelOff Level = iota
	LevelError
	LevelPhase
	LevelDetail
	LevelDebug
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts the names printed by Level.String; empty means off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (want %s)", s, strings.Join(levelNames[:], "|"))
}

// Admits reports whether events of scope are recorded at level l.
func (l Level) Admits(scope Scope) bool {
	switch l {
	case LevelError, LevelDebug:
		return true
	case LevelPhase:
		return scope <= ScopePass
	case LevelDetail:
		return scope <= ScopeTask
	default:
		return false
	}
}

// Scope orders events from coarse to fine.
type Scope uint8

const (
	ScopeDriver Scope = iota + 1 // one compilation
	ScopePass                    // schedule, layout, lower, ssa, codegen
	ScopeTask                    // one scheduled function or type
	ScopeNode                    // one block of a function
)

var scopeNames = [...]string{"", "driver", "pass", "task", "node"}

func (s Scope) String() string {
	if s > 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	}
	return "unknown"
}

// Attr is a key/value pair attached to the end of a span.
type Attr struct {
	Key   string
	Value string
}

type Event struct {
	Time  time.Time
	Seq   uint64
	Kind  Kind
	Scope Scope
	// Span is the span the event belongs to; points have none.
	Span   uint64
	Parent uint64
	Name   string
	Detail string
	// Elapsed and Attrs are only set on span ends.
	Elapsed time.Duration
	Attrs   []Attr
}

// Tracer receives events. Emit must be safe for concurrent use.
type Tracer interface {
	Emit(ev *Event)
	Level() Level
	Close() error
}

type nop struct{}

func (nop) Emit(*Event)  {}
func (nop) Level() Level { return LevelOff }
func (nop) Close() error { return nil }

// Nop drops everything.
var Nop Tracer = nop{}

func admits(t Tracer, scope Scope) bool {
	return t != nil && t.Level().Admits(scope)
}
