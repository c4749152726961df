package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelAdmits(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeTask, false},
		{LevelDetail, ScopeTask, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
		{LevelError, ScopeNode, true},
	}
	for _, tt := range tests {
		if got := tt.level.Admits(tt.scope); got != tt.want {
			t.Errorf("%s admits %s = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamTracerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	pass := Begin(tr, ScopePass, "lower", 0)
	task := Begin(tr, ScopeTask, "add", pass.ID())
	if task.ID() != pass.ID() {
		t.Fatalf("filtered span must hand out its parent id, got %d want %d", task.ID(), pass.ID())
	}
	task.End("")
	pass.Attr("funcs", "3").Attr("blocks", "7").End("ok")

	out := buf.String()
	if !strings.Contains(out, "> lower\n") {
		t.Fatalf("missing begin:\n%s", out)
	}
	if !strings.Contains(out, "< lower ok blocks=7 funcs=3 (") {
		t.Fatalf("end must list sorted attributes:\n%s", out)
	}
	if strings.Contains(out, "add") {
		t.Fatalf("task scope leaked at phase level:\n%s", out)
	}
}

func TestNDJSONEvent(t *testing.T) {
	ev := &Event{
		Time:    time.Unix(0, 0),
		Seq:     9,
		Kind:    KindSpanEnd,
		Scope:   ScopePass,
		Span:    4,
		Name:    "codegen",
		Elapsed: 1500 * time.Microsecond,
		Attrs:   []Attr{{Key: "bytes", Value: "120"}},
	}
	var decoded map[string]any
	if err := json.Unmarshal(AppendEvent(nil, ev, FormatNDJSON), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["name"] != "codegen" || decoded["kind"] != "end" || decoded["scope"] != "pass" {
		t.Fatalf("event = %v", decoded)
	}
	if decoded["elapsed_us"] != float64(1500) {
		t.Fatalf("elapsed = %v", decoded["elapsed_us"])
	}
	if attrs, _ := decoded["attrs"].(map[string]any); attrs["bytes"] != "120" {
		t.Fatalf("attrs = %v", decoded["attrs"])
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeNode, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot = %+v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("dump:\n%s", buf.String())
	}
}

func TestNewPicksSinks(t *testing.T) {
	tr, err := New(Config{Level: LevelError, Mode: ModeStream})
	if err != nil {
		t.Fatal(err)
	}
	if RingOf(tr) == nil {
		t.Fatalf("error level must keep a ring, got %T", tr)
	}

	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopePass, "ssa", 0).End("")
	if RingOf(tr) == nil || len(RingOf(tr).Snapshot()) != 2 {
		t.Fatal("both mode must fill the ring")
	}
	if !strings.Contains(buf.String(), "ssa") {
		t.Fatalf("both mode must stream too:\n%s", buf.String())
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	if tr, _ := New(Config{Level: LevelOff}); tr != Nop {
		t.Fatalf("off level = %T", tr)
	}
}

func TestParseNames(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
	if m, err := ParseMode("ring"); err != nil || m != ModeRing {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat = %v, %v", f, err)
	}
}

func TestContextPropagation(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != Nop || CurrentSpan(ctx) != 0 {
		t.Fatal("empty context must carry nothing")
	}
	r := NewRingTracer(8, LevelDebug)
	ctx = WithTracer(ctx, r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatal("tracer not carried")
	}
	span := Begin(r, ScopeDriver, "compile", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Fatalf("span = %d, want %d", CurrentSpan(ctx), span.ID())
	}
}
