package driver

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"keel/internal/ast"
	"keel/internal/diag"
	"keel/internal/observ"
	"keel/internal/testkit"
	"keel/internal/trace"
)

func compile(t *testing.T, prog *ast.Program) *Result {
	t.Helper()
	res, err := Compile(context.Background(), prog, DefaultOptions())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", res.Bag.Items())
	}
	if err := testkit.CheckUnitInvariants(res.Unit); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	return res
}

func TestCompileFixturesRun(t *testing.T) {
	i32 := func(v int32) uint64 { return api.EncodeI32(v) }
	tests := []struct {
		name  string
		prog  func() *ast.Program
		check func(t *testing.T, mod api.Module, host *testkit.Host)
	}{
		{"add", testkit.Add, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "add", i32(2), i32(3))); got != 5 {
				t.Fatalf("add(2,3) = %d", got)
			}
		}},
		{"sum", testkit.Sum, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "sum", i32(10))); got != 45 {
				t.Fatalf("sum(10) = %d", got)
			}
		}},
		{"nested", testkit.Nested, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "bx", i32(7))); got != 7 {
				t.Fatalf("bx(7) = %d", got)
			}
		}},
		{"counter", testkit.Counter, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "count", i32(3))); got != 6 {
				t.Fatalf("count(3) = %d", got)
			}
		}},
		{"generic", testkit.Generic, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int64(testkit.Call(t, mod, "twice", 21)); got != 42 {
				t.Fatalf("twice(21) = %d", got)
			}
			if got := api.DecodeF64(testkit.Call(t, mod, "pairsum", api.EncodeF64(1.5))); got != 4.5 {
				t.Fatalf("pairsum(1.5) = %v", got)
			}
		}},
		{"funcref", testkit.FuncRef, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "applied", i32(5), i32(0))); got != 10 {
				t.Fatalf("applied(5, false) = %d", got)
			}
			if got := int32(testkit.Call(t, mod, "applied", i32(5), i32(1))); got != 15 {
				t.Fatalf("applied(5, true) = %d", got)
			}
		}},
		{"hello", testkit.Hello, func(t *testing.T, _ api.Module, host *testkit.Host) {
			if !slices.Equal(host.Strings, []string{"hello"}) {
				t.Fatalf("puts saw %q", host.Strings)
			}
			if !slices.Equal(host.Logs, []int32{42}) {
				t.Fatalf("log saw %v", host.Logs)
			}
		}},
		{"globals", testkit.Globals, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			for _, want := range []int32{11, 12} {
				if got := int32(testkit.Call(t, mod, "bump")); got != want {
					t.Fatalf("bump() = %d, want %d", got, want)
				}
			}
		}},
		{"logic", testkit.Logic, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			between := []struct {
				x    int32
				want uint64
			}{{-1, 0}, {0, 1}, {9, 1}, {10, 0}}
			for _, c := range between {
				if got := testkit.Call(t, mod, "between", i32(c.x), i32(0), i32(10)); got != c.want {
					t.Fatalf("between(%d, 0, 10) = %d", c.x, got)
				}
			}
			clamp := map[int32]int32{-5: 0, 0: 0, 42: 42, 100: 100, 101: 100}
			for x, want := range clamp {
				if got := int32(testkit.Call(t, mod, "clamp", i32(x))); got != want {
					t.Fatalf("clamp(%d) = %d, want %d", x, got, want)
				}
			}
		}},
		{"loops", testkit.Loops, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			for n, want := range map[int32]int32{0: 0, 1: 1, 2: 2, 3: 2, 4: 5} {
				if got := int32(testkit.Call(t, mod, "skips", i32(n))); got != want {
					t.Fatalf("skips(%d) = %d, want %d", n, got, want)
				}
			}
		}},
		{"operators", testkit.Operators, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "vadd", i32(1), i32(2))); got != 1122 {
				t.Fatalf("vadd(1, 2) = %d", got)
			}
		}},
		{"unary", testkit.Unary, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "neg", i32(7))); got != -7 {
				t.Fatalf("neg(7) = %d", got)
			}
			if got := api.DecodeF64(testkit.Call(t, mod, "fneg", api.EncodeF64(2.5))); got != -2.5 {
				t.Fatalf("fneg(2.5) = %v", got)
			}
			if got := int32(testkit.Call(t, mod, "bitnot", i32(5))); got != ^int32(5) {
				t.Fatalf("bitnot(5) = %d", got)
			}
			if got := testkit.Call(t, mod, "not", i32(0)); got != 1 {
				t.Fatalf("not(false) = %d", got)
			}
			if got := testkit.Call(t, mod, "not", i32(1)); got != 0 {
				t.Fatalf("not(true) = %d", got)
			}
		}},
		{"pointers", testkit.Pointers, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "triple1", i32(4))); got != 13 {
				t.Fatalf("triple1(4) = %d", got)
			}
		}},
		{"nulls", testkit.Nulls, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := testkit.Call(t, mod, "isnull", i32(0)); got != 1 {
				t.Fatalf("isnull(false) = %d", got)
			}
			if got := testkit.Call(t, mod, "isnull", i32(1)); got != 0 {
				t.Fatalf("isnull(true) = %d", got)
			}
		}},
		{"kept", testkit.Kept, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "answer")); got != 42 {
				t.Fatalf("answer() = %d", got)
			}
		}},
		{"hostref", testkit.HostRef, func(t *testing.T, mod api.Module, host *testkit.Host) {
			if got := int32(testkit.Call(t, mod, "relay", i32(8))); got != 8 {
				t.Fatalf("relay(8) = %d", got)
			}
			if !slices.Equal(host.Logs, []int32{8, 9}) {
				t.Fatalf("log saw %v", host.Logs)
			}
		}},
		{"natives", testkit.Natives, func(t *testing.T, mod api.Module, _ *testkit.Host) {
			if got := api.DecodeF64(testkit.Call(t, mod, "root", api.EncodeF64(6.25))); got != 2.5 {
				t.Fatalf("root(6.25) = %v", got)
			}
			for x, want := range map[int32]int32{-9: 9, 0: 0, 4: 4} {
				if got := int32(testkit.Call(t, mod, "magnitude", i32(x))); got != want {
					t.Fatalf("magnitude(%d) = %d", x, got)
				}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, tt.prog())
			if res.Module == nil {
				t.Fatal("no module emitted")
			}
			mod, host := testkit.Instantiate(t, res.Module)
			tt.check(t, mod, host)
		})
	}
}

func TestCompileKeepsCompiledAndRootFunctions(t *testing.T) {
	res := compile(t, testkit.Kept())
	var got []string
	for _, f := range res.Unit.Funcs {
		got = append(got, f.Name)
	}
	for _, want := range []string{"kept", "rooted", "answer"} {
		if !slices.Contains(got, want) {
			t.Errorf("unit lacks %s: %v", want, got)
		}
	}
	mod, _ := testkit.Instantiate(t, res.Module)
	for _, name := range []string{"kept", "rooted"} {
		if mod.ExportedFunction(name) != nil {
			t.Errorf("%s is exported", name)
		}
	}
}

func TestCompileFixturesAreDeterministic(t *testing.T) {
	for name, mk := range testkit.Fixtures() {
		a := compile(t, mk())
		b := compile(t, mk())
		if !slices.Equal(a.Module, b.Module) {
			t.Errorf("%s: two compilations differ", name)
		}
	}
}

func TestCompileStopsOnCircularLayout(t *testing.T) {
	res, err := Compile(context.Background(), testkit.Cycle(), DefaultOptions())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !res.Bag.HasCode(diag.LayoutCircular) {
		t.Fatalf("expected %s, got %+v", diag.LayoutCircular.ID(), res.Bag.Items())
	}
	if res.Unit != nil || res.Module != nil {
		t.Fatal("lowering ran despite layout errors")
	}
}

func TestCompileRecordsPhases(t *testing.T) {
	opts := DefaultOptions()
	opts.Timer = observ.NewTimer()
	var events []string
	opts.Observer = func(ev PhaseEvent) {
		if ev.Status == PhaseEnd {
			events = append(events, ev.Name)
		}
	}
	ring := trace.NewRingTracer(256, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := Compile(ctx, testkit.Add(), opts); err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := []string{"schedule", "layout", "lower", "ssa", "codegen"}
	if !slices.Equal(events, want) {
		t.Fatalf("phases = %v, want %v", events, want)
	}
	report := opts.Timer.Report()
	if len(report.Phases) != len(want) {
		t.Fatalf("timer recorded %d phases", len(report.Phases))
	}
	var passes int
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin && ev.Scope == trace.ScopePass {
			passes++
		}
	}
	if passes != len(want) {
		t.Fatalf("traced %d pass spans, want %d", passes, len(want))
	}
}

func TestCompileHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compile(ctx, testkit.Add(), DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func writePrograms(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	fixtures := testkit.Fixtures()
	fixtures["cycle"] = testkit.Cycle
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name+".kast")
		if err := ast.WriteFile(paths[i], fixtures[name]()); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return paths
}

func TestBuildAllUsesCache(t *testing.T) {
	paths := writePrograms(t, "add", "sum", "cycle")
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := BuildOptions{Compile: DefaultOptions(), Jobs: 2, Cache: cache, Timings: true}

	first, err := BuildAll(context.Background(), paths, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i, r := range first {
		if r.Err != nil {
			t.Fatalf("%s: %v", r.Path, r.Err)
		}
		if r.Path != paths[i] {
			t.Fatalf("result %d is for %s", i, r.Path)
		}
		if r.Cached {
			t.Fatalf("%s: cold cache hit", r.Path)
		}
		if len(r.Timing.Phases) == 0 {
			t.Fatalf("%s: no timings", r.Path)
		}
	}
	if first[2].Module != nil || !first[2].Bag.HasErrors() {
		t.Fatal("cycle should fail with diagnostics")
	}

	second, err := BuildAll(context.Background(), paths, opts)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	for i := range 2 {
		if !second[i].Cached {
			t.Fatalf("%s: expected cache hit", second[i].Path)
		}
		if !slices.Equal(second[i].Module, first[i].Module) {
			t.Fatalf("%s: cached module differs", second[i].Path)
		}
	}
	if second[2].Cached {
		t.Fatal("failed builds must not be cached")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	third, err := BuildAll(context.Background(), paths[:1], opts)
	if err != nil || third[0].Cached {
		t.Fatalf("after drop: cached=%v err=%v", third[0].Cached, err)
	}
}

func TestKeyDependsOnOptions(t *testing.T) {
	prog := testkit.Add()
	a, err := Key(prog, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Memory.MinPages, opts.Memory.MaxPages = 2, 4
	b, err := Key(prog, opts)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("memory limits must change the key")
	}
	again, _ := Key(testkit.Add(), DefaultOptions())
	if again != a {
		t.Fatal("key is not stable across identical programs")
	}
}

func TestLoadProgramReportsPath(t *testing.T) {
	_, err := LoadProgram(filepath.Join(t.TempDir(), "missing.kast"))
	if err == nil {
		t.Fatal("expected an error")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events map[string][]BuildEvent
}

func (s *recordingSink) OnBuildEvent(ev BuildEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.Path] = append(s.events[ev.Path], ev)
}

func TestBuildAllReportsProgress(t *testing.T) {
	paths := writePrograms(t, "add", "cycle")
	sink := &recordingSink{events: map[string][]BuildEvent{}}
	if _, err := BuildAll(context.Background(), paths, BuildOptions{Compile: DefaultOptions(), Progress: sink}); err != nil {
		t.Fatal(err)
	}

	var phases []string
	for _, ev := range sink.events[paths[0]] {
		if ev.Status == BuildWorking {
			phases = append(phases, ev.Phase)
		}
	}
	want := []string{"load", "schedule", "layout", "lower", "ssa", "codegen"}
	if !slices.Equal(phases, want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i, wantLast := range []BuildStatus{BuildDone, BuildFailed} {
		evs := sink.events[paths[i]]
		if evs[0].Status != BuildQueued {
			t.Fatalf("%s: first event %v", paths[i], evs[0].Status)
		}
		if last := evs[len(evs)-1].Status; last != wantLast || !last.Finished() {
			t.Fatalf("%s: last event %v, want %v", paths[i], last, wantLast)
		}
	}
}
