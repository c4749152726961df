package testkit

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Host collects what a module passes to its env imports.
type Host struct {
	Logs    []int32
	Strings []string
}

// Instantiate runs bin under wazero with the env imports of Host. The
// runtime calls the exported _start during instantiation.
func Instantiate(t testing.TB, bin []byte) (api.Module, *Host) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	host := &Host{}
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, v int32) { host.Logs = append(host.Logs, v) }).
		Export("log").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, n uint32) {
			b, ok := m.Memory().Read(ptr, n)
			if !ok {
				t.Errorf("puts: %d bytes at %d are out of range", n, ptr)
				return
			}
			host.Strings = append(host.Strings, string(b))
		}).
		Export("puts").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod, host
}

// Call invokes export name and returns its single result.
func Call(t testing.TB, mod api.Module, name string, args ...uint64) uint64 {
	t.Helper()
	fn := mod.ExportedFunction(name)
	if fn == nil {
		t.Fatalf("export %q not found", name)
	}
	res, err := fn.Call(context.Background(), args...)
	if err != nil {
		t.Fatalf("%s%v: %v", name, args, err)
	}
	if len(res) != 1 {
		t.Fatalf("%s returned %d results", name, len(res))
	}
	return res[0]
}
