//go:build linux

package workload

import (
	"fmt"
	"plugin"

	"github.com/sarchlab/pando/core"
)

// EntryFunc is the symbol a host-native workload shared library must
// export: the coroutine entry point a Hart-equivalent thread runs inside
// (§1 "compiled either as a host-native shared library using a
// cooperative coroutine API..."). It is handed directly to
// core.StartCoroutine.
type EntryFunc func(y *core.Yielder)

// LoadHostLibrary dlopens a compiled workload .so (via the standard
// library's plugin package, Linux's idiomatic dlopen wrapper — no cgo and
// no hand-rolled dlopen binding needed) and resolves symbolName to an
// EntryFunc. entryFuncs compiled against a different signature are a
// workload bug and reported as an ExecutableLoadError-flavored error
// (§7), not a panic, since this happens before any thread starts.
func LoadHostLibrary(path, symbolName string) (EntryFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workload: opening host library %s: %w", path, err)
	}

	sym, err := p.Lookup(symbolName)
	if err != nil {
		return nil, fmt.Errorf("workload: %s lacks required entry point %q: %w", path, symbolName, err)
	}

	fn, ok := sym.(func(*core.Yielder))
	if !ok {
		return nil, fmt.Errorf("workload: %s symbol %q has the wrong signature for a coroutine entry point", path, symbolName)
	}

	return EntryFunc(fn), nil
}
