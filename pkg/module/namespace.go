package module

import (
	"fmt"

	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
)

// Namespace is the short-lived view passed to a Synthetic module's
// EvaluateCallback: the engine module handle plus the immutable set of
// declared export names, "default" always implicitly present.
type Namespace struct {
	handle      *engine.Handle
	namedExport map[string]bool
}

func newNamespace(handle *engine.Handle, namedExports []string) *Namespace {
	named := make(map[string]bool, len(namedExports))
	for _, n := range namedExports {
		named[n] = true
	}
	return &Namespace{handle: handle, namedExport: named}
}

// Set installs value under name. name must be "default" or one of the
// module's declared named exports.
func (n *Namespace) Set(name string, value sobek.Value) error {
	if name != "default" && !n.namedExport[name] {
		return fmt.Errorf("module namespace has no declared export %q", name)
	}
	return n.handle.Namespace().Set(name, value)
}

// Object exposes the underlying engine namespace object, e.g. for require()
// to hand back to the caller.
func (n *Namespace) Object() *sobek.Object {
	return n.handle.Namespace()
}
