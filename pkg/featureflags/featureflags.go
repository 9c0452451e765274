// Package featureflags holds the small set of host-controlled toggles the
// static resolve callback consults: Node-compat rewriting and which
// "node:process" shim generation to redirect to. It follows the
// teacher's own RuntimeOptions convention of nullable scalars
// (gopkg.in/guregu/null.v3) loaded from the environment via
// github.com/mstoykov/envconfig, the library the teacher's lib.Options layer
// is built on.
package featureflags

import (
	"github.com/mstoykov/envconfig"
	null "gopkg.in/guregu/null.v3"
)

// FeatureFlags are consumed, never mutated, by the static/dynamic resolve
// callbacks.
type FeatureFlags struct {
	NodeCompatEnabled    null.Bool `envconfig:"NODE_COMPAT_ENABLED"`
	NodeProcessV2Enabled null.Bool `envconfig:"NODE_PROCESS_V2_ENABLED"`
}

// Default returns the flags with both toggles off, the behavior a registry
// built without FromEnv gets.
func Default() FeatureFlags {
	return FeatureFlags{
		NodeCompatEnabled:    null.BoolFrom(false),
		NodeProcessV2Enabled: null.BoolFrom(false),
	}
}

// FromEnv loads flags from the process environment, falling back to
// Default() for anything unset.
func FromEnv() (FeatureFlags, error) {
	flags := Default()
	if err := envconfig.Process("", &flags); err != nil {
		return FeatureFlags{}, err
	}
	return flags, nil
}

func (f FeatureFlags) NodeCompat() bool {
	return f.NodeCompatEnabled.ValueOrZero()
}

func (f FeatureFlags) NodeProcessV2() bool {
	return f.NodeProcessV2Enabled.ValueOrZero()
}
