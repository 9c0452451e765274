// Package observer defines the pure telemetry sink the registry reports to,
// and a logrus-backed default implementation -- the teacher's logging
// library (internal/loader, js) throughout this corpus.
package observer

import "github.com/sirupsen/logrus"

// Observer receives read-only notifications from the registry. Every method
// must be side-effect-free with respect to registry state and safe for
// concurrent invocation.
type Observer interface {
	Found(specifier string)
	NotFound(specifier string)
	CompileCacheHit(specifier string)
	CompileCacheMiss(specifier string)
	CompileCacheRejected(specifier string)
	CompileCacheGenerated(specifier string)
	CompileCacheGenerateFailed(specifier string, err error)
}

// Noop discards every notification. (The zero value of Logrus has a nil
// Log and panics on its first notification.)
type Noop struct{}

func (Noop) Found(string)                           {}
func (Noop) NotFound(string)                         {}
func (Noop) CompileCacheHit(string)                  {}
func (Noop) CompileCacheMiss(string)                 {}
func (Noop) CompileCacheRejected(string)             {}
func (Noop) CompileCacheGenerated(string)            {}
func (Noop) CompileCacheGenerateFailed(string, error) {}

// Logrus reports to a structured logger, using "specifier" and "cache"
// fields the way the teacher's loader/js packages tag their log lines.
type Logrus struct {
	Log logrus.FieldLogger
}

func NewLogrus(log logrus.FieldLogger) Logrus {
	return Logrus{Log: log}
}

func (o Logrus) Found(specifier string) {
	o.Log.WithField("specifier", specifier).Debug("module resolved")
}

func (o Logrus) NotFound(specifier string) {
	o.Log.WithField("specifier", specifier).Debug("module not found")
}

func (o Logrus) CompileCacheHit(specifier string) {
	o.Log.WithField("specifier", specifier).WithField("cache", "hit").Debug("compile cache")
}

func (o Logrus) CompileCacheMiss(specifier string) {
	o.Log.WithField("specifier", specifier).WithField("cache", "miss").Debug("compile cache")
}

func (o Logrus) CompileCacheRejected(specifier string) {
	o.Log.WithField("specifier", specifier).WithField("cache", "rejected").
		Debug("cached bytecode rejected by isolate, recompiling")
}

func (o Logrus) CompileCacheGenerated(specifier string) {
	o.Log.WithField("specifier", specifier).WithField("cache", "generated").Debug("compile cache")
}

func (o Logrus) CompileCacheGenerateFailed(specifier string, err error) {
	o.Log.WithField("specifier", specifier).WithField("cache", "generate-failed").
		WithError(err).Warn("failed to generate cached bytecode")
}
