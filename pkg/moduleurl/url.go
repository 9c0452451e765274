// Package moduleurl provides the immutable specifier type used throughout
// the registry: a thin wrapper around net/url.URL with the clone and
// relative-resolve operations the module system needs, plus equivalence
// options for comparing two specifiers that may differ cosmetically.
package moduleurl

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Url is an immutable specifier. Two Urls with the same String() are
// considered identical identity for cache-key purposes; use Equivalent for
// fuzzier comparisons.
type Url struct {
	u *url.URL
}

// TryParse parses str as an absolute or scheme-relative URL. It never
// panics; parse failures are returned as an error so callers can surface a
// TypeError to the engine instead of crashing the host.
func TryParse(str string) (Url, error) {
	u, err := url.Parse(str)
	if err != nil {
		return Url{}, fmt.Errorf("couldn't parse specifier %q: %w", str, err)
	}
	return Url{u: u}, nil
}

// MustParse is TryParse that panics on error; only meant for constants and
// tests, never for engine-supplied input.
func MustParse(str string) Url {
	u, err := TryParse(str)
	if err != nil {
		panic(err)
	}
	return u
}

// FromStdlib adapts an already-parsed *url.URL. The caller retains no
// further ownership of u; Url takes a defensive clone.
func FromStdlib(u *url.URL) Url {
	cp := *u
	return Url{u: &cp}
}

// IsZero reports whether this Url was never assigned (the zero value).
func (v Url) IsZero() bool {
	return v.u == nil
}

// Clone returns an independent copy; mutating the returned Url's underlying
// *url.URL (via Std()) never affects v.
func (v Url) Clone() Url {
	if v.u == nil {
		return Url{}
	}
	cp := *v.u
	return Url{u: &cp}
}

// Std exposes the underlying *url.URL for callers (loaders, fs backends)
// that need the full net/url API. Mutating it mutates v; Clone first if
// that isn't wanted.
func (v Url) Std() *url.URL {
	return v.u
}

// Scheme returns the URL scheme, e.g. "file", "https", "node".
func (v Url) Scheme() string {
	if v.u == nil {
		return ""
	}
	return v.u.Scheme
}

// Path returns the URL path component.
func (v Url) Path() string {
	if v.u == nil {
		return ""
	}
	return v.u.Path
}

// String renders the full href, query and fragment included.
func (v Url) String() string {
	if v.u == nil {
		return ""
	}
	return v.u.String()
}

// TryResolve resolves relative against v as a base, mirroring
// net/url.URL.ResolveReference but returning an error instead of producing
// a nonsensical URL on malformed input.
func (v Url) TryResolve(relative string) (Url, error) {
	if v.u == nil {
		return Url{}, fmt.Errorf("cannot resolve %q against an empty base", relative)
	}
	rel, err := url.Parse(relative)
	if err != nil {
		return Url{}, fmt.Errorf("couldn't parse specifier %q: %w", relative, err)
	}
	resolved := v.u.ResolveReference(rel)
	return Url{u: resolved}, nil
}

// WithNormalizedPath returns a copy whose Path has been run through
// NormalizePath. Used after resolution and when adding modules to a static
// bundle, so that "a/%2fb" and "a//b" style variants collapse to one
// canonical specifier.
func (v Url) WithNormalizedPath() Url {
	cp := v.Clone()
	if cp.u == nil {
		return cp
	}
	cp.u.Path = NormalizePath(cp.u.Path)
	return cp
}

// NormalizePath decodes percent-escaped path separators and collapses "."
// and ".." segments via path.Clean, so that two differently-encoded
// specifiers pointing at the same resource compare equal.
func NormalizePath(p string) string {
	decoded := strings.ReplaceAll(p, "%2f", "/")
	decoded = strings.ReplaceAll(decoded, "%2F", "/")
	if decoded == "" {
		return decoded
	}
	cleaned := path.Clean(decoded)
	if strings.HasSuffix(decoded, "/") && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}
	return cleaned
}

// EquivalenceOptions controls how Equivalent compares two Urls.
type EquivalenceOptions struct {
	IgnoreQuery      bool
	IgnoreFragment   bool
	NormalizePercent bool
}

// Equivalent compares v and other under the given options. With all options
// false it is exact string equality.
func (v Url) Equivalent(other Url, opts EquivalenceOptions) bool {
	if v.u == nil || other.u == nil {
		return v.u == other.u
	}
	a, b := *v.u, *other.u
	if opts.IgnoreQuery {
		a.RawQuery, b.RawQuery = "", ""
	}
	if opts.IgnoreFragment {
		a.Fragment, b.Fragment, a.RawFragment, b.RawFragment = "", "", "", ""
	}
	if opts.NormalizePercent {
		a.Path = NormalizePath(a.Path)
		b.Path = NormalizePath(b.Path)
	}
	return a.String() == b.String()
}

// Dir returns the directory containing v's path, mirroring the teacher
// loader's Dir helper used to compute a module's referrer base.
func Dir(v Url) Url {
	cp := v.Clone()
	if cp.u == nil {
		return cp
	}
	if cp.u.Path == "" {
		cp.u.Path = "/"
		return cp
	}
	cp.u.Path = path.Dir(cp.u.Path)
	if !strings.HasSuffix(cp.u.Path, "/") {
		cp.u.Path += "/"
	}
	return cp
}
