// Package lookup resolves display strings through the fallback chain:
// app-bundled resource → stored bundle table → caller fallback → the key
// itself.
//
// "Missing" is detected with a sentinel default: the app resource is
// probed with a value that contains a random token generated per
// Resolver, so it can never collide with real content. If the probe
// comes back unchanged, the resource has no entry and resolution falls
// through to the next layer.
package lookup

import (
	"github.com/rs/xid"

	"github.com/langtab/langtab/bundle"
)

// Resource is an app-bundled string resource, typically compiled into
// the binary. Lookup returns the localized value for key in lang, or def
// when the resource has no entry.
type Resource interface {
	Lookup(lang, key, def string) string
}

// Resolver resolves strings for (key, language) pairs. It reads stored
// strings only through the store's current bundle root, never through
// any in-memory table.
type Resolver struct {
	resource Resource // may be nil
	store    *bundle.Store
	sentinel string
}

// NewResolver returns a resolver over the app resource and the bundle
// store. Either may be nil; a nil layer is simply skipped.
func NewResolver(store *bundle.Store, resource Resource) *Resolver {
	return &Resolver{
		resource: resource,
		store:    store,
		sentinel: "\x00langtab:missing:" + xid.New().String(),
	}
}

// Resolve returns the display string for key in lang. When neither the
// app resource nor the stored bundle has an entry, the first fallback is
// returned, or the key itself if none was supplied.
func (r *Resolver) Resolve(key, lang string, fallback ...string) string {
	if v, ok := r.lookup(key, lang); ok {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return key
}

// IsTranslated reports whether text resolves without falling through to
// the key-echo case in every one of the given languages.
func (r *Resolver) IsTranslated(text string, langs []string) bool {
	for _, lang := range langs {
		if _, ok := r.lookup(text, lang); !ok {
			return false
		}
	}
	return true
}

// lookup walks the chain: app resource first, stored bundle second.
func (r *Resolver) lookup(key, lang string) (string, bool) {
	if r.resource != nil {
		if v := r.resource.Lookup(lang, key, r.sentinel); v != r.sentinel {
			return v, true
		}
	}
	if r.store != nil {
		if v, ok := r.store.LoadLanguages([]string{lang}).Get(lang, key); ok {
			return v, true
		}
	}
	return "", false
}
