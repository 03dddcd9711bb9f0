package lookup

// App-resource adapters. Real applications compile their string
// resources in one of two common shapes: gettext PO catalogs or flat
// JSON message files. Both adapters satisfy Resource; the resolver does
// not care which one an app plugs in.

import (
	"fmt"
	"io/fs"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/leonelquinteros/gotext"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// ---------------------------------------------------------------------------
// gettext PO resource
// ---------------------------------------------------------------------------

// GettextResource serves app strings from gettext PO catalogs laid out as
// <root>/<lang>/LC_MESSAGES/<domain>.po on the given filesystem.
type GettextResource struct {
	fsys   fs.FS
	root   string
	domain string

	mu      sync.Mutex
	locales map[string]*gotext.Locale
}

// NewGettextResource returns a resource over the PO catalogs under root
// in fsys, using the given gettext domain. Locales are loaded lazily per
// language and cached.
func NewGettextResource(fsys fs.FS, root, domain string) *GettextResource {
	return &GettextResource{
		fsys:    fsys,
		root:    root,
		domain:  domain,
		locales: make(map[string]*gotext.Locale),
	}
}

// Lookup returns the translation for key in lang, or def when the
// catalog has no entry for it.
func (r *GettextResource) Lookup(lang, key, def string) string {
	l := r.locale(lang)
	if !l.IsTranslated(key) {
		return def
	}
	return l.Get(key)
}

func (r *GettextResource) locale(lang string) *gotext.Locale {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locales[lang]; ok {
		return l
	}
	l := gotext.NewLocaleFSWithPath(lang, r.fsys, r.root)
	l.AddDomain(r.domain)
	l.SetDomain(r.domain)
	r.locales[lang] = l
	return l
}

// ---------------------------------------------------------------------------
// JSON message resource
// ---------------------------------------------------------------------------

// MessageResource serves app strings from flat JSON message files loaded
// into a go-i18n bundle.
type MessageResource struct {
	bundle *i18n.Bundle
}

// NewMessageResource loads the given JSON message files (named like
// "messages.sv.json" so the language is derivable from the path) from
// fsys into a bundle whose default language is defaultLang.
func NewMessageResource(fsys fs.FS, defaultLang language.Tag, paths ...string) (*MessageResource, error) {
	b := i18n.NewBundle(defaultLang)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, path := range paths {
		if _, err := b.LoadMessageFileFS(fsys, path); err != nil {
			return nil, fmt.Errorf("loading message file %s: %w", path, err)
		}
	}
	return &MessageResource{bundle: b}, nil
}

// Lookup returns the message for key in lang, or def when no message is
// found. go-i18n's own language fallback applies before def does.
func (r *MessageResource) Lookup(lang, key, def string) string {
	localizer := i18n.NewLocalizer(r.bundle, lang)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		return def
	}
	return msg
}
