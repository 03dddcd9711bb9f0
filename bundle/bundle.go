// Package bundle implements durable persistence of translation tables as
// on-disk bundle directories, with atomic replace-on-write semantics.
//
// Layout: a base directory holds uniquely named bundle roots; exactly one
// root is "current" at any instant. Each root contains one subdirectory
// per language with a single string table file:
//
//	base/bundle-<id>/en.lang/Localizable.table
//	base/bundle-<id>/sv.lang/Localizable.table
//
// A write never mutates the current root. It builds a complete fresh root,
// persists the new root's name to the settings slot, swaps the in-memory
// current pointer under a mutex, and only then deletes the stale root.
// A failure at any point before the swap leaves the previous root current
// and fully intact; the half-written root is abandoned for cleanup.
//
// The current root name is persisted via an injected settings.Slot so it
// survives process restarts. An absent slot value means "create a fresh
// empty root".
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"

	"github.com/langtab/langtab/settings"
	"github.com/langtab/langtab/stringsfile"
	"github.com/langtab/langtab/table"
)

const (
	// LangDirSuffix is appended to a language code to name its directory.
	LangDirSuffix = ".lang"
	// TableFileExt is the extension of the per-language table file.
	TableFileExt = ".table"

	rootPrefix = "bundle-"
	slotName   = "current-root"
)

// Store manages the bundle roots under one base directory.
// All methods are safe for concurrent use; the current-root pointer is
// the only shared mutable state and is guarded by a mutex.
type Store struct {
	baseDir   string
	tableName string
	languages []string
	slot      settings.Slot

	mu      sync.Mutex
	current string // current root name, relative to baseDir

	// writeFile is a seam for fault-injection in tests.
	writeFile func(path string, data []byte, perm os.FileMode) error

	// onCleanupError receives non-fatal errors from stale-root deletion.
	onCleanupError func(error)
}

// Option configures a Store.
type Option func(*Store)

// WithCleanupHandler registers fn to receive non-fatal errors from
// stale-root deletion after a successful write.
func WithCleanupHandler(fn func(error)) Option {
	return func(s *Store) { s.onCleanupError = fn }
}

// WithFileWriter replaces the function used to write table files.
// Used by tests to inject write failures.
func WithFileWriter(fn func(path string, data []byte, perm os.FileMode) error) Option {
	return func(s *Store) { s.writeFile = fn }
}

// Open opens (or initializes) the bundle store under baseDir for the
// given table name and supported language set. slot persists the current
// root name across restarts; nil means in-memory only.
//
// If the slot names a root that still exists on disk it becomes current;
// otherwise a fresh empty root is created and committed.
func Open(baseDir, tableName string, languages []string, slot settings.Slot, opts ...Option) (*Store, error) {
	if slot == nil {
		slot = settings.NewMemStore()
	}
	s := &Store{
		baseDir:   baseDir,
		tableName: tableName,
		languages: append([]string(nil), languages...),
		slot:      slot,
		writeFile: os.WriteFile,
	}
	for _, opt := range opts {
		opt(s)
	}

	name, err := slot.Get(slotName)
	if err != nil {
		return nil, fmt.Errorf("reading current root slot: %w", err)
	}
	if name != "" {
		root := filepath.Join(baseDir, name)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			// Layout creation is idempotent; this picks up languages
			// added to the set since the root was written.
			if err := CreateLayout(root, tableName, s.languages); err != nil {
				return nil, err
			}
			s.current = name
			return s, nil
		}
	}

	// No usable root recorded: start from a fresh empty one.
	fresh := newRootName()
	if err := CreateLayout(filepath.Join(baseDir, fresh), tableName, s.languages); err != nil {
		return nil, err
	}
	if err := slot.Set(slotName, fresh); err != nil {
		return nil, fmt.Errorf("persisting current root: %w", err)
	}
	s.current = fresh
	return s, nil
}

func newRootName() string {
	return rootPrefix + xid.New().String()
}

// TableName returns the table name the store was opened with.
func (s *Store) TableName() string { return s.tableName }

// Languages returns a copy of the supported language set, in order.
func (s *Store) Languages() []string {
	return append([]string(nil), s.languages...)
}

// CurrentRootName returns the name of the current bundle root.
func (s *Store) CurrentRootName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentRoot returns the absolute path of the current bundle root.
func (s *Store) CurrentRoot() string {
	return filepath.Join(s.baseDir, s.CurrentRootName())
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

// CreateLayout idempotently ensures root exists and contains, for every
// language, a <lang>.lang directory with an (initially empty)
// <tableName>.table file. Existing files are left untouched.
func CreateLayout(root, tableName string, languages []string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating bundle root %s: %w", root, err)
	}
	for _, lang := range languages {
		dir := filepath.Join(root, lang+LangDirSuffix)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating language directory %s: %w", dir, err)
		}
		path := filepath.Join(dir, tableName+TableFileExt)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return fmt.Errorf("creating table file %s: %w", path, err)
		}
	}
	return nil
}

func tablePath(root, tableName, lang string) string {
	return filepath.Join(root, lang+LangDirSuffix, tableName+TableFileExt)
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Load reads the current root scoped to the full supported language set.
func (s *Store) Load() *table.Table {
	return s.LoadLanguages(s.languages)
}

// LoadLanguages reads the current root scoped to the given languages.
// A missing or unreadable table file yields an empty map for that
// language only; one damaged language never blocks the others.
func (s *Store) LoadLanguages(langs []string) *table.Table {
	root := s.CurrentRoot()
	t := table.New()
	for _, lang := range langs {
		entries := make(map[string]string)
		if data, err := os.ReadFile(tablePath(root, s.tableName, lang)); err == nil {
			entries = stringsfile.Parse(data)
		}
		t.SetEntries(lang, entries)
	}
	return t
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteAtomic persists t as a brand new bundle root and makes it current.
// If langs is empty the full supported set is written; otherwise exactly
// the given languages are serialized from t, and every supported language
// outside that set has its table file carried forward from the current
// root, so a scoped write never shrinks the bundle (last writer wins
// across overlapping concurrent writes).
//
// The commit order is: write all files, then persist the new root name
// to the slot and swap the in-memory pointer in one critical section,
// then delete the stale root. Any failure before the slot update leaves
// the previous root current and returns the error; the partial new root
// is abandoned for cleanup. Stale-root deletion failure is non-fatal and
// reported through the cleanup handler.
func (s *Store) WriteAtomic(t *table.Table, langs ...string) (string, error) {
	if len(langs) == 0 {
		langs = s.languages
	}
	written := make(map[string]bool, len(langs))
	for _, lang := range langs {
		written[lang] = true
	}
	all := append([]string(nil), langs...)
	var carry []string
	for _, lang := range s.languages {
		if !written[lang] {
			all = append(all, lang)
			carry = append(carry, lang)
		}
	}

	name := newRootName()
	root := filepath.Join(s.baseDir, name)
	if err := CreateLayout(root, s.tableName, all); err != nil {
		return "", err
	}

	for _, lang := range langs {
		path := tablePath(root, s.tableName, lang)
		if err := s.writeFile(path, stringsfile.Serialize(t.Entries(lang)), 0644); err != nil {
			return "", fmt.Errorf("writing table file %s: %w", path, err)
		}
	}

	// Untouched supported languages keep their committed content. A
	// read failure here degrades to an empty carried file, same as any
	// per-language read.
	cur := s.CurrentRoot()
	for _, lang := range carry {
		data, err := os.ReadFile(tablePath(cur, s.tableName, lang))
		if err != nil || len(data) == 0 {
			continue
		}
		path := tablePath(root, s.tableName, lang)
		if err := s.writeFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("writing table file %s: %w", path, err)
		}
	}

	// Slot persist and pointer swap form one critical section: a
	// concurrent write must never interleave between them, or the
	// persisted name and the in-memory pointer diverge and a restart
	// would adopt a root the other writer has already deleted.
	s.mu.Lock()
	if err := s.slot.Set(slotName, name); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("persisting current root: %w", err)
	}
	stale := s.current
	s.current = name
	s.mu.Unlock()

	if stale != "" && stale != name {
		if err := s.Delete(stale); err != nil && s.onCleanupError != nil {
			s.onCleanupError(err)
		}
	}
	return name, nil
}

// Delete removes the named bundle root. The store remains usable with
// whatever root is current; callers treat failure as a non-fatal event.
func (s *Store) Delete(name string) error {
	if err := os.RemoveAll(filepath.Join(s.baseDir, name)); err != nil {
		return fmt.Errorf("deleting bundle root %s: %w", name, err)
	}
	return nil
}
