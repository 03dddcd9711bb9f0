// Package table implements the in-memory translation table: a nested
// mapping of language code → translation key → translated value.
//
// A Table is short-lived by design: it is read from disk for one
// operation, merged or pruned in memory, written back, and discarded.
// It is not safe for concurrent use; each operation owns its own copy.
package table

import "sort"

// Table holds per-language translation entries.
type Table struct {
	db map[string]map[string]string
}

// New returns an empty table.
func New() *Table {
	return &Table{db: make(map[string]map[string]string)}
}

// FromMap builds a table from a nested language → key → value map.
// The input map is copied; the caller keeps ownership of it.
func FromMap(m map[string]map[string]string) *Table {
	t := New()
	for lang, entries := range m {
		for key, value := range entries {
			t.Set(lang, key, value)
		}
	}
	return t
}

// Get returns the value for (lang, key) and whether it was found.
// A missing language or key is absence, not an error.
func (t *Table) Get(lang, key string) (string, bool) {
	entries, ok := t.db[lang]
	if !ok {
		return "", false
	}
	v, ok := entries[key]
	return v, ok
}

// Set stores value under (lang, key), creating the language map if needed.
func (t *Table) Set(lang, key, value string) {
	entries, ok := t.db[lang]
	if !ok {
		entries = make(map[string]string)
		t.db[lang] = entries
	}
	entries[key] = value
}

// Merge copies every (lang, key, value) from other into t, overwriting
// existing entries. Last writer wins; there is no conflict detection.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for lang, entries := range other.db {
		for key, value := range entries {
			t.Set(lang, key, value)
		}
	}
}

// Remove deletes every given key from every language map.
// Keys that are absent are ignored.
func (t *Table) Remove(keys []string) {
	for _, entries := range t.db {
		for _, key := range keys {
			delete(entries, key)
		}
	}
}

// Entries returns a copy of one language's key → value map.
// An unknown language yields an empty (non-nil) map.
func (t *Table) Entries(lang string) map[string]string {
	out := make(map[string]string, len(t.db[lang]))
	for key, value := range t.db[lang] {
		out[key] = value
	}
	return out
}

// SetEntries replaces one language's map with a copy of entries.
func (t *Table) SetEntries(lang string, entries map[string]string) {
	m := make(map[string]string, len(entries))
	for key, value := range entries {
		m[key] = value
	}
	t.db[lang] = m
}

// Languages returns the sorted list of languages present in the table.
func (t *Table) Languages() []string {
	langs := make([]string, 0, len(t.db))
	for lang := range t.db {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Len returns the total number of entries across all languages.
func (t *Table) Len() int {
	n := 0
	for _, entries := range t.db {
		n += len(entries)
	}
	return n
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := New()
	c.Merge(t)
	return c
}
