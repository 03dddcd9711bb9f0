// Package stringsfile implements reading and writing of string table files.
//
// Format: one entry per line, Apple .strings style:
//
//	"key" = "value";
//
// Both key and value are double-quoted; embedded '"' and '\' are escaped
// with a backslash, and newline/tab characters are written as \n and \t.
// The parser is deliberately lenient: blank lines, a missing trailing
// newline, and lines that do not match the pattern are skipped without
// error, so a damaged file degrades to fewer entries rather than a parse
// failure.
//
// File naming convention: each language is stored as a separate file:
//
//	bundle_root/en.lang/Localizable.table
//	bundle_root/sv.lang/Localizable.table
//
// Serialization is order-independent; entries are written sorted by key so
// that output is deterministic.
package stringsfile

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parse parses string table content from a byte slice. Lines that do not
// match the `"key" = "value";` pattern contribute no entries. Parse never
// fails; a completely unreadable input yields an empty map.
func Parse(data []byte) map[string]string {
	entries := make(map[string]string)

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, raw := range strings.Split(text, "\n") {
		key, value, ok := parseLine(raw)
		if !ok {
			continue
		}
		entries[key] = value
	}

	return entries
}

// ParseFile reads and parses a string table file from disk.
func ParseFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data), nil
}

// parseLine parses a single `"key" = "value";` line.
// Returns ok == false for blank lines and anything malformed.
func parseLine(raw string) (key, value string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", false
	}

	key, rest, ok := scanQuoted(s)
	if !ok {
		return "", "", false
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "=") {
		return "", "", false
	}
	rest = strings.TrimSpace(rest[1:])

	value, rest, ok = scanQuoted(rest)
	if !ok {
		return "", "", false
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ";") {
		return "", "", false
	}

	return key, value, true
}

// scanQuoted consumes one double-quoted string (with escapes) from the
// front of s and returns the unescaped content and the remainder.
func scanQuoted(s string) (content, rest string, ok bool) {
	if len(s) == 0 || s[0] != '"' {
		return "", "", false
	}

	var b strings.Builder
	i := 1
	for i < len(s) {
		ch := s[i]
		switch ch {
		case '\\':
			if i+1 >= len(s) {
				return "", "", false
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				// \" and \\ and any unknown escape: literal next char.
				b.WriteByte(s[i+1])
			}
			i += 2
		case '"':
			return b.String(), s[i+1:], true
		default:
			b.WriteByte(ch)
			i++
		}
	}

	// Unterminated string.
	return "", "", false
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Serialize renders entries as string table file content, one entry per
// line, sorted by key.
func Serialize(entries map[string]string) []byte {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "\"%s\" = \"%s\";\n", Escape(k), Escape(entries[k]))
	}
	return buf.Bytes()
}

// Escape escapes a string for embedding in a quoted table file value.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WriteFile serializes entries and writes them to path.
func WriteFile(path string, entries map[string]string) error {
	if err := os.WriteFile(path, Serialize(entries), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
