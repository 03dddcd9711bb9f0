package stringsfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse_Basic(t *testing.T) {
	data := []byte("\"hello\" = \"hej\";\n\"bye\" = \"hej då\";\n")
	entries := Parse(data)
	if got := entries["hello"]; got != "hej" {
		t.Errorf("hello = %q, want %q", got, "hej")
	}
	if got := entries["bye"]; got != "hej då" {
		t.Errorf("bye = %q, want %q", got, "hej då")
	}
}

func TestParse_MissingTrailingNewline(t *testing.T) {
	entries := Parse([]byte(`"key" = "value";`))
	if got := entries["key"]; got != "value" {
		t.Errorf("key = %q, want %q", got, "value")
	}
}

func TestParse_BlankAndMalformedLines(t *testing.T) {
	data := []byte("\n\"a\" = \"1\";\n\ngarbage line\n\"b\" = \"2\"\n\"c\" = \"3\";\n")
	entries := Parse(data)
	// "b" has no terminating semicolon and must be skipped.
	want := map[string]string{"a": "1", "c": "3"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestParse_EscapedQuotesAndBackslashes(t *testing.T) {
	data := []byte(`"say \"hi\"" = "back\\slash";` + "\n")
	entries := Parse(data)
	if got := entries[`say "hi"`]; got != `back\slash` {
		t.Errorf(`say "hi" = %q, want %q`, got, `back\slash`)
	}
}

func TestParse_EscapedControlCharacters(t *testing.T) {
	data := []byte(`"multi" = "line one\nline two\tend";` + "\n")
	entries := Parse(data)
	if got := entries["multi"]; got != "line one\nline two\tend" {
		t.Errorf("multi = %q", got)
	}
}

func TestParse_UnterminatedString(t *testing.T) {
	entries := Parse([]byte(`"open = "never closed`))
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestParse_DuplicateKeyLastWins(t *testing.T) {
	data := []byte("\"k\" = \"first\";\n\"k\" = \"second\";\n")
	entries := Parse(data)
	if got := entries["k"]; got != "second" {
		t.Errorf("k = %q, want %q", got, "second")
	}
}

func TestRoundTrip(t *testing.T) {
	want := map[string]string{
		"hello":     "hej",
		`quo"ted`:   `va\lue`,
		"multiline": "a\nb\tc",
		"empty":     "",
	}
	got := Parse(Serialize(want))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestSerialize_SortedByKey(t *testing.T) {
	out := string(Serialize(map[string]string{"b": "2", "a": "1"}))
	want := "\"a\" = \"1\";\n\"b\" = \"2\";\n"
	if out != want {
		t.Errorf("serialize = %q, want %q", out, want)
	}
}

func TestWriteFileParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Localizable.table")
	want := map[string]string{"hello": "hej"}
	if err := WriteFile(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.table"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
