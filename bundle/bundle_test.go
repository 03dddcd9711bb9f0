package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/langtab/langtab/settings"
	"github.com/langtab/langtab/table"
)

func openTestStore(t *testing.T, langs ...string) *Store {
	t.Helper()
	if len(langs) == 0 {
		langs = []string{"en", "sv"}
	}
	s, err := Open(t.TempDir(), "Localizable", langs, settings.NewMemStore())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestOpen_CreatesFreshLayout(t *testing.T) {
	s := openTestStore(t)
	root := s.CurrentRoot()

	for _, lang := range []string{"en", "sv"} {
		path := filepath.Join(root, lang+LangDirSuffix, "Localizable"+TableFileExt)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing table file for %s: %v", lang, err)
		}
	}
	if !strings.HasPrefix(s.CurrentRootName(), "bundle-") {
		t.Errorf("root name = %q", s.CurrentRootName())
	}
}

func TestCreateLayout_Idempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "r")
	if err := CreateLayout(root, "Localizable", []string{"en"}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "en"+LangDirSuffix, "Localizable"+TableFileExt)
	if err := os.WriteFile(path, []byte("\"k\" = \"v\";\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// A second CreateLayout must not truncate existing files.
	if err := CreateLayout(root, "Localizable", []string{"en"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("existing table file was truncated")
	}
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := table.FromMap(map[string]map[string]string{
		"en": {"hello": "hello", "bye": "good\nbye"},
		"sv": {"hello": "hej", `quo"ted`: `va\lue`},
	})

	if _, err := s.WriteAtomic(want); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	for _, lang := range []string{"en", "sv"} {
		if !reflect.DeepEqual(got.Entries(lang), want.Entries(lang)) {
			t.Errorf("%s = %v, want %v", lang, got.Entries(lang), want.Entries(lang))
		}
	}
}

func TestWriteAtomic_ReplacesRootAndDeletesStale(t *testing.T) {
	s := openTestStore(t)
	stale := s.CurrentRoot()

	tbl := table.New()
	tbl.Set("en", "hello", "hello")
	name, err := s.WriteAtomic(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if name == "" || name == filepath.Base(stale) {
		t.Fatalf("expected a fresh root, got %q", name)
	}
	if s.CurrentRootName() != name {
		t.Errorf("current = %q, want %q", s.CurrentRootName(), name)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale root still present: %v", err)
	}
}

func TestWriteAtomic_FailurePreservesCurrent(t *testing.T) {
	s := openTestStore(t)

	pre := table.New()
	pre.Set("en", "hello", "hello")
	pre.Set("sv", "hello", "hej")
	if _, err := s.WriteAtomic(pre); err != nil {
		t.Fatal(err)
	}
	preRoot := s.CurrentRootName()

	// Fail after the first of two language files.
	calls := 0
	s.writeFile = func(path string, data []byte, perm os.FileMode) error {
		calls++
		if calls > 1 {
			return errors.New("disk full")
		}
		return os.WriteFile(path, data, perm)
	}

	next := table.New()
	next.Set("en", "hello", "CHANGED")
	next.Set("sv", "hello", "CHANGED")
	if _, err := s.WriteAtomic(next); err == nil {
		t.Fatal("expected write failure")
	}

	if s.CurrentRootName() != preRoot {
		t.Errorf("current root changed to %q after failed write", s.CurrentRootName())
	}
	s.writeFile = os.WriteFile
	got := s.Load()
	if v, _ := got.Get("en", "hello"); v != "hello" {
		t.Errorf("en/hello = %q, want pre-write value", v)
	}
	if v, _ := got.Get("sv", "hello"); v != "hej" {
		t.Errorf("sv/hello = %q, want pre-write value", v)
	}
}

func TestLoad_MissingAndCorruptFiles(t *testing.T) {
	s := openTestStore(t)

	// Corrupt one language file, remove the other's directory entirely.
	root := s.CurrentRoot()
	if err := os.WriteFile(filepath.Join(root, "en"+LangDirSuffix, "Localizable"+TableFileExt), []byte("!!! not a table"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(root, "sv"+LangDirSuffix)); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if n := len(got.Entries("en")); n != 0 {
		t.Errorf("corrupt en yielded %d entries", n)
	}
	if n := len(got.Entries("sv")); n != 0 {
		t.Errorf("missing sv yielded %d entries", n)
	}
}

func TestLoad_OneCorruptLanguageDoesNotBlockOthers(t *testing.T) {
	s := openTestStore(t)
	tbl := table.New()
	tbl.Set("en", "hello", "hello")
	tbl.Set("sv", "hello", "hej")
	if _, err := s.WriteAtomic(tbl); err != nil {
		t.Fatal(err)
	}

	root := s.CurrentRoot()
	if err := os.WriteFile(filepath.Join(root, "en"+LangDirSuffix, "Localizable"+TableFileExt), []byte{0xff, 0xfe, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if v, _ := got.Get("sv", "hello"); v != "hej" {
		t.Errorf("sv/hello = %q, want hej", v)
	}
}

func TestOpen_ReusesPersistedRoot(t *testing.T) {
	base := t.TempDir()
	slot := settings.NewFileStore(filepath.Join(base, "state.json"))

	s1, err := Open(base, "Localizable", []string{"en"}, slot)
	if err != nil {
		t.Fatal(err)
	}
	tbl := table.New()
	tbl.Set("en", "hello", "hello")
	name, err := s1.WriteAtomic(tbl)
	if err != nil {
		t.Fatal(err)
	}

	// Reopen: same slot, same base — must pick up the committed root.
	s2, err := Open(base, "Localizable", []string{"en"}, slot)
	if err != nil {
		t.Fatal(err)
	}
	if s2.CurrentRootName() != name {
		t.Errorf("reopened current = %q, want %q", s2.CurrentRootName(), name)
	}
	if v, _ := s2.Load().Get("en", "hello"); v != "hello" {
		t.Errorf("reopened en/hello = %q", v)
	}
}

func TestOpen_StaleSlotFallsBackToFreshRoot(t *testing.T) {
	base := t.TempDir()
	slot := settings.NewMemStore()
	if err := slot.Set("current-root", "bundle-gone"); err != nil {
		t.Fatal(err)
	}

	s, err := Open(base, "Localizable", []string{"en"}, slot)
	if err != nil {
		t.Fatal(err)
	}
	if s.CurrentRootName() == "bundle-gone" {
		t.Error("store adopted a root that does not exist on disk")
	}
	if v, err := slot.Get("current-root"); err != nil || v != s.CurrentRootName() {
		t.Errorf("slot = %q, want %q", v, s.CurrentRootName())
	}
}

func TestDelete_MissingRootIsNoError(t *testing.T) {
	s := openTestStore(t)
	// RemoveAll on a missing path succeeds; Delete mirrors that.
	if err := s.Delete("bundle-never-existed"); err != nil {
		t.Errorf("Delete = %v", err)
	}
}

func TestScopedWrite(t *testing.T) {
	s := openTestStore(t)
	tbl := table.New()
	tbl.Set("en", "hello", "hello")
	if _, err := s.WriteAtomic(tbl, "en"); err != nil {
		t.Fatal(err)
	}
	got := s.LoadLanguages([]string{"en"})
	if v, _ := got.Get("en", "hello"); v != "hello" {
		t.Errorf("en/hello = %q", v)
	}
}

func TestScopedWrite_CarriesForwardOtherLanguages(t *testing.T) {
	s := openTestStore(t, "en", "sv", "de")

	full := table.FromMap(map[string]map[string]string{
		"en": {"hello": "hello"},
		"sv": {"hello": "hej"},
		"de": {"hello": "hallo"},
	})
	if _, err := s.WriteAtomic(full); err != nil {
		t.Fatal(err)
	}

	// A write scoped to en only must not drop the committed sv and de
	// tables from the new root.
	scoped := table.New()
	scoped.Set("en", "bye", "bye")
	if _, err := s.WriteAtomic(scoped, "en"); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if v, _ := got.Get("sv", "hello"); v != "hej" {
		t.Errorf("sv/hello = %q, want carried forward", v)
	}
	if v, _ := got.Get("de", "hello"); v != "hallo" {
		t.Errorf("de/hello = %q, want carried forward", v)
	}
	if v, _ := got.Get("en", "bye"); v != "bye" {
		t.Errorf("en/bye = %q", v)
	}
	// The scoped language was replaced, not merged, at the store layer.
	if _, ok := got.Get("en", "hello"); ok {
		t.Error("en was serialized from the scoped table, hello should be gone")
	}
}

// slowSlot widens the window between persisting the root name and any
// subsequent store activity by delaying every Set.
type slowSlot struct {
	settings.Slot
}

func (s *slowSlot) Set(name, value string) error {
	time.Sleep(2 * time.Millisecond)
	return s.Slot.Set(name, value)
}

func TestWriteAtomic_ConcurrentWritesKeepSlotAndPointerInSync(t *testing.T) {
	base := t.TempDir()
	slot := &slowSlot{Slot: settings.NewMemStore()}
	s, err := Open(base, "Localizable", []string{"en"}, slot)
	if err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl := table.New()
			tbl.Set("en", "k", fmt.Sprintf("v%d", i))
			if _, err := s.WriteAtomic(tbl); err != nil {
				t.Errorf("WriteAtomic: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// The persisted slot and the in-memory pointer must agree, and the
	// root they name must exist with the winning write's content.
	current := s.CurrentRootName()
	persisted, err := slot.Get("current-root")
	if err != nil {
		t.Fatal(err)
	}
	if persisted != current {
		t.Fatalf("slot = %q, in-memory current = %q: pointers diverged", persisted, current)
	}
	if _, err := os.Stat(filepath.Join(base, persisted)); err != nil {
		t.Fatalf("persisted root missing on disk: %v", err)
	}

	// A restart adopts the persisted root and sees a committed write.
	s2, err := Open(base, "Localizable", []string{"en"}, slot)
	if err != nil {
		t.Fatal(err)
	}
	if s2.CurrentRootName() != persisted {
		t.Errorf("reopened current = %q, want %q", s2.CurrentRootName(), persisted)
	}
	if v, ok := s2.Load().Get("en", "k"); !ok || !strings.HasPrefix(v, "v") {
		t.Errorf("en/k = %q, %v: committed write lost across restart", v, ok)
	}
}
