package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/C0rn3j/BeatSync/internal/shared"
)

func initManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	m := NewManager()
	if err := m.Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return m, path
}

func TestTryAddIdempotent(t *testing.T) {
	m, _ := initManager(t)

	if !m.TryAdd("AAAA", "First", "Author", FlagDownloaded) {
		t.Fatal("first TryAdd() = false, want true")
	}
	if m.TryAdd("AAAA", "Second", "Other", FlagError) {
		t.Fatal("second TryAdd() = true, want false")
	}

	entry, ok := m.TryGet("AAAA")
	if !ok {
		t.Fatal("TryGet() after TryAdd returned no entry")
	}
	if entry.Name != "First" || entry.Flag != FlagDownloaded {
		t.Errorf("entry = %+v, want first call's data", entry)
	}
}

func TestTryAddBeforeInitialize(t *testing.T) {
	m := NewManager()
	if m.TryAdd("AAAA", "Song", "Author", FlagDownloaded) {
		t.Error("TryAdd() on uninitialized manager = true, want false")
	}
}

func TestSetFlag(t *testing.T) {
	m, _ := initManager(t)
	m.TryAdd("AAAA", "Song", "Author", FlagDeleted)

	if err := m.SetFlag("AAAA", FlagDownloaded); err != nil {
		t.Fatalf("SetFlag() error = %v", err)
	}
	entry, _ := m.TryGet("AAAA")
	if entry.Flag != FlagDownloaded {
		t.Errorf("flag = %s, want %s", entry.Flag, FlagDownloaded)
	}

	err := m.SetFlag("BBBB", FlagError)
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("SetFlag() on unknown hash error = %v, want ErrNotFound", err)
	}
}

func TestRoundTrip(t *testing.T) {
	m, path := initManager(t)
	m.TryAdd("AAAA", "First", "Author A", FlagDownloaded)
	m.TryAdd("BBBB", "Second", "Author B", FlagPreExisting)
	m.TryAdd("CCCC", "Third", "Author C", FlagError)

	if err := m.WriteToFile(); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}

	loaded := NewManager()
	if err := loaded.Initialize(path); err != nil {
		t.Fatalf("Initialize() after write error = %v", err)
	}
	if loaded.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", loaded.Count())
	}
	for hash, want := range m.Entries() {
		got, ok := loaded.TryGet(hash)
		if !ok {
			t.Errorf("entry %s missing after round-trip", hash)
			continue
		}
		if got.Name != want.Name || got.Flag != want.Flag || !got.Date.Equal(want.Date) {
			t.Errorf("entry %s = %+v, want %+v", hash, got, want)
		}
	}
}

func TestInitializeMissingFileStartsEmpty(t *testing.T) {
	m := NewManager()
	if err := m.Initialize(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("Initialize() on missing file error = %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestInitializeMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager()
	if err := m.Initialize(path); err == nil {
		t.Error("Initialize() on malformed file error = nil, want error")
	}
}

func TestInitializeSamePathIsNoOp(t *testing.T) {
	m, path := initManager(t)
	m.TryAdd("AAAA", "Song", "Author", FlagDownloaded)

	if err := m.Initialize(path); err != nil {
		t.Fatalf("re-Initialize() error = %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() after re-initialize with same path = %d, want 1", m.Count())
	}
}

func TestReconcile(t *testing.T) {
	m, _ := initManager(t)
	m.TryAdd("A", "a", "", FlagDownloaded)
	m.TryAdd("B", "b", "", FlagPreExisting)
	m.TryAdd("C", "c", "", FlagDeleted)

	flagged := m.Reconcile(map[string]struct{}{"A": {}})
	if flagged != 1 {
		t.Errorf("Reconcile() = %d, want 1", flagged)
	}

	wantFlags := map[string]Flag{
		"A": FlagDownloaded, // still on disk
		"B": FlagDeleted,    // gone from disk
		"C": FlagDeleted,    // already terminal
	}
	for hash, want := range wantFlags {
		entry, _ := m.TryGet(hash)
		if entry.Flag != want {
			t.Errorf("entry %s flag = %s, want %s", hash, entry.Flag, want)
		}
	}
}

func TestWriteToFileUninitialized(t *testing.T) {
	m := NewManager()
	if err := m.WriteToFile(); !errors.Is(err, shared.ErrHistoryNotReady) {
		t.Errorf("WriteToFile() error = %v, want ErrHistoryNotReady", err)
	}
}
