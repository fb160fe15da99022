package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T, maxAge time.Duration) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "workspaces"), maxAge)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewWorkspacesAreUnique(t *testing.T) {
	s := newTestStore(t, 0)
	a, err := s.New()
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.New()
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID || a.Dir == b.Dir {
		t.Errorf("workspaces collide: %+v %+v", a, b)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("workspace id %q is not a uuid: %v", a.ID, err)
	}
	if filepath.Dir(a.Dir) != s.Root() {
		t.Errorf("workspace %s is not under %s", a.Dir, s.Root())
	}
}

func TestReleaseRemovesWorkspace(t *testing.T) {
	s := newTestStore(t, 0)
	ws, err := s.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Dir, "song.m4a"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s.Release(ws, 200*time.Millisecond)
	if _, err := os.Stat(ws.Dir); err != nil {
		t.Fatalf("workspace removed before the grace period: %v", err)
	}
	s.Wait()
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still present after release: %v", err)
	}
}

func TestFlushRunsPendingReleases(t *testing.T) {
	s := newTestStore(t, 0)
	ws, err := s.New()
	if err != nil {
		t.Fatal(err)
	}
	s.Release(ws, time.Hour)
	s.Flush()
	s.Wait()
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still present after flush: %v", err)
	}
}

func leftover(t *testing.T, s *Store) *Workspace {
	t.Helper()
	ws := &Workspace{ID: NewID()}
	ws.Dir = filepath.Join(s.Root(), ws.ID)
	if err := os.Mkdir(ws.Dir, DefaultDirPermissions); err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestSweep(t *testing.T) {
	s := newTestStore(t, time.Minute)
	// old and fresh are left behind by an earlier process
	old, fresh := leftover(t, s), leftover(t, s)
	pending, _ := s.New()
	active, _ := s.New()

	past := time.Now().Add(-2 * time.Minute)
	for _, ws := range []*Workspace{old, pending, active} {
		if err := os.Chtimes(ws.Dir, past, past); err != nil {
			t.Fatal(err)
		}
	}
	s.Release(pending, time.Hour)
	defer func() {
		s.Release(active, 0)
		s.Flush()
		s.Wait()
	}()

	if n := s.Sweep(time.Now()); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if _, err := os.Stat(old.Dir); !os.IsNotExist(err) {
		t.Error("old workspace survived the sweep")
	}
	for _, ws := range []*Workspace{fresh, pending, active} {
		if _, err := os.Stat(ws.Dir); err != nil {
			t.Errorf("workspace %s swept too early", ws.ID)
		}
	}
}
