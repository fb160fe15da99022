package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultDirPermissions = 0o755

	DefaultMaxAge        = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Workspace is a directory owned by exactly one request.
type Workspace struct {
	ID  string
	Dir string
}

// Store hands out request-scoped directories under a common root and
// removes them when their owner is done, or when the janitor finds them
// older than maxAge.
type Store struct {
	root   string
	maxAge time.Duration

	mu      sync.Mutex
	live    map[string]bool
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewStore(root string, maxAge time.Duration) (*Store, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(root, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("creating workspace root %s: %w", root, err)
	}
	return &Store{
		root:    root,
		maxAge:  maxAge,
		live:    make(map[string]bool),
		pending: make(map[string]*time.Timer),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

// New creates a fresh workspace named by a UUID v7, so names sort by
// creation time.
func (s *Store) New() (*Workspace, error) {
	id := NewID()
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	s.mu.Lock()
	s.live[id] = true
	s.mu.Unlock()
	return &Workspace{ID: id, Dir: dir}, nil
}

// Release removes the workspace after grace without blocking the caller.
// A zero grace removes it right away in the background.
func (s *Store) Release(ws *Workspace, grace time.Duration) {
	if ws == nil {
		return
	}
	s.wg.Add(1)
	s.mu.Lock()
	delete(s.live, ws.ID)
	s.pending[ws.ID] = time.AfterFunc(grace, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.pending, ws.ID)
		s.mu.Unlock()
		s.remove(ws.Dir)
	})
	s.mu.Unlock()
}

// Wait blocks until every scheduled release has run.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Flush runs every pending release immediately. It is used on shutdown.
func (s *Store) Flush() {
	var dirs []string
	s.mu.Lock()
	for id, t := range s.pending {
		if t.Stop() {
			dirs = append(dirs, filepath.Join(s.root, id))
			delete(s.pending, id)
			s.wg.Done()
		}
	}
	s.mu.Unlock()

	for _, dir := range dirs {
		s.remove(dir)
	}
}

// Sweep removes workspaces older than maxAge and returns how many it
// removed. Directories still checked out or with a pending release are
// left alone.
func (s *Store) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		log.WithError(err).Warn("Workspace sweep failed")
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s.mu.Lock()
		_, scheduled := s.pending[e.Name()]
		inUse := s.live[e.Name()]
		s.mu.Unlock()
		if scheduled || inUse {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < s.maxAge {
			continue
		}
		if s.remove(filepath.Join(s.root, e.Name())) {
			removed++
		}
	}
	return removed
}

// Janitor sweeps every interval until ctx is done.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.WithField("removed", n).Info("Swept stale workspaces")
			}
		}
	}
}

func (s *Store) remove(dir string) bool {
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).Warnf("Cleanup error for %s", dir)
		return false
	}
	log.WithField("dir", dir).Debug("Workspace removed")
	return true
}

// NewID returns a UUID v7 string, falling back to a timestamp when the
// random source fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	return id.String()
}
