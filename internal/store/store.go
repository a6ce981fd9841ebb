package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/idgen"
	"github.com/scrypster/mnemora/internal/pathsafe"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

const (
	archivedDirName = "archived"
	fileExt         = ".md"
	manifestSuffix  = "-archive.md"
)

// Store is the file-based Memory Store. Active memories live as flat
// <id>.md files directly under root; archived memories and the dated
// archival manifests live under root/archived (spec §6's filesystem
// layout). Writers are serialized per-id via a striped mutex (filesystem
// rename is atomic per-file, but we also guard the read-merge-write cycle
// inside Update/Archive against concurrent callers in this process).
// Readers never take locks.
type Store struct {
	root        string
	archivedDir string
	clock       clock.Clock

	mu     sync.Mutex
	idLock map[string]*sync.Mutex
}

// New creates a Store rooted at root, creating the root and its archived
// subdirectory if they do not exist.
func New(root string, c clock.Clock) (*Store, error) {
	archivedDir := filepath.Join(root, archivedDirName)
	for _, d := range []string{root, archivedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
	}
	return &Store{
		root:        root,
		archivedDir: archivedDir,
		clock:       c,
		idLock:      make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.idLock[id]
	if !ok {
		l = &sync.Mutex{}
		s.idLock[id] = l
	}
	return l
}

// CreateParams carries the arguments to Create.
type CreateParams struct {
	Content         string
	ProjectID       string
	Tags            []string
	Importance      float64
	Scope           types.Scope
	SessionID       string
	SourceSessionID string
	Confidence      float64
}

// Create mints an id, writes the file atomically under the active
// directory, and returns the full record. Collisions with an existing file
// are retried with a freshly generated id, since ids embed random bytes.
func (s *Store) Create(p CreateParams) (*types.Memory, error) {
	now := s.clock.Now()

	for attempt := 0; attempt < 5; attempt++ {
		id, err := idgen.New(s.clock)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}

		m := &types.Memory{
			ID:              id,
			Content:         p.Content,
			Created:         now,
			Updated:         now,
			ProjectID:       p.ProjectID,
			Scope:           p.Scope,
			Status:          types.StatusActive,
			Importance:      p.Importance,
			Confidence:      p.Confidence,
			Tags:            append([]string(nil), p.Tags...),
			SessionID:       p.SessionID,
			SourceSessionID: p.SourceSessionID,
			SchemaVersion:   types.CurrentSchemaVersion,
		}

		path, err := pathsafe.ResolveUnder(s.root, id, fileExt)
		if err != nil {
			return nil, err
		}

		if _, err := os.Stat(path); err == nil {
			continue // id collision, retry with a new id
		}

		if err := writeAtomic(path, encode(m)); err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: exhausted id generation retries", mnemerr.ErrStoreError)
}

// Get retrieves a memory by id, checking the active directory first, then
// archived.
func (s *Store) Get(id string) (*types.Memory, error) {
	activePath, err := pathsafe.ResolveUnder(s.root, id, fileExt)
	if err != nil {
		return nil, err
	}
	if m, err := readMemory(activePath); err == nil {
		return m, nil
	} else if err != mnemerr.ErrNotFound {
		return nil, err
	}

	archivedPath, err := pathsafe.ResolveUnder(s.archivedDir, id, fileExt)
	if err != nil {
		return nil, err
	}
	return readMemory(archivedPath)
}

func readMemory(path string) (*types.Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mnemerr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return decode(data)
}

// Update reads the memory, merges permitted fields, writes atomically, and
// bumps Updated. created, source_session_id, and id are preserved.
func (s *Store) Update(id string, u types.MemoryUpdate) (*types.Memory, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if u.Content != nil {
		m.Content = *u.Content
	}
	if u.Tags != nil {
		m.Tags = append([]string(nil), u.Tags...)
	}
	if u.Importance != nil {
		m.Importance = *u.Importance
	}
	if u.Scope != nil {
		m.Scope = *u.Scope
	}
	if u.Confidence != nil {
		m.Confidence = *u.Confidence
	}
	m.Updated = s.clock.Now()

	dir := s.root
	if m.Status == types.StatusArchived {
		dir = s.archivedDir
	}
	path, err := pathsafe.ResolveUnder(dir, id, fileExt)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, encode(m)); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return m, nil
}

// ListFilter restricts List's output.
type ListFilter struct {
	ProjectID string // empty means no filter
	Scope     types.Scope
}

func (f ListFilter) matches(m *types.Memory) bool {
	if f.ProjectID != "" && m.ProjectID != f.ProjectID {
		return false
	}
	if f.Scope != "" && m.Scope != f.Scope {
		return false
	}
	return true
}

// List enumerates records matching filter. Corrupt records are skipped
// (reported via the onCorrupt callback, which may be nil) rather than
// aborting the scan.
func (s *Store) List(filter ListFilter, includeArchived bool, onCorrupt func(path string, err error)) ([]*types.Memory, error) {
	var out []*types.Memory

	dirs := []string{s.root}
	if includeArchived {
		dirs = append(dirs, s.archivedDir)
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
				continue
			}
			if strings.HasSuffix(e.Name(), manifestSuffix) {
				continue // dated archival manifest, not a memory record
			}
			path := filepath.Join(dir, e.Name())
			m, err := readMemory(path)
			if err != nil {
				if onCorrupt != nil {
					onCorrupt(path, err)
				}
				continue
			}
			if filter.matches(m) {
				out = append(out, m)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Archive moves id from active to archived, sets status=archived, adds the
// #archived tag, and appends an entry to the dated archive manifest.
// Idempotent: returns false, nil if the memory is already archived.
func (s *Store) Archive(id, reason string) (bool, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	activePath, err := pathsafe.ResolveUnder(s.root, id, fileExt)
	if err != nil {
		return false, err
	}

	m, err := readMemory(activePath)
	if err != nil {
		if err == mnemerr.ErrNotFound {
			// Not in active; either archived already or never existed.
			if _, archErr := s.Get(id); archErr == nil {
				return false, nil
			}
			return false, mnemerr.ErrNotFound
		}
		return false, err
	}

	importanceAtArchive := m.Importance
	m.Status = types.StatusArchived
	if !m.HasTag("#archived") {
		m.Tags = append(m.Tags, "#archived")
	}
	m.Updated = s.clock.Now()

	archivedPath, err := pathsafe.ResolveUnder(s.archivedDir, id, fileExt)
	if err != nil {
		return false, err
	}

	if err := writeAtomic(archivedPath, encode(m)); err != nil {
		return false, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	if err := os.Remove(activePath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}

	if err := s.appendManifest(id, reason, m.Updated, importanceAtArchive); err != nil {
		return false, err
	}

	return true, nil
}

// appendManifest appends a markdown bullet recording id's archival to that
// day's dated manifest (spec §6: "YYYY-MM-DD-archive.md"), creating the
// file with a heading on the first archival of the day.
func (s *Store) appendManifest(id, reason string, archivedAt time.Time, importanceAtArchive float64) error {
	day := archivedAt.UTC().Format("2006-01-02")
	name := day + manifestSuffix
	path := filepath.Join(s.archivedDir, name)

	needsHeading := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeading = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if needsHeading {
		if _, err := w.WriteString("# Archival manifest for " + day + "\n\n"); err != nil {
			return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
	}

	line := fmt.Sprintf("- `%s` archived at %s (importance %s): %s\n",
		id,
		archivedAt.UTC().Format(time.RFC3339),
		strconv.FormatFloat(importanceAtArchive, 'f', -1, 64),
		reason,
	)
	if _, err := w.WriteString(line); err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return w.Flush()
}

// writeAtomic writes data to a temp file in the same directory as path,
// then renames it into place, so readers never observe a torn write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
