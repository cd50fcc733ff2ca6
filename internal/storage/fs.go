package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cross-process lock tuning. Locks are held only for the duration of a single
// append or profile put, never across a synthesis run.
const (
	lockRetries = 50
	lockBackoff = 10 * time.Millisecond
	lockStale   = 5 * time.Second
)

// FileStore is the default backend: one append-only JSONL file per user for
// interactions, one JSON document per user for the latest profile. Atomicity
// comes from single-write appends and write-then-rename puts; exclusivity
// from a per-user lock file shared by all three services plus an in-process
// keyed mutex.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// OpenFile creates (or reuses) a file store rooted at dataDir.
func OpenFile(dataDir string) (*FileStore, error) {
	for _, sub := range []string{"interactions", "profiles", "locks"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return &FileStore{
		dir:    dataDir,
		logger: slog.Default().With("component", "filestore"),
		users:  make(map[string]*sync.Mutex),
	}, nil
}

// Close is a no-op for the file backend; files are closed after each write.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) logPath(username string) string {
	return filepath.Join(s.dir, "interactions", username+".jsonl")
}

func (s *FileStore) profilePath(username string) string {
	return filepath.Join(s.dir, "profiles", username+".json")
}

func (s *FileStore) userMutex(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[username]
	if !ok {
		m = &sync.Mutex{}
		s.users[username] = m
	}
	return m
}

// acquireLock takes the cross-process lock file for (username, scope).
// A lock older than lockStale is treated as abandoned by a dead writer and
// broken. Returns ErrConflict after the bounded retries are exhausted.
func (s *FileStore) acquireLock(ctx context.Context, username, scope string) (release func(), err error) {
	path := filepath.Join(s.dir, "locks", username+"."+scope+".lock")
	for attempt := 0; attempt < lockRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring lock for %s: %w", username, err)
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStale {
			s.logger.Warn("breaking stale lock", "user", username, "scope", scope)
			os.Remove(path)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, fmt.Errorf("lock for %s/%s held too long: %w", username, scope, ErrConflict)
}

// Append validates rec and writes it as one JSON line. The line is written
// with a single write call so a concurrent reader sees either the whole
// record or nothing.
func (s *FileStore) Append(ctx context.Context, rec *Interaction) error {
	if err := validateInteraction(rec); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	mu := s.userMutex(rec.Username)
	mu.Lock()
	defer mu.Unlock()

	release, err := s.acquireLock(ctx, rec.Username, "log")
	if err != nil {
		return err
	}
	defer release()

	last, err := s.lastTimestamp(rec.Username)
	if err != nil {
		return err
	}
	if err := checkMonotonic(last, rec); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding interaction: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.logPath(rec.Username), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log for %s: %w", rec.Username, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending interaction for %s: %w", rec.Username, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing log for %s: %w", rec.Username, err)
	}
	return nil
}

// lastTimestamp returns the newest persisted timestamp for the user. It is
// re-read under the lock on every append because a sibling process may have
// appended since this process last looked.
func (s *FileStore) lastTimestamp(username string) (time.Time, error) {
	recs, err := s.readFile(username)
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, r := range recs {
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return last, nil
}

// ReadAll returns the user's interactions in timestamp order. The whole file
// is read in one pass, so the result is a consistent snapshot: records
// appended afterwards are fully excluded.
func (s *FileStore) ReadAll(ctx context.Context, username string) ([]Interaction, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := s.readFile(username)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	return recs, nil
}

func (s *FileStore) readFile(username string) ([]Interaction, error) {
	f, err := os.Open(s.logPath(username))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening log for %s: %w", username, err)
	}
	defer f.Close()

	var recs []Interaction
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Interaction
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn trailing line from a writer that died mid-append.
			s.logger.Warn("skipping malformed log line", "user", username, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log for %s: %w", username, err)
	}
	return recs, nil
}

// Stats counts interactions by kind without materializing them for synthesis.
func (s *FileStore) Stats(ctx context.Context, username string) (Stats, error) {
	recs, err := s.ReadAll(ctx, username)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Username: username, TotalInteractions: len(recs)}
	for _, r := range recs {
		switch r.Kind {
		case KindChat:
			st.TotalChatTurns++
		case KindResume:
			st.TotalAnalyses++
		}
	}
	return st, nil
}

// Usernames lists every user with a log file, sorted.
func (s *FileStore) Usernames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, "interactions"))
	if err != nil {
		return nil, fmt.Errorf("listing interaction logs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(names)
	return names, nil
}

// GetProfile reads the user's latest profile document.
func (s *FileStore) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.profilePath(username))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile for %s: %w", username, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding profile for %s: %w", username, err)
	}
	return &p, nil
}

// PutProfile writes the profile to a temp file and renames it into place, so
// readers see either the previous or the new document, never a partial one.
// The revision counter is advanced under the user's profile lock.
func (s *FileStore) PutProfile(ctx context.Context, p *Profile) error {
	if p == nil {
		return &ValidationError{Field: "profile", Reason: "profile is nil"}
	}
	if err := ValidateUsername(p.Username); err != nil {
		return err
	}

	release, err := s.acquireLock(ctx, p.Username, "profile")
	if err != nil {
		return err
	}
	defer release()

	var revision int64
	if prev, err := s.GetProfile(ctx, p.Username); err == nil {
		revision = prev.Revision
	} else if err != ErrNotFound {
		return err
	}
	p.Revision = revision + 1

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile for %s: %w", p.Username, err)
	}

	dir := filepath.Join(s.dir, "profiles")
	tmp, err := os.CreateTemp(dir, "."+p.Username+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp profile for %s: %w", p.Username, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing profile for %s: %w", p.Username, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp profile for %s: %w", p.Username, err)
	}
	if err := os.Rename(tmpName, s.profilePath(p.Username)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing profile for %s: %w", p.Username, err)
	}
	return nil
}
