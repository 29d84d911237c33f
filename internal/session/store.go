package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/vibeworks/agentcore/pkg/content"
)

// ErrNotFound is returned when a session id has no metadata on disk.
var ErrNotFound = errors.New("session: not found")

// Store persists session metadata as whole-file JSON (atomic temp+rename,
// matching the durability idiom of a conventional file-based key/value
// store) and message history as an append-only JSONL log, fsynced on every
// append so a crash mid-write never corrupts an already-committed line.
type Store struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*fileLock
}

// NewStore creates a Store rooted at basePath, creating the directory if
// it does not already exist.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("session: create base dir: %w", err)
	}
	return &Store{basePath: basePath, locks: make(map[string]*fileLock)}, nil
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.basePath, id, "session.json")
}

func (s *Store) historyPath(id string) string {
	return filepath.Join(s.basePath, id, "history.jsonl")
}

func (s *Store) lockFor(path string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = newFileLock(path)
		s.locks[path] = l
	}
	return l
}

// Create allocates a new session with a ULID id (lexically sortable by
// creation time, unlike a random UUID) and an optional parent for
// subagent lineage, then persists its initial metadata.
func (s *Store) Create(ctx context.Context, directory string, parentID *string, now int64) (*Session, error) {
	sess := &Session{
		ID:        ulid.Make().String(),
		ParentID:  parentID,
		Directory: directory,
		Created:   now,
		Updated:   now,
	}
	if err := s.SaveMeta(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveMeta writes session metadata atomically: marshal, write to a temp
// file in the same directory, then rename over the target so readers never
// observe a partially written file.
func (s *Store) SaveMeta(ctx context.Context, sess *Session) error {
	path := s.metaPath(sess.ID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: create session dir: %w", err)
	}

	lock := s.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("session: lock metadata: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: write temp metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: rename metadata: %w", err)
	}
	return nil
}

// Get loads a session's metadata.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: read metadata: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal metadata: %w", err)
	}
	return &sess, nil
}

// List returns every session id under the store, sorted ascending (which,
// since ids are ULIDs, is also creation order).
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Children returns the ids of every session whose ParentID is parentID,
// i.e. the direct subagent lineage of a session.
func (s *Store) Children(ctx context.Context, parentID string) ([]string, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if sess.ParentID != nil && *sess.ParentID == parentID {
			out = append(out, id)
		}
	}
	return out, nil
}

// historyRecord is one JSONL line of the history log.
type historyRecord struct {
	Message content.Message `json:"message"`
}

// AppendMessage appends one message to a session's history log. The write
// is a single buffered line followed by an explicit Sync, so a line is
// either fully durable or entirely absent — never half-written — even if
// the process is killed immediately after the call returns.
func (s *Store) AppendMessage(ctx context.Context, id string, msg content.Message) error {
	path := s.historyPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("session: create session dir: %w", err)
	}

	lock := s.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("session: lock history: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("session: open history: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(historyRecord{Message: msg})
	if err != nil {
		return fmt.Errorf("session: marshal message: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("session: write history: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("session: sync history: %w", err)
	}
	return nil
}

// LoadMessages reads a session's full history in append order. A trailing
// line with no terminating newline (the signature of a write that was cut
// off mid-append) is silently discarded rather than treated as an error,
// matching the append-only log's crash-tolerance guarantee.
func (s *Store) LoadMessages(ctx context.Context, id string) ([]content.Message, error) {
	path := s.historyPath(id)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: open history: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session: scan history: %w", err)
	}

	var msgs []content.Message
	for i, line := range lines {
		var rec historyRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			if i == len(lines)-1 {
				// A truncated write leaves a partial trailing line; only
				// the last line in the file is tolerated this way.
				break
			}
			return nil, fmt.Errorf("session: decode history line: %w", err)
		}
		msgs = append(msgs, rec.Message)
	}
	return msgs, nil
}

// Delete removes a session's metadata and history permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	dir := filepath.Join(s.basePath, id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// AddChild links childID into parentID's ChildSessionIDs. A subagent's id
// must appear in its parent's child list as soon as the subagent is
// created.
func (s *Store) AddChild(ctx context.Context, parentID, childID string, now int64) error {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return err
	}
	parent.AddChild(childID)
	parent.Updated = now
	return s.SaveMeta(ctx, parent)
}

// RenameTitle is a convenience used by the conversation namer to persist a
// freshly generated title without re-reading metadata first.
func (s *Store) RenameTitle(ctx context.Context, id, title string, now int64) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Title = strings.TrimSpace(title)
	sess.Updated = now
	return s.SaveMeta(ctx, sess)
}
