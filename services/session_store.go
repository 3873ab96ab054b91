package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sahilchouksey/face-gallery-api/model"
)

// SessionStore reads and writes the per-student session documents.
// Writes are atomic (temp file plus rename) and serialized per path,
// so concurrent uploads for the same student cannot interleave.
type SessionStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionStore creates a new session store
func NewSessionStore() *SessionStore {
	return &SessionStore{locks: make(map[string]*sync.Mutex)}
}

func (s *SessionStore) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[path] = l
	return l
}

// Read loads the session document at path. Missing or corrupt files
// return an empty document so callers can repair via ApplyDefaults.
func (s *SessionStore) Read(path string) (*model.SessionDocument, error) {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()
	return s.readLocked(path)
}

func (s *SessionStore) readLocked(path string) (*model.SessionDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.SessionDocument{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	doc := &model.SessionDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		// A half-written or hand-edited file should not wedge the
		// student forever. Start over with defaults.
		return &model.SessionDocument{}, nil
	}
	return doc, nil
}

// Write persists the document atomically.
func (s *SessionStore) Write(path string, doc *model.SessionDocument) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(path, doc)
}

func (s *SessionStore) writeLocked(path string, doc *model.SessionDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Update applies fn to the current document and writes the result,
// all under the per-path lock.
func (s *SessionStore) Update(path string, fn func(*model.SessionDocument)) (*model.SessionDocument, error) {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	doc, err := s.readLocked(path)
	if err != nil {
		return nil, err
	}
	fn(doc)
	if err := s.writeLocked(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarkVideoUploaded flips the upload flag and verifies the write by
// reading the file back. A rename that silently landed on a full disk
// would otherwise let the pipeline continue against a stale document.
func (s *SessionStore) MarkVideoUploaded(path, videoPath, uploadTime string) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	doc, err := s.readLocked(path)
	if err != nil {
		return err
	}
	doc.VideoUploaded = true
	doc.VideoPath = videoPath
	doc.UploadTime = uploadTime
	if err := s.writeLocked(path, doc); err != nil {
		return err
	}

	check, err := s.readLocked(path)
	if err != nil {
		return fmt.Errorf("failed to verify session update: %w", err)
	}
	if !check.VideoUploaded {
		return fmt.Errorf("session update verification failed: videoUploaded not persisted")
	}
	return nil
}

// Snapshot returns the raw bytes of the session file, or nil when the
// file does not exist. Used to roll back after a failed re-upload.
func (s *SessionStore) Snapshot(path string) ([]byte, error) {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to snapshot session: %w", err)
	}
	return data, nil
}

// Restore writes back a snapshot taken earlier. A nil snapshot removes
// the file, matching the state before the attempt.
func (s *SessionStore) Restore(path string, snapshot []byte) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	if snapshot == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove session during restore: %w", err)
		}
		return nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write session restore: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session during restore: %w", err)
	}
	return nil
}
