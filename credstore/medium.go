package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Medium is a physical key/value store backing the credential record.
// Implementations may fail; the Credentials facade is responsible for
// swallowing and logging those failures.
type Medium interface {
	// Get returns the stored value and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores the value. Best effort; no rollback on failure.
	Set(key, value string) error
	// Delete removes the key. Idempotent.
	Delete(key string) error
}

// StorageError reports a read/write/parse failure against a storage medium.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FileMedium persists values as a JSON object in a single file. Reads go
// through to disk so that concurrent processes observe each other's writes,
// last-write-wins.
type FileMedium struct {
	mu   sync.Mutex
	path string
}

// NewFileMedium creates a file-backed medium at path. The file is created on
// first write.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path}
}

func (f *FileMedium) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Key: f.path, Err: err}
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, &StorageError{Op: "parse", Key: f.path, Err: err}
	}
	return values, nil
}

func (f *FileMedium) store(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return &StorageError{Op: "encode", Key: f.path, Err: err}
	}
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return &StorageError{Op: "write", Key: f.path, Err: err}
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &StorageError{Op: "write", Key: f.path, Err: err}
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return &StorageError{Op: "write", Key: f.path, Err: err}
	}
	return nil
}

func (f *FileMedium) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileMedium) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		// A corrupt store must not block writes forever; start over.
		values = map[string]string{}
	}
	values[key] = value
	return f.store(values)
}

func (f *FileMedium) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		values = map[string]string{}
	}
	delete(values, key)
	return f.store(values)
}

// MemMedium is an in-memory medium for tests and ephemeral sessions.
type MemMedium struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemMedium creates an empty in-memory medium.
func NewMemMedium() *MemMedium {
	return &MemMedium{values: map[string]string{}}
}

func (m *MemMedium) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemMedium) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
