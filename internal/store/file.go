package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voice-beyond/companion/pkg/logger"
)

// FileStore keeps the whole profile in one JSON document.
type FileStore struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

// NewFileStore creates the parent directory; the file itself appears on first write.
// A nil logger discards warnings.
func NewFileStore(path string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{path: path, log: log.WithComponent("file_store")}, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadUnlocked()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadUnlocked()
	if err != nil {
		return err
	}
	doc[key] = json.RawMessage(value)
	return f.saveUnlocked(doc)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadUnlocked()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.saveUnlocked(doc)
}

func (f *FileStore) Ping(context.Context) error {
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// loadUnlocked reads the document. Values are kept raw so a malformed entry
// only affects its own key. A missing or empty file is an empty document, and
// so is one that no longer decodes: it is moved aside to <path>.corrupt.
func (f *FileStore) loadUnlocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		aside := f.path + ".corrupt"
		if rerr := os.Rename(f.path, aside); rerr != nil {
			aside = ""
		}
		f.log.Warn("Profile file is corrupt, starting empty", "path", f.path, "moved_to", aside, "error", err)
		return map[string]json.RawMessage{}, nil
	}
	out := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// saveUnlocked writes through a temp file so a crash never leaves a torn document.
func (f *FileStore) saveUnlocked(doc map[string]json.RawMessage) error {
	flat := make(map[string]string, len(doc))
	for k, v := range doc {
		flat[k] = string(v)
	}
	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}
