package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileRepository is a Repository persisted as a YAML document. Reads are
// served from memory; Save writes the current state back to disk.
type FileRepository struct {
	*MapRepository
	path string
}

// NewFileRepository creates a repository backed by the given YAML file. A
// missing file yields an empty repository; a present but unreadable file is an
// error.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{
		MapRepository: NewMapRepository(),
		path:          path,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the backing file path.
func (r *FileRepository) Path() string {
	return r.path
}

// Reload replaces the in-memory state with the file contents.
func (r *FileRepository) Reload() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.Clear()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", r.path, err)
	}
	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", r.path, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = values
	return nil
}

// Save writes the current state to the backing file. The write goes through a
// temporary file and rename so a crash cannot leave a torn document.
func (r *FileRepository) Save() error {
	r.mu.RLock()
	data, err := yaml.Marshal(r.values)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// Watch reloads the repository whenever the backing file changes on disk and
// invokes onChange after each successful reload. It blocks until the context
// is cancelled.
func (r *FileRepository) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory: editors and our own Save replace the file by
	// rename, which drops a watch on the file itself
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				continue
			}
			if onChange != nil {
				onChange()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
