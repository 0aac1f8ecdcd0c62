// Package filestore implements the saved-files store: a single flat
// directory of source files keyed by their sanitized filename.
//
// There is deliberately no versioning and no conflict detection — saving a
// name that already exists overwrites it, and concurrent writes to the same
// name are last-write-wins at the filesystem level. The store's one real
// responsibility is making sure a request can never touch anything OUTSIDE
// the directory: every filename is reduced to its final path component
// before it goes anywhere near the filesystem.
package filestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/model"
)

// allowedExtensions is the fixed allow-list of savable file types.
var allowedExtensions = map[string]bool{
	".cpp": true,
	".py":  true,
	".c":   true,
	".h":   true,
	".hpp": true,
}

// Store reads and writes source files inside one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates the storage directory if needed and returns a Store.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating storage dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the storage directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Sanitize reduces a user-supplied filename to a bare basename.
//
// PATH TRAVERSAL:
// "../../etc/passwd.cpp" must save a file literally named "passwd.cpp"
// inside the storage directory — never anything outside it. filepath.Base
// strips every directory component, including ".." segments; what's left is
// rejected if it isn't a usable name.
func Sanitize(filename string) (string, error) {
	// Normalise Windows-style separators before taking the base so that
	// "..\\..\\x.cpp" can't smuggle components through on Linux.
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", apperror.ValidationFailed("filename", "invalid filename")
	}
	return name, nil
}

// Save validates and writes a file, overwriting any existing file of the
// same sanitized name. Returns the sanitized name actually written.
//
// Token gating happens at the HTTP boundary — the store itself only enforces
// the content rules.
func (s *Store) Save(filename, content string) (string, error) {
	if filename == "" || content == "" {
		return "", apperror.ValidationFailed("filename", "filename and code are required")
	}

	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "", apperror.ValidationFailed("filename", "unsupported file type")
	}

	name, err := Sanitize(filename)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("filestore: writing %s: %w", name, err)
	}

	s.logger.Info("file saved", slog.String("name", name), slog.Int("bytes", len(content)))
	return name, nil
}

// List enumerates the storage directory, filtered to the allow-listed
// extensions. Every matching entry is returned on every call — there is no
// pagination, the directory is expected to stay small.
func (s *Store) List() ([]model.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: reading storage dir: %w", err)
	}

	files := make([]model.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !allowedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// The entry vanished between ReadDir and Stat — skip it.
			continue
		}
		files = append(files, model.FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the full content of a saved file.
func (s *Store) Read(filename string) (string, error) {
	name, err := Sanitize(filename)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperror.NotFound("file", name)
		}
		return "", fmt.Errorf("filestore: reading %s: %w", name, err)
	}
	return string(data), nil
}

// Delete removes a saved file.
func (s *Store) Delete(filename string) error {
	name, err := Sanitize(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return apperror.NotFound("file", name)
		}
		return fmt.Errorf("filestore: deleting %s: %w", name, err)
	}

	s.logger.Info("file deleted", slog.String("name", name))
	return nil
}
