package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage keeps audio artifacts as write-once blobs on disk. Each blob is
// keyed by a fresh uuid so no two utterances can ever share one.
type Storage struct {
	root    string
	baseURL string
}

// New creates the media root if needed and returns a Storage rooted there.
func New(root, baseURL string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Storage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root returns the directory blobs are stored under.
func (s *Storage) Root() string { return s.root }

// Save writes data as a new blob named <prefix>_<uuid><ext> and returns its
// path on disk and its public URL. Blobs are write-once: an existing file is
// never overwritten.
func (s *Storage) Save(prefix, ext string, data []byte) (path, url string, err error) {
	name := fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)
	path = filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create audio blob: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", "", fmt.Errorf("write audio blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close audio blob: %w", err)
	}

	return path, s.baseURL + "/" + name, nil
}

// ListOrphans returns the paths of blobs not present in known. Used by the
// maintenance job after conversation cascade deletes. Blobs modified within
// grace are skipped: a freshly saved blob is on disk before its utterance
// row commits, and must not be mistaken for an orphan in that window.
func (s *Storage) ListOrphans(known map[string]bool, grace time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan media root: %w", err)
	}
	cutoff := time.Now().Add(-grace)
	var orphans []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if known[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // raced with a delete
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		orphans = append(orphans, path)
	}
	return orphans, nil
}

// Remove deletes a blob by path. Missing files are not an error.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
