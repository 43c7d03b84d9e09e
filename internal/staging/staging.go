// Package staging manages the per-run scratch directories board renders are
// written into.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// dirPrefix marks directories owned by edaplot inside the scratch root.
const dirPrefix = "run-"

// Scratch is an acquired scratch directory. Release removes it.
type Scratch struct {
	Path string
	once sync.Once
	err  error
}

// Acquire creates a fresh scratch directory below root. The caller must
// defer Release.
func Acquire(root, runID string) (*Scratch, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	path := filepath.Join(root, dirPrefix+sanitize(runID))
	if err := os.Mkdir(path, 0o700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("scratch directory %s already exists", path)
		}
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Scratch{Path: path}, nil
}

// Release removes the scratch directory and everything in it. It is safe to
// call more than once.
func (s *Scratch) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.err = os.RemoveAll(s.Path)
	})
	return s.err
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
