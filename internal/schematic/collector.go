// Package schematic collects the SVG diff artifacts plotgitsch renders for
// two revisions of a schematic repository.
package schematic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"edaplot/internal/logging"
	"edaplot/internal/postprocess"
	"edaplot/internal/services"
)

// internalDiffMarker prefixes status lines that name no produced file.
const internalDiffMarker = "internal diff"

const lockRetryDelay = 200 * time.Millisecond

// maxOutputLine bounds a single plotgitsch output line.
const maxOutputLine = 1024 * 1024

// Option configures the collector.
type Option func(*Collector)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Collector) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logging.NewComponentLogger(logger, "schematic")
	}
}

// WithLockDir enables the per-repository advisory lock. Lock files are
// created in dir.
func WithLockDir(dir string) Option {
	return func(c *Collector) { c.lockDir = strings.TrimSpace(dir) }
}

// WithTimeout bounds the plotgitsch run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

// Collector runs plotgitsch and gathers the files it reports.
type Collector struct {
	binary  string
	cleaner *postprocess.Cleaner
	exec    services.Executor
	logger  *slog.Logger
	lockDir string
	timeout time.Duration
}

// New constructs a collector. cleaner may be nil.
func New(binary string, cleaner *postprocess.Cleaner, opts ...Option) (*Collector, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "schematic", "init", "plotgitsch binary required", nil)
	}
	c := &Collector{
		binary:  binary,
		cleaner: cleaner,
		exec:    services.CommandExecutor{},
		logger:  logging.NewComponentLogger(nil, "schematic"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Collect renders the diff between revA and revB inside repoPath and returns
// the produced artifacts keyed by file base name. Every reported file is
// removed from the repository whether or not collection succeeds.
func (c *Collector) Collect(ctx context.Context, repoPath, revA, revB string) (map[string]string, error) {
	revA, revB = strings.TrimSpace(revA), strings.TrimSpace(revB)
	if revA == "" || revB == "" {
		return nil, services.Wrap(services.ErrValidation, "schematic", "validate", "two revisions required", nil)
	}
	repo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "schematic", "validate", repoPath, err)
	}
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "schematic", "validate", fmt.Sprintf("%s is not a directory", repo), err)
	}

	unlock, err := c.lock(ctx, repo)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("rendering schematic diff",
		logging.String("repo", repo),
		logging.String("rev_a", revA),
		logging.String("rev_b", revB),
	)

	paths, err := c.run(ctx, repo, revA, revB)
	if err != nil {
		return nil, err
	}

	if dup, ok := firstDuplicate(paths); ok {
		removeAll(paths)
		return nil, services.Wrap(services.ErrToolContract, "schematic", "collect", fmt.Sprintf("artifact %q reported more than once", dup), nil)
	}

	artifacts := make(map[string]string, len(paths))
	for i, path := range paths {
		content, err := c.collectOne(ctx, path)
		if err != nil {
			removeAll(paths[i+1:])
			return nil, err
		}
		artifacts[filepath.Base(path)] = content
	}

	logger.Info("schematic diff collected", logging.Int("artifacts", len(artifacts)))
	return artifacts, nil
}

func (c *Collector) run(ctx context.Context, repo, revA, revB string) ([]string, error) {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := c.exec.Run(runCtx, services.Command{
		Binary: c.binary,
		Args:   []string{"-k", "-i", "echo", revA, revB},
		Dir:    repo,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Files already written by a failing run are still ours to remove.
		paths, _ := ParseOutput(out.Stdout, repo)
		removeAll(paths)
		return nil, services.Wrap(services.ErrToolInvocation, "schematic", c.binary, "diff failed", err)
	}
	paths, err := ParseOutput(out.Stdout, repo)
	if err != nil {
		removeAll(paths)
		return nil, err
	}
	return paths, nil
}

// collectOne is the per-file transaction: clean, read, delete. The file is
// deleted even when cleaning or reading fails.
func (c *Collector) collectOne(ctx context.Context, path string) (content string, err error) {
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = services.Wrap(services.ErrIO, "schematic", "remove", path, rmErr)
		}
	}()
	if err := c.cleaner.Process(ctx, path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrIO, "schematic", "read", path, err)
	}
	return string(data), nil
}

func (c *Collector) lock(ctx context.Context, repo string) (func(), error) {
	if c.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "schematic", "lock", c.lockDir, err)
	}
	sum := sha256.Sum256([]byte(repo))
	lockPath := filepath.Join(c.lockDir, "edaplot-"+hex.EncodeToString(sum[:])[:16]+".lock")
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrIO, "schematic", "lock", lockPath, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrIO, "schematic", "lock", lockPath, errors.New("lock not acquired"))
	}
	logging.WithContext(ctx, c.logger).Debug("repository lock held", logging.String("lock", lockPath))
	return func() {
		if err := fileLock.Unlock(); err != nil {
			c.logger.Warn("failed to release repository lock", logging.Error(err))
		}
	}, nil
}

// ParseOutput extracts produced file paths from plotgitsch output. Blank
// lines and "internal diff" status lines are skipped; relative paths are
// resolved against repo. A line longer than maxOutputLine is a contract
// violation, but every other reported path is still returned so the caller
// can remove it.
func ParseOutput(stdout []byte, repo string) ([]string, error) {
	var (
		paths   []string
		overlen int
	)
	for raw := range bytes.Lines(stdout) {
		line := strings.TrimRight(string(raw), "\r\n")
		if len(line) > maxOutputLine {
			overlen++
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, internalDiffMarker) {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(repo, line)
		}
		paths = append(paths, line)
	}
	if overlen > 0 {
		return paths, services.Wrap(services.ErrToolContract, "schematic", "parse output",
			fmt.Sprintf("%d output line(s) exceed %d bytes", overlen, maxOutputLine), nil)
	}
	return paths, nil
}

func firstDuplicate(paths []string) (string, bool) {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		if _, ok := seen[base]; ok {
			return base, true
		}
		seen[base] = struct{}{}
	}
	return "", false
}

func removeAll(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}
