package schematic_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"edaplot/internal/deps"
	"edaplot/internal/postprocess"
	"edaplot/internal/schematic"
	"edaplot/internal/services"
)

func writeTool(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func assertGone(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be removed, stat err=%v", p, err)
		}
	}
}

func TestCollectScenarioB(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", `[ "$1 $2 $3" = "-k -i echo" ] || exit 64
printf '<svg>foo %s %s</svg>' "$4" "$5" > foo.svg
printf '<svg>baz</svg>' > baz.svg
echo foo.svg
echo "internal diff bar"
echo baz.svg
`)
	collector, err := schematic.New(tool, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := collector.Collect(context.Background(), repo, "HEAD~1", "HEAD")
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	want := map[string]string{
		"foo.svg": "<svg>foo HEAD~1 HEAD</svg>",
		"baz.svg": "<svg>baz</svg>",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected artifacts %v", got)
	}
	assertGone(t, filepath.Join(repo, "foo.svg"), filepath.Join(repo, "baz.svg"))
}

func TestCollectScenarioC(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", "touch partial.svg\necho partial.svg\necho 'bad revision' >&2\nexit 3\n")
	collector, _ := schematic.New(tool, nil)

	got, err := collector.Collect(context.Background(), repo, "a", "b")
	if err == nil {
		t.Fatalf("expected error, got %v", got)
	}
	if !errors.Is(err, services.ErrToolInvocation) {
		t.Fatalf("expected tool invocation error, got %v", err)
	}
	if code := services.ExitCode(err); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(err.Error(), "bad revision") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	assertGone(t, filepath.Join(repo, "partial.svg"))
}

func TestCollectAppliesCleanerAndRemovesOnFailure(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", "for f in a b c; do echo x > $f.svg; echo $f.svg; done\n")
	cleanerBin := writeTool(t, "svgcleaner", "case \"$1\" in *b.svg) exit 7 ;; esac\nprintf clean > \"$2\"\n")
	cleaner := postprocess.New(deps.Capability{Name: "svgcleaner", Path: cleanerBin, Available: true})
	collector, _ := schematic.New(tool, cleaner)

	_, err := collector.Collect(context.Background(), repo, "a", "b")
	if !errors.Is(err, services.ErrPostProcess) {
		t.Fatalf("expected post-process error, got %v", err)
	}
	if services.ExitCode(err) != 7 {
		t.Fatalf("expected exit code 7, got %d", services.ExitCode(err))
	}
	assertGone(t, filepath.Join(repo, "a.svg"), filepath.Join(repo, "b.svg"), filepath.Join(repo, "c.svg"))
}

func TestCollectCleanedContent(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", "echo '<svg>   </svg>' > sheet.svg\necho sheet.svg\n")
	cleanerBin := writeTool(t, "svgcleaner", "printf '<svg/>' > \"$2\"\n")
	withTool := postprocess.New(deps.Capability{Name: "svgcleaner", Path: cleanerBin, Available: true})
	withoutTool := postprocess.New(deps.Unavailable("svgcleaner"))

	cleaned, err := mustCollector(t, tool, withTool).Collect(context.Background(), repo, "a", "b")
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	raw, err := mustCollector(t, tool, withoutTool).Collect(context.Background(), repo, "a", "b")
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if cleaned["sheet.svg"] != "<svg/>" {
		t.Fatalf("expected cleaned content, got %q", cleaned["sheet.svg"])
	}
	if !reflect.DeepEqual(keys(cleaned), keys(raw)) {
		t.Fatalf("expected identical key sets, got %v and %v", keys(cleaned), keys(raw))
	}
}

func TestCollectDuplicateIsContractViolation(t *testing.T) {
	repo := t.TempDir()
	if err := os.Mkdir(filepath.Join(repo, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	tool := writeTool(t, "plotgitsch", "echo x > a.svg\necho y > sub/a.svg\necho a.svg\necho sub/a.svg\n")
	collector, _ := schematic.New(tool, nil)
	_, err := collector.Collect(context.Background(), repo, "a", "b")
	if !errors.Is(err, services.ErrToolContract) {
		t.Fatalf("expected contract error, got %v", err)
	}
	assertGone(t, filepath.Join(repo, "a.svg"), filepath.Join(repo, "sub", "a.svg"))
}

func TestCollectMissingFileIsIOError(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", "echo ghost.svg\n")
	collector, _ := schematic.New(tool, nil)
	_, err := collector.Collect(context.Background(), repo, "a", "b")
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestCollectValidatesInput(t *testing.T) {
	collector, _ := schematic.New("plotgitsch", nil)
	if _, err := collector.Collect(context.Background(), t.TempDir(), "", "b"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := collector.Collect(context.Background(), filepath.Join(t.TempDir(), "nope"), "a", "b"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCollectSerializesOnRepositoryLock(t *testing.T) {
	repo := t.TempDir()
	lockDir := t.TempDir()
	tool := writeTool(t, "plotgitsch", "exit 0\n")
	collector, _ := schematic.New(tool, nil, schematic.WithLockDir(lockDir))

	abs, _ := filepath.Abs(repo)
	sum := sha256.Sum256([]byte(abs))
	held := flock.New(filepath.Join(lockDir, "edaplot-"+hex.EncodeToString(sum[:])[:16]+".lock"))
	if ok, err := held.TryLock(); !ok || err != nil {
		t.Fatalf("hold lock: %v %v", ok, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := collector.Collect(ctx, repo, "a", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected to wait for the held lock, got %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	got, err := collector.Collect(context.Background(), repo, "a", "b")
	if err != nil {
		t.Fatalf("Collect returned error after unlock: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no artifacts, got %v", got)
	}
}

func TestParseOutput(t *testing.T) {
	out := []byte("foo.svg\n\ninternal diff bar\n/abs/baz.svg\r\n  \n")
	got, err := schematic.ParseOutput(out, "/repo")
	if err != nil {
		t.Fatalf("ParseOutput returned error: %v", err)
	}
	want := []string{"/repo/foo.svg", "/abs/baz.svg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected paths %v", got)
	}
}

func TestParseOutputRejectsOverlongLine(t *testing.T) {
	out := []byte("a.svg\n" + strings.Repeat("x", 2*1024*1024) + "\nb.svg\n")
	got, err := schematic.ParseOutput(out, "/repo")
	if !errors.Is(err, services.ErrToolContract) {
		t.Fatalf("expected tool contract error, got %v", err)
	}
	want := []string{"/repo/a.svg", "/repo/b.svg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected the readable paths %v, got %v", want, got)
	}
}

func TestCollectOverlongOutputRemovesReportedFiles(t *testing.T) {
	repo := t.TempDir()
	tool := writeTool(t, "plotgitsch", `echo x > a.svg
echo y > b.svg
echo a.svg
head -c 2097152 /dev/zero | tr '\0' x
echo
echo b.svg
`)
	_, err := mustCollector(t, tool, nil).Collect(context.Background(), repo, "a", "b")
	if !errors.Is(err, services.ErrToolContract) {
		t.Fatalf("expected tool contract error, got %v", err)
	}
	assertGone(t, filepath.Join(repo, "a.svg"), filepath.Join(repo, "b.svg"))
}

func mustCollector(t *testing.T, tool string, cleaner *postprocess.Cleaner) *schematic.Collector {
	t.Helper()
	c, err := schematic.New(tool, cleaner)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
