package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"edaplot/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrPostProcess, "postprocess", "svgcleaner", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrPostProcess) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"postprocess", "svgcleaner", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected io marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestExitCodeMapping(t *testing.T) {
	tool := &services.ToolError{Tool: "plotgitsch", ExitCode: 3}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("x"), want: 1},
		{name: "tool", err: tool, want: 3},
		{name: "wrapped tool", err: services.Wrap(services.ErrToolInvocation, "schematic", "run", "failed", tool), want: 3},
		{name: "double wrapped", err: fmt.Errorf("outer: %w", services.Wrap(services.ErrPostProcess, "", "", "", tool)), want: 3},
		{name: "signal killed", err: &services.ToolError{Tool: "svgcleaner", ExitCode: -1}, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.ExitCode(tc.err); got != tc.want {
				t.Fatalf("expected exit code %d, got %d", tc.want, got)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if services.IsFatal(nil) {
		t.Fatal("nil error must not be fatal")
	}
	if services.IsFatal(services.Wrap(services.ErrRender, "render", "F_Cu", "no output", nil)) {
		t.Fatal("render failures are absorbed per layer")
	}
	if !services.IsFatal(services.Wrap(services.ErrLoad, "render", "load", "bad board", nil)) {
		t.Fatal("load failures must be fatal")
	}
}

func TestToolErrorMessage(t *testing.T) {
	err := &services.ToolError{Tool: "svgcleaner", ExitCode: 2, Stderr: "bad svg"}
	if got := err.Error(); got != "svgcleaner exited with status 2: bad svg" {
		t.Fatalf("unexpected message %q", got)
	}
}
