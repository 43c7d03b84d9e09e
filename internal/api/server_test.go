package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edaplot/internal/layers"
	"edaplot/internal/pipeline"
	"edaplot/internal/services"
	"edaplot/internal/testsupport"
)

type stubPipeline struct {
	boardErr  error
	boardBody string
	repo      string
	revs      [2]string
	schematic []byte
	schemErr  error
	runID     string
}

func (s *stubPipeline) Board(ctx context.Context, boardPath, _ string) ([]byte, error) {
	data, err := os.ReadFile(boardPath)
	if err != nil {
		return nil, err
	}
	s.boardBody = string(data)
	s.runID, _ = services.RunIDFromContext(ctx)
	if s.boardErr != nil {
		return nil, s.boardErr
	}
	return []byte(`{"x1":0,"y1":0,"width":0,"height":0,"layers":{}}` + "\n"), nil
}

func (s *stubPipeline) Schematic(_ context.Context, repo, a, b string) ([]byte, error) {
	s.repo = repo
	s.revs = [2]string{a, b}
	return s.schematic, s.schemErr
}

func (s *stubPipeline) CleanerAvailable() bool { return true }

func newTestServer(t *testing.T, p Pipeline, opts ...testsupport.ConfigOption) (*httptest.Server, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	srv, err := New(cfg, p, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, cfg.Paths.ScratchDir
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload
}

func TestHealthAndLayers(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || !health.PostProcess {
		t.Fatalf("unexpected health %+v", health)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}

	resp, err = http.Get(ts.URL + "/v1/layers")
	if err != nil {
		t.Fatalf("GET /v1/layers: %v", err)
	}
	defer resp.Body.Close()
	var list LayersResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(list.Layers) != len(layers.Catalog()) || list.Layers[0].Key != "F_Cu" {
		t.Fatalf("unexpected layers %+v", list.Layers)
	}
}

func TestBoardUpload(t *testing.T) {
	stub := &stubPipeline{}
	ts, scratch := newTestServer(t, stub)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/board?name=demo", strings.NewReader("(kicad_pcb)"))
	req.Header.Set(requestIDHeader, "5f0c6f3e-8c1e-4c0e-9f5b-0a4b8c1d2e3f")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/board: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if stub.boardBody != "(kicad_pcb)" {
		t.Fatalf("expected upload to reach pipeline, got %q", stub.boardBody)
	}
	if stub.runID != "5f0c6f3e-8c1e-4c0e-9f5b-0a4b8c1d2e3f" {
		t.Fatalf("expected client request id to propagate, got %q", stub.runID)
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Fatalf("expected upload scratch to be released, found %d entries", len(entries))
	}
}

func TestBoardUploadTooLarge(t *testing.T) {
	stub := &stubPipeline{}
	cfg := testsupport.NewConfig(t)
	cfg.Server.MaxBoardMiB = 1
	srv, err := New(cfg, stub, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/board", "application/octet-stream", bytes.NewReader(make([]byte, 2<<20)))
	if err != nil {
		t.Fatalf("POST /v1/board: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestBoardEmptyBody(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{})
	resp, err := http.Post(ts.URL+"/v1/board", "application/octet-stream", http.NoBody)
	if err != nil {
		t.Fatalf("POST /v1/board: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBoardFailureStatus(t *testing.T) {
	stub := &stubPipeline{boardErr: services.Wrap(services.ErrPostProcess, "postprocess", "svgcleaner", "x.svg",
		&services.ToolError{Tool: "svgcleaner", ExitCode: 7})}
	ts, _ := newTestServer(t, stub)

	resp, err := http.Post(ts.URL+"/v1/board", "application/octet-stream", strings.NewReader("(kicad_pcb)"))
	if err != nil {
		t.Fatalf("POST /v1/board: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	payload := decodeError(t, resp)
	if !strings.Contains(payload.Error, "svgcleaner exited with status 7") || payload.RequestID == "" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestSchematicDisabledWithoutRepoRoot(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{})
	resp, err := http.Post(ts.URL+"/v1/schematic", "application/json", strings.NewReader(`{"repo":"x","a":"1","b":"2"}`))
	if err != nil {
		t.Fatalf("POST /v1/schematic: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSchematicConfinedToRepoRoot(t *testing.T) {
	root := t.TempDir()
	stub := &stubPipeline{schematic: []byte(`{"schematics":{}}` + "\n")}
	ts, _ := newTestServer(t, stub, testsupport.WithRepoRoot(root))

	resp, err := http.Post(ts.URL+"/v1/schematic", "application/json", strings.NewReader(`{"repo":"../../etc","a":"HEAD~1","b":"HEAD"}`))
	if err != nil {
		t.Fatalf("POST /v1/schematic: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"schematics":{}}`+"\n" {
		t.Fatalf("unexpected body %s", body)
	}
	if stub.repo != filepath.Join(root, "etc") {
		t.Fatalf("expected repo confined to root, got %s", stub.repo)
	}
	if stub.revs != [2]string{"HEAD~1", "HEAD"} {
		t.Fatalf("unexpected revisions %v", stub.revs)
	}
}

func TestSchematicRejectsBadBody(t *testing.T) {
	ts, _ := newTestServer(t, &stubPipeline{}, testsupport.WithRepoRoot(t.TempDir()))
	for _, body := range []string{`{`, `{"repo":"r","a":"1","b":"2","extra":true}`} {
		resp, err := http.Post(ts.URL+"/v1/schematic", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST /v1/schematic: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "", "", "", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrLoad, "", "", "", nil), http.StatusUnprocessableEntity},
		{services.Wrap(services.ErrToolContract, "", "", "", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrToolInvocation, "", "", "", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrConfiguration, "", "", "", nil), http.StatusServiceUnavailable},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestResolveRepo(t *testing.T) {
	root := "/srv/repos"
	cases := map[string]string{
		"boards/a":          "/srv/repos/boards/a",
		"/srv/repos/b":      "/srv/repos/b",
		"../../../tmp/evil": "/srv/repos/tmp/evil",
	}
	for in, want := range cases {
		got, err := resolveRepo(root, in)
		if err != nil || got != want {
			t.Fatalf("resolveRepo(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "/etc/passwd"} {
		if _, err := resolveRepo(root, in); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("resolveRepo(%q): expected validation error, got %v", in, err)
		}
	}
}

func TestBoardEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine())
	runner, err := pipeline.New(cfg)
	if err != nil {
		t.Fatalf("pipeline.New returned error: %v", err)
	}
	srv, err := New(cfg, runner, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/board?name=demo.kicad_pcb", "application/octet-stream", strings.NewReader(testsupport.ScenarioBoard))
	if err != nil {
		t.Fatalf("POST /v1/board: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	want := `{"x1":10,"y1":20,"width":100,"height":50,"layers":{"Edge_Cuts":"<svg id=\"Edge.Cuts\"/>","F_Cu":"<svg id=\"F.Cu\"/>"}}` + "\n"
	if resp.StatusCode != http.StatusOK || string(body) != want {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, err := New(cfg, &stubPipeline{}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
