package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"edaplot/internal/fileutil"
	"edaplot/internal/layers"
	"edaplot/internal/logging"
	"edaplot/internal/output"
	"edaplot/internal/services"
	"edaplot/internal/staging"
)

const defaultBoardName = "board"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", PostProcess: s.pipeline.CleanerAvailable()})
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, LayersResponse{Layers: layers.Catalog()})
}

// handleBoard stores the uploaded board in a scratch directory and runs the
// board pipeline on it. The optional name query parameter sets the board
// name used by the engine.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID, _ := services.RunIDFromContext(ctx)

	upload, err := staging.Acquire(s.cfg.Paths.ScratchDir, "upload-"+runID)
	if err != nil {
		s.writeFailure(w, r, services.Wrap(services.ErrIO, "api", "acquire scratch", "", err))
		return
	}
	defer upload.Release()

	boardPath := filepath.Join(upload.Path, boardName(r.URL.Query().Get("name"))+".kicad_pcb")
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBoardBytes())
	if err := fileutil.WriteFileAtomic(boardPath, body, 0o644); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("board exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeFailure(w, r, services.Wrap(services.ErrIO, "api", "store upload", "", err))
		return
	}
	if info, err := os.Stat(boardPath); err != nil || info.Size() == 0 {
		s.writeError(w, r, http.StatusBadRequest, "request body must contain a board file")
		return
	}

	data, err := s.pipeline.Board(ctx, boardPath, "")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeDocument(w, data)
}

func (s *Server) handleSchematic(w http.ResponseWriter, r *http.Request) {
	root := strings.TrimSpace(s.cfg.Server.RepoRoot)
	if root == "" {
		s.writeError(w, r, http.StatusForbidden, "schematic endpoint disabled: server.repo_root is not set")
		return
	}

	var req SchematicRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	repo, err := resolveRepo(root, req.Repo)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	data, err := s.pipeline.Schematic(r.Context(), repo, req.A, req.B)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeDocument(w, data)
}

// resolveRepo confines the requested repository to root.
func resolveRepo(root, repo string) (string, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return "", services.Wrap(services.ErrValidation, "api", "resolve repo", "repo is required", nil)
	}
	if filepath.IsAbs(repo) {
		rel, err := filepath.Rel(root, repo)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", services.Wrap(services.ErrValidation, "api", "resolve repo", "repo outside server.repo_root", nil)
		}
		repo = rel
	}
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+repo)), nil
}

func boardName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(filepath.Base(name)), ".kicad_pcb")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return defaultBoardName
	}
	return name
}

// statusFor maps an error marker to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPostProcess),
		errors.Is(err, services.ErrToolInvocation),
		errors.Is(err, services.ErrToolContract):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDocument(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := output.WriteEncoded(w, data); err != nil {
		s.logger.Error("failed to write document", logging.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "request_failed",
			logging.Error(err),
			logging.Int("status", status),
			logging.String(logging.FieldErrorHint, "inspect the tool stderr in the error message"),
		)
	}
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	runID, _ := services.RunIDFromContext(r.Context())
	s.writeJSON(w, status, ErrorResponse{Error: message, RequestID: runID})
}
