package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/steveyegge/clewcrew/internal/coordinator"
	"github.com/steveyegge/clewcrew/internal/report"
	"github.com/steveyegge/clewcrew/internal/types"
)

// RunRequest selects a project root and, optionally, a subset of experts.
type RunRequest struct {
	Root    string   `json:"root"`
	Experts []string `json:"experts,omitempty"`
	Format  string   `json:"format,omitempty"`
}

// ImpactRequest carries a proposed change set.
type ImpactRequest struct {
	Changes []types.Change `json:"changes"`
	Experts []string       `json:"experts,omitempty"`
}

// ExpertInfo describes one coordinated expert.
type ExpertInfo struct {
	Name   string  `json:"name"`
	Metric string  `json:"metric"`
	Weight float64 `json:"weight"`
}

// maxBodyBytes caps request bodies; impact changes carry diff content.
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON request body of at most maxBodyBytes and writes
// the error response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		errorJSON(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	errorJSON(w, r, http.StatusBadRequest, "invalid json")
	return false
}

func errorJSON(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleExperts(w http.ResponseWriter, r *http.Request) {
	list := s.coord.Experts()
	out := make([]ExpertInfo, 0, len(list))
	for _, e := range list {
		out = append(out, ExpertInfo{Name: e.Name(), Metric: e.MetricName(), Weight: e.MetricWeight()})
	}
	render.JSON(w, r, out)
}

// prepare decodes a run request and resolves its root and expert selection.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, string, RunRequest, bool) {
	var req RunRequest
	if !decodeBody(w, r, &req) {
		return nil, "", req, false
	}
	root, err := s.resolveRoot(req.Root)
	if err != nil {
		errorJSON(w, r, http.StatusBadRequest, err.Error())
		return nil, "", req, false
	}
	coord, err := s.selectExperts(req.Experts)
	if err != nil {
		errorJSON(w, r, http.StatusBadRequest, err.Error())
		return nil, "", req, false
	}
	return coord, root, req, true
}

func (s *Server) selectExperts(names []string) (*coordinator.Coordinator, error) {
	if len(names) == 0 {
		return s.coord, nil
	}
	return s.coord.Select(names...)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	coord, root, _, ok := s.prepare(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, coord.Detect(r.Context(), root))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	coord, root, req, ok := s.prepare(w, r)
	if !ok {
		return
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		errorJSON(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rep := coord.Report(r.Context(), root)
	s.metrics.observeReport(rep)

	switch format {
	case report.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(rep)))
	case report.FormatSARIF:
		render.JSON(w, r, report.BuildSARIF(rep))
	default:
		render.JSON(w, r, rep)
	}
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	var req ImpactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for i, c := range req.Changes {
		if c.Type == "" && c.Content == "" {
			errorJSON(w, r, http.StatusBadRequest, fmt.Sprintf("change %d: type or content is required", i))
			return
		}
	}
	coord, err := s.selectExperts(req.Experts)
	if err != nil {
		errorJSON(w, r, http.StatusBadRequest, err.Error())
		return
	}
	render.JSON(w, r, coord.AssessImpact(req.Changes))
}
