// Package handlers implements the HTTP endpoints for job submission and
// tracking.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/MacromNex/rfdiffusion2-mcp/internal/errors"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

// JobsHandler wires the job manager and procedure catalog to HTTP.
type JobsHandler struct {
	Manager    *jobs.Manager
	Catalog    *procedure.Catalog
	Checker    *procedure.Checker
	OutputRoot string
	// LogTail is the default line count for log queries without ?tail=.
	LogTail int
}

// submitRequest accepts either a catalog procedure or a raw executable.
type submitRequest struct {
	Procedure  string         `json:"procedure,omitempty"`
	Executable string         `json:"executable,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Name       string         `json:"name,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Submit handles POST /v1/jobs.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, http.StatusBadRequest,
			apperrors.CodeValidation, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	spec, err := h.buildSpec(r, &req)
	if err != nil {
		apperrors.RespondWithError(w, r, http.StatusBadRequest,
			apperrors.CodeValidation, err.Error())
		return
	}

	id, err := h.Manager.Submit(spec)
	if err != nil {
		apperrors.RespondWithError(w, r, http.StatusBadRequest,
			apperrors.CodeValidation, err.Error())
		return
	}

	status := string(jobs.StatusPending)
	if snap, err := h.Manager.Status(id); err == nil {
		status = string(snap.Status)
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id, Status: status})
}

func (h *JobsHandler) buildSpec(r *http.Request, req *submitRequest) (jobs.SubmitSpec, error) {
	switch {
	case req.Procedure != "" && req.Executable != "":
		return jobs.SubmitSpec{}, fmt.Errorf("procedure and executable are mutually exclusive")

	case req.Procedure != "":
		p, ok := h.Catalog.Get(req.Procedure)
		if !ok {
			return jobs.SubmitSpec{}, fmt.Errorf("unknown procedure %q (known: %s)",
				req.Procedure, strings.Join(h.Catalog.Names(), ", "))
		}
		if h.Checker != nil {
			if err := h.Checker.Verify(r.Context(), p); err != nil {
				return jobs.SubmitSpec{}, err
			}
		}
		opts, err := p.Resolve(req.Args)
		if err != nil {
			return jobs.SubmitSpec{}, err
		}

		outputDir := req.OutputDir
		if outputDir == "" {
			if v, ok := opts["output"]; ok {
				outputDir = v
			} else {
				outputDir = filepath.Join(h.OutputRoot,
					fmt.Sprintf("%s_%d", p.Name, time.Now().Unix()))
			}
		}
		opts["output"] = outputDir

		interp, script := p.Executable(h.Catalog.ScriptsDir)
		name := req.Name
		if name == "" {
			name = p.Name
		}
		return jobs.SubmitSpec{
			Executable: interp,
			Script:     script,
			Args:       opts,
			Name:       name,
			OutputDir:  outputDir,
		}, nil

	case req.Executable != "":
		opts, err := flattenArgs(req.Args)
		if err != nil {
			return jobs.SubmitSpec{}, err
		}
		return jobs.SubmitSpec{
			Executable: req.Executable,
			Args:       opts,
			Name:       req.Name,
			OutputDir:  req.OutputDir,
		}, nil

	default:
		return jobs.SubmitSpec{}, fmt.Errorf("either procedure or executable is required")
	}
}

// flattenArgs converts a raw submission's argument map to strings,
// rejecting nested values.
func flattenArgs(args map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'g', -1, 64)
		case nil:
			continue
		default:
			return nil, fmt.Errorf("argument %q: nested values are not supported", k)
		}
	}
	return out, nil
}

// List handles GET /v1/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter *jobs.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := jobs.ParseStatus(raw)
		if !ok {
			apperrors.RespondWithError(w, r, http.StatusBadRequest,
				apperrors.CodeValidation, fmt.Sprintf("unknown status %q", raw))
			return
		}
		filter = &st
	}

	snaps := h.Manager.List(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  snaps,
		"count": len(snaps),
	})
}

// Status handles GET /v1/jobs/{id}.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Status(chi.URLParam(r, "id"))
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Result handles GET /v1/jobs/{id}/result.
func (h *JobsHandler) Result(w http.ResponseWriter, r *http.Request) {
	env, err := h.Manager.Result(chi.URLParam(r, "id"))
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// Log handles GET /v1/jobs/{id}/log.
func (h *JobsHandler) Log(w http.ResponseWriter, r *http.Request) {
	tail := h.LogTail
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apperrors.RespondWithError(w, r, http.StatusBadRequest,
				apperrors.CodeValidation, "tail must be a non-negative integer")
			return
		}
		tail = n
	}

	view, err := h.Manager.Log(chi.URLParam(r, "id"), tail)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Cancel handles DELETE /v1/jobs/{id}.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *JobsHandler) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		apperrors.RespondWithError(w, r, http.StatusNotFound, apperrors.CodeNotFound, err.Error())
		return
	}
	apperrors.RespondWithError(w, r, http.StatusInternalServerError, apperrors.CodeInternal, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
