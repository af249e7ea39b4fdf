package handlers

import (
	"net/http"

	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

// MetaHandler serves the catalog, dependency, health, and version endpoints.
type MetaHandler struct {
	Catalog *procedure.Catalog
	Checker *procedure.Checker

	Version   string
	Commit    string
	BuildDate string
}

// Procedures handles GET /v1/procedures.
func (h *MetaHandler) Procedures(w http.ResponseWriter, r *http.Request) {
	procs := h.Catalog.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"procedures": procs,
		"count":      len(procs),
	})
}

// Ligands handles GET /v1/ligands: the curated table of ligand codes the
// small-molecule binder procedure accepts.
func (h *MetaHandler) Ligands(w http.ResponseWriter, r *http.Request) {
	ligands := procedure.CommonLigands()
	writeJSON(w, http.StatusOK, map[string]any{
		"ligands": ligands,
		"count":   len(ligands),
	})
}

// Dependencies handles GET /v1/dependencies.
func (h *MetaHandler) Dependencies(w http.ResponseWriter, r *http.Request) {
	statuses := h.Checker.CheckAll(r.Context(), h.Catalog)
	ok := true
	for _, st := range statuses {
		if !st.Available {
			ok = false
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dependencies":  statuses,
		"all_available": ok,
	})
}

// Health handles GET /health.
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionInfo handles GET /version.
func (h *MetaHandler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    h.Version,
		"commit":     h.Commit,
		"build_date": h.BuildDate,
	})
}
