package plugin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// APIHandler serves HTTP introspection endpoints over a Service's live
// instance set: GET lists or fetches instances, and DELETE on a single
// identifier unloads that instance.
type APIHandler struct {
	service *Service
}

// NewAPIHandler creates an APIHandler over service.
func NewAPIHandler(service *Service) *APIHandler {
	return &APIHandler{service: service}
}

// RegisterRoutes registers the plugin introspection routes on mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/plugins", h.handlePlugins)
	mux.HandleFunc("/api/plugins/", h.handlePluginByIdentifier)
}

func (h *APIHandler) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listPlugins(w)
}

func (h *APIHandler) handlePluginByIdentifier(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/plugins/")
	if raw == "" {
		http.Error(w, "plugin identifier required", http.StatusBadRequest)
		return
	}
	id, err := ParseIdentifier(raw)
	if err != nil {
		http.Error(w, "invalid plugin identifier: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getPlugin(w, id)
	case http.MethodDelete:
		h.unloadPlugin(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// pluginListEntry is the JSON representation of a live instance.
type pluginListEntry struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
	State      string `json:"state"`
}

func entryFor(inst *Instance) pluginListEntry {
	return pluginListEntry{
		Identifier: inst.Identifier().String(),
		Version:    inst.Manifest.Version,
		State:      inst.State().String(),
	}
}

func (h *APIHandler) listPlugins(w http.ResponseWriter) {
	instances := h.service.GetPlugins()
	result := make([]pluginListEntry, 0, len(instances))
	for _, inst := range instances {
		result = append(result, entryFor(inst))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) getPlugin(w http.ResponseWriter, id Identifier) {
	inst, ok := h.service.TryGetPlugin(id)
	if !ok {
		http.Error(w, "plugin not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entryFor(inst))
}

func (h *APIHandler) unloadPlugin(w http.ResponseWriter, r *http.Request, id Identifier) {
	if err := h.service.Unload(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrHasDependents):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
