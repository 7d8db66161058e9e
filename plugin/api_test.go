package plugin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func setupServiceWithLivePlugins(t *testing.T) *Service {
	t.Helper()
	svc := NewService(Semver{}, constructorFactory(), nil, nil)
	registerUnit(t, svc, "core", "alpha", "1.0.0", nil)
	registerUnit(t, svc, "core", "beta", "2.0.0", nil)
	if err := svc.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return svc
}

func TestAPIHandlerListPlugins(t *testing.T) {
	t.Parallel()
	svc := setupServiceWithLivePlugins(t)
	h := NewAPIHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/plugins", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var result []pluginListEntry
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 plugins, got %d", len(result))
	}
}

func TestAPIHandlerGetPlugin(t *testing.T) {
	t.Parallel()
	svc := setupServiceWithLivePlugins(t)
	h := NewAPIHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/plugins/core:alpha", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var entry pluginListEntry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Identifier != "core:alpha" {
		t.Errorf("Identifier = %q, want %q", entry.Identifier, "core:alpha")
	}
}

func TestAPIHandlerGetPluginNotFound(t *testing.T) {
	t.Parallel()
	svc := setupServiceWithLivePlugins(t)
	h := NewAPIHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/plugins/core:missing", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPIHandlerInvalidIdentifier(t *testing.T) {
	t.Parallel()
	svc := setupServiceWithLivePlugins(t)
	h := NewAPIHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/plugins/not-a-valid-identifier", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIHandlerDeletePlugin(t *testing.T) {
	t.Parallel()
	svc := setupServiceWithLivePlugins(t)
	h := NewAPIHandler(svc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodDelete, "/api/plugins/core:alpha", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if _, ok := svc.TryGetPlugin(NewIdentifier("core", "alpha")); ok {
		t.Error("expected plugin to be unloaded")
	}
}
