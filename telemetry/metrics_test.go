package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AerafalDev/Qosmos/plugin"
)

func TestCollectorRecordsResolutionOutcome(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.ResolutionOutcome("ok", 3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "plugin_resolution_outcomes_total") {
		t.Error("expected resolution outcome metric in exposition output")
	}
}

func TestCollectorRecordsLifecycleTransition(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.LifecycleTransition(plugin.NewIdentifier("core", "a"), "setup", "ok")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "plugin_lifecycle_transitions_total") {
		t.Error("expected lifecycle transition metric in exposition output")
	}
}

func TestCollectorLiveInstanceGauge(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.LiveInstanceCount(5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "plugin_live_instances 5") {
		t.Errorf("expected gauge value 5 in output, got %q", w.Body.String())
	}
}
