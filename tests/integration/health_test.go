package integration

import (
	"net/http"
	"testing"
)

func TestHealthLive(t *testing.T) {
	skipIfNotRunning(t)

	status, body := httpGet(t, apiBase()+"/health/live", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["status"] != "up" {
		t.Errorf("expected status up, got %v", body["status"])
	}
}

func TestHealthReady(t *testing.T) {
	skipIfNotRunning(t)

	status, body := httpGet(t, apiBase()+"/health/ready", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("readiness response has no checks: %v", body)
	}
	if len(checks) == 0 {
		t.Error("expected at least one registered dependency check")
	}
}
