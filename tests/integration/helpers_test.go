package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"testing"
	"time"
)

// apiBase returns the base URL of the API under test.
func apiBase() string {
	if v := os.Getenv("API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// uniqueEmail generates a unique email address to avoid test collisions.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@test.example.com", prefix, time.Now().UnixNano(), rand.Intn(100000))
}

// skipIfNotRunning performs a quick health check against the API.
// If it is unreachable, the test is skipped (not failed).
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiBase() + "/health/live")
	if err != nil {
		t.Skipf("API not reachable (Docker not running?): %v", err)
	}
	resp.Body.Close()
}

// demoLogin logs in as the seeded demo account and returns an access token.
// Skips the test if the account does not exist; run scripts/seed first.
func demoLogin(t *testing.T) string {
	t.Helper()
	status, body := httpPost(t, apiBase()+"/api/v1/auth/login", "", map[string]any{
		"email":    "demo@taskflow.dev",
		"password": "TaskFlow1demo",
	})
	if status != http.StatusOK {
		t.Skipf("demo account not available (seed not run?): HTTP %d", status)
	}
	token, _ := dataMap(t, body)["accessToken"].(string)
	if token == "" {
		t.Fatalf("login response missing access token: %v", body)
	}
	return token
}

// dataMap extracts the "data" object from a response envelope.
func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return data
}

// errorCode extracts the "error.code" field from a response envelope.
func errorCode(body map[string]any) string {
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if len(raw) == 0 {
		return map[string]any{}
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode response body %q: %v", string(raw), err)
	}
	return body
}

func newRequest(t *testing.T, method, url, token string, payload any) *http.Request {
	t.Helper()
	var rd io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("create %s request for %s: %v", method, url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func httpGet(t *testing.T, url, token string) (int, map[string]any) {
	t.Helper()
	return do(t, newRequest(t, http.MethodGet, url, token, nil))
}

func httpPost(t *testing.T, url, token string, payload any) (int, map[string]any) {
	t.Helper()
	return do(t, newRequest(t, http.MethodPost, url, token, payload))
}

func httpPatch(t *testing.T, url, token string, payload any) (int, map[string]any) {
	t.Helper()
	return do(t, newRequest(t, http.MethodPatch, url, token, payload))
}

func httpDelete(t *testing.T, url, token string) (int, map[string]any) {
	t.Helper()
	return do(t, newRequest(t, http.MethodDelete, url, token, nil))
}
