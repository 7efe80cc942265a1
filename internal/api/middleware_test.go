package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggingMiddleware_StatusAndCampaignID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/cmp_abc123/events", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, "status=404") {
		t.Fatalf("log missing status: %s", line)
	}
	if !strings.Contains(line, "campaign_id=cmp_abc123") {
		t.Fatalf("log missing campaign id: %s", line)
	}

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	line = buf.String()
	if !strings.Contains(line, "status=404") {
		t.Fatalf("log missing status: %s", line)
	}
	if strings.Contains(line, "campaign_id") {
		t.Fatalf("non-campaign route should not carry campaign_id: %s", line)
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Fatalf("handler without WriteHeader should log 200: %s", buf.String())
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	h := CORSMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/campaigns/cmp_x", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rr.Code)
	}
	methods := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(methods, "DELETE") {
		t.Fatalf("allow-methods should include DELETE, got %q", methods)
	}
}

func TestCampaignIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/v1/campaigns/cmp_abc123":        "cmp_abc123",
		"/v1/campaigns/cmp_abc123/events": "cmp_abc123",
		"/v1/campaigns":                   "",
		"/healthz":                        "",
	}
	for path, want := range cases {
		if got := campaignIDFromPath(path); got != want {
			t.Fatalf("campaignIDFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
