package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) install(t *testing.T) {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: ts.server.URL, httpClient: ts.server.Client()}, nil
	}
	t.Cleanup(func() { newAPIClient = orig })
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestProfileCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /user/ana/profile": `{"username":"ana","data_available":true}`,
	})
	ts.install(t)

	if err := runCommand(t, "profile", "ana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Path != "/user/ana/profile" {
		t.Errorf("requests = %+v", ts.requests)
	}
}

func TestStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /user/ana/stats": `{"username":"ana","total_interactions":5,"total_chat_turns":3,"total_analyses":2}`,
	})
	ts.install(t)

	if err := runCommand(t, "stats", "ana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /user/ana/update": `{"status":"accepted"}`,
	})
	ts.install(t)

	if err := runCommand(t, "update", "ana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Method != "POST" {
		t.Errorf("requests = %+v", ts.requests)
	}
}

func TestReportCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /user/ana/report": `{"username":"ana","report":"Profile report for ana"}`,
	})
	ts.install(t)

	if err := runCommand(t, "report", "ana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommandServerError(t *testing.T) {
	ts := newTestServer(t, nil) // every route 404s
	ts.install(t)

	if err := runCommand(t, "profile", "ana"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestCommandMissingUsername(t *testing.T) {
	if err := runCommand(t, "profile"); err == nil {
		t.Fatal("expected arg validation error")
	}
}

func TestColorizeRespectsNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with noColor=true = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "ok"); got == "ok" {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}
