package tools

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func netTestContext(t *testing.T, sb *Sandbox, readOnly bool) Context {
	t.Helper()
	return Context{
		Context:    context.Background(),
		SandboxDir: sb.Root(),
		ReadOnly:   readOnly,
		Timeout:    5 * time.Second,
		Sandbox:    sb,
	}
}

func TestHTTPRequest_ReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := httpRequestHandler(ctx, map[string]any{"url": srv.URL})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["status_code"] != http.StatusTeapot {
		t.Fatalf("expected 418, got %+v", data["status_code"])
	}
	if data["body"] != "hello" {
		t.Fatalf("expected body %q, got %v", "hello", data["body"])
	}
}

func TestHTTPRequest_SendsCustomHeaders(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := httpRequestHandler(ctx, map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Custom": "abc"},
	})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	if seen != "abc" {
		t.Fatalf("expected header to be forwarded, got %q", seen)
	}
}

func TestHTTPRequest_FailsOnUnreachableHost(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := httpRequestHandler(ctx, map[string]any{
		"url":        "http://127.0.0.1:1",
		"timeout_ms": 200,
	})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected request to an unreachable host to fail")
	}
}

func TestPortCheck_ReportsReachability(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := portCheckHandler(ctx, map[string]any{"host": "127.0.0.1", "port": port})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["reachable"] != true {
		t.Fatalf("expected reachable=true, got %+v", data)
	}
}

func TestPortCheck_ReportsUnreachable(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := portCheckHandler(ctx, map[string]any{"host": "127.0.0.1", "port": 1, "timeout_ms": 200})
	if err != nil || !res.Success {
		t.Fatalf("expected success with reachable=false, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["reachable"] != false {
		t.Fatalf("expected reachable=false, got %+v", data)
	}
}

func TestPing_DefaultsToPort80(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := pingHandler(ctx, map[string]any{"host": "127.0.0.1", "timeout_ms": 200})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
}

func TestDNSLookup_ResolvesLocalhost(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := dnsLookupHandler(ctx, map[string]any{"host": "localhost"})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	addrs, ok := data["addresses"].([]string)
	if !ok || len(addrs) == 0 {
		t.Fatalf("expected at least one address, got %+v", data)
	}
}

func TestDownloadFile_WritesToSandbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := downloadFileHandler(ctx, map[string]any{"url": srv.URL, "destination": "out.bin"})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	contents, readErr := os.ReadFile(filepath.Join(sb.Root(), "out.bin"))
	if readErr != nil {
		t.Fatalf("expected downloaded file to exist: %v", readErr)
	}
	if string(contents) != "file contents" {
		t.Fatalf("got %q", contents)
	}
}

func TestDownloadFile_DeniedUnderReadOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, true)

	res, err := downloadFileHandler(ctx, map[string]any{"url": srv.URL, "destination": "blocked.bin"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected download to be denied under read-only mode")
	}
}

func TestDownloadFile_RemovesPartialFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sb := newTestSandbox(t)
	ctx := netTestContext(t, sb, false)

	res, err := downloadFileHandler(ctx, map[string]any{"url": srv.URL, "destination": "partial.bin"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected download to fail on 500 response")
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "partial.bin")); !os.IsNotExist(statErr) {
		t.Fatal("expected partial file to be removed")
	}
}

func TestFlattenHeaders_TakesFirstValue(t *testing.T) {
	h := map[string][]string{"X-Multi": {"first", "second"}, "X-Empty": {}}
	out := flattenHeaders(h)
	if out["X-Multi"] != "first" {
		t.Fatalf("got %q", out["X-Multi"])
	}
	if _, ok := out["X-Empty"]; ok {
		t.Fatal("expected empty header value to be omitted")
	}
}
