package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/tracecap/internal/capture"
	"github.com/loykin/tracecap/internal/sink"
)

func setupRouter(t *testing.T, base string) (http.Handler, *capture.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	ctl := capture.NewController(capture.Config{
		LogPath:       filepath.Join(dir, "capture.ndjson"),
		PortFile:      filepath.Join(dir, "port"),
		FlushInterval: 100 * time.Millisecond,
	})
	r := NewRouter(ctl, base)
	return r.Handler(), ctl
}

func doReq(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogAcceptsSubmission(t *testing.T) {
	h, ctl := setupRouter(t, "")
	rec := doReq(t, h, http.MethodPost, "/log", []byte(`{"label":"click","data":{"x":3}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp["success"] {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	recs, err := ctl.ReadLogs(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 || recs[0].Label != "click" || string(recs[0].Data) != `{"x":3}` {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestLogDefaultsLabelAndData(t *testing.T) {
	h, ctl := setupRouter(t, "")
	body := []byte(`{"foo":"bar"}`)
	rec := doReq(t, h, http.MethodPost, "/log", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	recs, _ := ctl.ReadLogs(0)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Label != "unknown" {
		t.Fatalf("label should default to unknown, got %q", recs[0].Label)
	}
	if string(recs[0].Data) != string(body) {
		t.Fatalf("data should default to whole payload, got %q", string(recs[0].Data))
	}
}

func TestLogRejectsInvalidJSON(t *testing.T) {
	h, ctl := setupRouter(t, "")
	rec := doReq(t, h, http.MethodPost, "/log", []byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid JSON") {
		t.Fatalf("unexpected error body %q", rec.Body.String())
	}
	// Nothing may reach the log for a rejected submission.
	recs, _ := ctl.ReadLogs(0)
	if len(recs) != 0 {
		t.Fatalf("rejected submission was appended: %+v", recs)
	}
}

func TestHealthPlainText(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("expected OK, got %q", rec.Body.String())
	}
}

func TestCORSHeadersAndPreflight(t *testing.T) {
	h, _ := setupRouter(t, "")

	rec := doReq(t, h, http.MethodPost, "/log", []byte(`{}`))
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin %q", got)
	}

	rec = doReq(t, h, http.MethodOptions, "/log", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, GET, OPTIONS" {
		t.Fatalf("allow-methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("allow-headers %q", got)
	}
}

func TestLogsEndpointTail(t *testing.T) {
	h, _ := setupRouter(t, "")
	for i := 0; i < 4; i++ {
		doReq(t, h, http.MethodPost, "/log", []byte(`{"label":"l`+string(rune('0'+i))+`"}`))
	}
	rec := doReq(t, h, http.MethodGet, "/api/logs?tail=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var recs []sink.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 || recs[0].Label != "l2" || recs[1].Label != "l3" {
		t.Fatalf("unexpected tail: %+v", recs)
	}
}

func TestLogsEndpointRejectsBadTail(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/api/logs?tail=banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClearEndpoint(t *testing.T) {
	h, ctl := setupRouter(t, "")
	doReq(t, h, http.MethodPost, "/log", []byte(`{"label":"x"}`))
	rec := doReq(t, h, http.MethodPost, "/api/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	recs, _ := ctl.ReadLogs(0)
	if len(recs) != 0 {
		t.Fatalf("log not cleared: %+v", recs)
	}
}

func TestStatusEndpointStopped(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st capture.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Active {
		t.Fatalf("controller not started, status should be inactive: %+v", st)
	}
}

func TestBasePathPrefix(t *testing.T) {
	h, _ := setupRouter(t, "/capture")
	rec := doReq(t, h, http.MethodGet, "/capture/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 under base path, got %d", rec.Code)
	}
	rec = doReq(t, h, http.MethodGet, "/health", nil)
	if rec.Code == http.StatusOK {
		t.Fatal("route must not exist outside base path")
	}
}
