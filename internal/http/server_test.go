package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"findash/internal/auth"
	"findash/internal/core"
	"findash/internal/log"
	"findash/internal/services"
	"findash/internal/session"
	"findash/internal/sheets/memory"
	"findash/internal/workbook"
)

var testNow = time.Date(2025, 3, 20, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := session.NewStore(10, time.Hour, nil)
	journal := memory.New(10)
	uploads := services.NewUploadService(store, journal, log.Discard(), services.Options{
		Now: func() time.Time { return testNow },
	})
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	if opts.Uploads == nil {
		opts.Uploads = journal
	}
	srv := NewServer(opts, store, uploads, log.Discard())
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func sampleXLSX(t *testing.T, wb workbook.Workbook) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := workbook.WriteXLSX(&buf, wb); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "finances.xlsx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req
}

func serve(srv *Server, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("response did not set %s", session.CookieName)
	return nil
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{Version: "test"})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if health["status"] != "healthy" || health["version"] != "test" {
		t.Fatalf("unexpected health body: %v", health)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header not set")
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil), nil)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "ready" {
		t.Fatalf("readyz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	c := sessionCookie(t, rr)
	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie flags not set: %+v", c)
	}
	if !strings.Contains(rr.Body.String(), `action="/upload"`) {
		t.Fatalf("index is missing the upload form")
	}

	// a valid cookie is kept
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/", nil), c)
	for _, got := range rr.Result().Cookies() {
		if got.Name == session.CookieName {
			t.Fatalf("existing session should not be replaced")
		}
	}
}

func TestSeriesRequireUpload(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/api/networth", "/api/monthly", "/api/categories", "/api/budget", "/api/insights", "/api/filters"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil), nil)
		if rr.Code != http.StatusConflict {
			t.Errorf("%s before upload: status=%d, want 409", path, rr.Code)
		}
	}
}

func TestUploadThenSeries(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, uploadRequest(t, sampleXLSX(t, workbook.Sample(testNow))), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res struct {
		Valid  bool             `json:"valid"`
		Counts core.TableCounts `json:"counts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("upload body: %v", err)
	}
	if !res.Valid || res.Counts.Expenses != 5 {
		t.Fatalf("unexpected upload result: %+v", res)
	}
	cookie := sessionCookie(t, rr)

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/networth?range=MAX", nil), cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("networth status=%d body=%s", rr.Code, rr.Body.String())
	}
	var points []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil || len(points) != 3 {
		t.Fatalf("expected 3 net worth points, got %d (%v)", len(points), err)
	}
	if points[0]["x"] != "2025-01-01" {
		t.Fatalf("first point dated %v", points[0]["x"])
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/categories?range=1M", nil), cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Transport") {
		t.Fatalf("categories: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/budget?category=Food", nil), cookie)
	var lines []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &lines); err != nil || len(lines) != 1 || lines[0]["category"] != "Food" {
		t.Fatalf("budget filter not applied: %s", rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/insights", nil), cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"budget_warnings"`) {
		t.Fatalf("insights: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/networth?range=2W", nil), cookie)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad range status=%d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/uploads", nil), cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"accepted"`) {
		t.Fatalf("uploads: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(srv, httptest.NewRequest(http.MethodPost, "/reset", nil), cookie)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("reset status=%d", rr.Code)
	}
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/networth", nil), cookie)
	if rr.Code != http.StatusConflict {
		t.Fatalf("series after reset: status=%d", rr.Code)
	}
}

func TestUploadRejection(t *testing.T) {
	wb := workbook.Sample(testNow)
	wb.Sheets = wb.Sheets[:3] // drop Budget

	tests := []struct {
		name       string
		debug      bool
		wantDetail bool
	}{
		{"production hides detail", false, false},
		{"debug exposes detail", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{Debug: tt.debug})
			rr := serve(srv, uploadRequest(t, sampleXLSX(t, wb)), nil)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d, want 422", rr.Code)
			}
			var res map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
				t.Fatalf("body: %v", err)
			}
			if res["valid"] != false || res["reason"] != "missing_sheets" {
				t.Fatalf("unexpected body: %v", res)
			}
			if _, ok := res["detail"]; ok != tt.wantDetail {
				t.Fatalf("detail present=%v, want %v", ok, tt.wantDetail)
			}
		})
	}
}

func TestUploadUnreadableFile(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := serve(srv, uploadRequest(t, []byte("not a spreadsheet")), nil)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), `"unreadable"`) {
		t.Fatalf("unreadable upload: %d %s", rr.Code, rr.Body.String())
	}
}

func TestUploadBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, Options{})
	data := bytes.Repeat([]byte{'x'}, int(services.DefaultMaxBytes+2*multipartOverhead))
	rr := serve(srv, uploadRequest(t, data), nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", rr.Code)
	}
	var res map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("body: %v", err)
	}
	if res["valid"] != false || res["reason"] != services.ReasonTooLarge {
		t.Fatalf("unexpected body: %v", res)
	}
}

func TestImportSheetsNotConfigured(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/import/sheets", nil), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestTemplateDownload(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/template.xlsx", nil), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("content type %q", rr.Header().Get("Content-Type"))
	}
	wb, err := workbook.ReadXLSX(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("template is not readable: %v", err)
	}
	if len(wb.Sheets) != 4 {
		t.Fatalf("template has %d sheets", len(wb.Sheets))
	}
}

func TestAuthRequired(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	srv := newTestServer(t, Options{Gate: auth.NewBasic(map[string]string{"ann": hash})})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("anonymous index: status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("ann", "s3cret")
	if rr = serve(srv, req, nil); rr.Code != http.StatusOK {
		t.Fatalf("authenticated index: status=%d", rr.Code)
	}

	if rr = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz must stay public: status=%d", rr.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/networth?range=1M%27%20union%20select", nil), nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}
