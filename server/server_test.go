package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/catalog"
	"github.com/minios-linux/transcan/scan"
)

const prefix = "/translation-scanner"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	dir     string
	cat     *catalog.Catalog
	handler http.Handler
}

func newFixture(t *testing.T, scanFn ScanFunc) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "en.json"), `{"Cancel": "Cancel", "greeting": "Hello"}`)
	writeFile(t, filepath.Join(dir, "en", "messages.yaml"), "save: Save\n")
	writeFile(t, filepath.Join(dir, "ar.json"), `{"Cancel": "إلغاء"}`)

	cat := catalog.New(dir, zerolog.Nop())
	srv, err := New(Options{
		Catalog:        cat,
		Prefix:         prefix,
		PerPage:        25,
		DefaultLocales: []string{"en", "ar"},
		Scan:           scanFn,
		Log:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{dir: dir, cat: cat, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values, ajax bool) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if ajax {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func value(entries []catalog.Entry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, prefix+"/", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"greeting", "Hello", "en/messages.yaml", `id="tab-ar"`, `dir="rtl"`, prefix + "/scan-translate"} {
		if !strings.Contains(body, want) {
			t.Errorf("page lacks %q", want)
		}
	}
}

func TestIndexNegotiatesLanguage(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, prefix+"/", nil)
	req.Header.Set("Accept-Language", "ar-EG,ar;q=0.9")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `<html lang="ar">`) {
		t.Errorf("page is not in Arabic: %.200s", rec.Body.String())
	}
}

func TestIndexAJAX(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, prefix+"/?tab=ar&search=cancel", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode(t, rec)
	if out["success"] != msgListed {
		t.Errorf("success = %v", out["success"])
	}
	if out["tab"] != "ar" {
		t.Errorf("tab = %v, want ar", out["tab"])
	}
	html, _ := out["html"].(string)
	if !strings.Contains(html, "إلغاء") || strings.Contains(html, "greeting") {
		t.Errorf("html not filtered by search: %s", html)
	}

	// Unknown tabs fall back to the first locale.
	out = decode(t, f.do(t, http.MethodGet, prefix+"/?tab=zz", nil, true))
	if out["tab"] != "ar" {
		t.Errorf("tab = %v, want first locale ar", out["tab"])
	}
}

func TestIndexPagination(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, prefix+"/?per_page=1&page_en=2", nil, false)
	body := rec.Body.String()
	if !strings.Contains(body, "Page 2 of 3") {
		t.Errorf("missing page indicator")
	}
	if !strings.Contains(body, "page_en=1") || !strings.Contains(body, "page_en=3") {
		t.Errorf("missing neighbour links")
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, prefix+"/list?locales=en&search=hello", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Search  string
		PerPage int `json:"per_page"`
		Locales []localeListing
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Search != "hello" || out.PerPage != 25 {
		t.Errorf("search/per_page = %q/%d", out.Search, out.PerPage)
	}
	if len(out.Locales) != 1 || out.Locales[0].Locale != "en" || out.Locales[0].Dir != "ltr" {
		t.Fatalf("locales = %+v", out.Locales)
	}
	items := out.Locales[0].Page.Items
	if len(items) != 1 || items[0].Key != "greeting" || items[0].File != "en.json" {
		t.Errorf("items = %+v", items)
	}
}

func TestListRejectsBadLocale(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, prefix+"/list?locales=../etc", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decode(t, rec); out["status"] != "error" {
		t.Errorf("body = %v", out)
	}
}

func TestUpdateAJAX(t *testing.T) {
	f := newFixture(t, nil)

	// Prime the cache so the update has to invalidate it.
	f.do(t, http.MethodGet, prefix+"/list", nil, false)

	form := url.Values{"locale": {"ar"}, "key": {"greeting"}, "value": {"مرحبا"}}
	rec := f.do(t, http.MethodPost, prefix+"/update", form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["success"] != "Updated translation for greeting" {
		t.Errorf("body = %v", out)
	}
	if v, _ := value(f.cat.LoadLocale("ar"), "greeting"); v != "مرحبا" {
		t.Errorf("stored value = %q", v)
	}

	rec = f.do(t, http.MethodGet, prefix+"/list?locales=ar&search=greeting", nil, false)
	if !strings.Contains(rec.Body.String(), "مرحبا") {
		t.Errorf("listing is stale: %s", rec.Body.String())
	}
}

func TestUpdateNamespacedJSONBody(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, prefix+"/update",
		strings.NewReader(`{"locale":"en","key":"save","value":"Store","file":"en/messages.yaml"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["success"] != "Updated translation for save" {
		t.Errorf("body = %v", out)
	}
	data, err := os.ReadFile(filepath.Join(f.dir, "en", "messages.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "save: Store\n" {
		t.Errorf("messages.yaml = %q", data)
	}
}

func TestIsAJAX(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{name: "form post", headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, want: false},
		{name: "xhr", headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}, want: true},
		{name: "accept json", headers: map[string]string{"Accept": "application/json, text/plain"}, want: true},
		{name: "json body", headers: map[string]string{"Content-Type": "application/json; charset=utf-8"}, want: true},
		{name: "bad content type", headers: map[string]string{"Content-Type": ";;"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, prefix+"/update", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := isAJAX(req); got != tc.want {
				t.Errorf("isAJAX = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestListSeesChangesOnDisk(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, prefix+"/list?locales=en", nil, false)
	if strings.Contains(rec.Body.String(), "Logout") {
		t.Fatalf("unexpected entry: %s", rec.Body.String())
	}

	path := filepath.Join(f.dir, "en.json")
	writeFile(t, path, `{"Cancel": "Cancel", "Logout": "Logout", "greeting": "Hello"}`)
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	rec = f.do(t, http.MethodGet, prefix+"/list?locales=en", nil, false)
	if !strings.Contains(rec.Body.String(), "Logout") {
		t.Fatalf("listing ignores the edited file: %s", rec.Body.String())
	}

	writeFile(t, filepath.Join(f.dir, "en", "auth.yaml"), "login: Login\n")
	rec = f.do(t, http.MethodGet, prefix+"/list?locales=en&search=login", nil, false)
	if !strings.Contains(rec.Body.String(), "en/auth.yaml") {
		t.Fatalf("listing ignores the new namespaced store: %s", rec.Body.String())
	}
}

func TestUpdateRedirectsWithFlash(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{"locale": {"ar"}, "key": {"greeting"}, "value": {"أهلا"}}
	rec := f.do(t, http.MethodPost, prefix+"/update", form, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != prefix+"/#ar" {
		t.Errorf("Location = %q", loc)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != flashCookie {
		t.Fatalf("cookies = %v", cookies)
	}
	req := httptest.NewRequest(http.MethodGet, prefix+"/", nil)
	req.AddCookie(cookies[0])
	page := httptest.NewRecorder()
	f.handler.ServeHTTP(page, req)
	if !strings.Contains(page.Body.String(), "Translation updated successfully.") {
		t.Error("flash message not shown")
	}
	cleared := page.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("flash cookie not cleared: %v", cleared)
	}
}

func TestUpdateErrors(t *testing.T) {
	cases := []struct {
		name string
		form url.Values
	}{
		{"missing key", url.Values{"locale": {"en"}, "value": {"x"}}},
		{"missing locale", url.Values{"key": {"k"}, "value": {"x"}}},
		{"bad locale", url.Values{"locale": {"../x"}, "key": {"k"}}},
		{"foreign file", url.Values{"locale": {"en"}, "key": {"k"}, "file": {"ar.json"}}},
		{"traversal", url.Values{"locale": {"en"}, "key": {"k"}, "file": {"../secrets.yaml"}}},
	}
	f := newFixture(t, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, prefix+"/update", tc.form, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			out := decode(t, rec)
			if out["status"] != "error" || out["message"] == "" {
				t.Errorf("body = %v", out)
			}
		})
	}
}

func TestDeleteAJAX(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{"file": {"en.json"}, "key": {"greeting"}, "tab": {"en"}, "locales[]": {"en", "ar"}}
	rec := f.do(t, http.MethodPost, prefix+"/delete", form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["success"] != "Deleted translation greeting" || out["tab"] != "en" {
		t.Errorf("body = %v", out)
	}
	if html, _ := out["html"].(string); strings.Contains(html, "greeting") {
		t.Error("deleted entry still listed")
	}
	if _, ok := value(f.cat.LoadLocale("en"), "greeting"); ok {
		t.Error("entry still stored")
	}
}

func TestDeleteRedirects(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{"file": {"en/messages.yaml"}, "key": {"save"}, "tab": {"en"}}
	req := httptest.NewRequest(http.MethodPost, prefix+"/delete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "http://example.com"+prefix+"/?search=save")
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != prefix+"/?search=save#en" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDeleteMissingFile(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{"file": {"fr.json"}, "key": {"greeting"}}
	rec := f.do(t, http.MethodPost, prefix+"/delete", form, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decode(t, rec); out["error"] != "File fr.json not found" {
		t.Errorf("body = %v", out)
	}
}

func TestDeleteInvalidFile(t *testing.T) {
	f := newFixture(t, nil)
	for _, file := range []string{"../en.json", "/etc/passwd", "en/notes.txt"} {
		rec := f.do(t, http.MethodPost, prefix+"/delete", url.Values{"file": {file}, "key": {"k"}}, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", file, rec.Code)
		}
	}
}

func TestScan(t *testing.T) {
	var gotLocales []string
	var gotTranslate bool
	f := newFixture(t, func(ctx context.Context, locales []string, translate bool) (*scan.Report, error) {
		gotLocales = locales
		gotTranslate = translate
		return &scan.Report{}, nil
	})

	form := url.Values{"locales[]": {"en", "fr"}, "tab": {"fr"}}
	rec := f.do(t, http.MethodPost, prefix+"/scan-translate", form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Join(gotLocales, ",") != "en,fr" || !gotTranslate {
		t.Errorf("scan called with %v, %v", gotLocales, gotTranslate)
	}
	out := decode(t, rec)
	if out["success"] != msgListed || out["tab"] != "fr" {
		t.Errorf("body = %v", out)
	}

	rec = f.do(t, http.MethodPost, prefix+"/scan", url.Values{}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Join(gotLocales, ",") != "en,ar" || gotTranslate {
		t.Errorf("default scan called with %v, %v", gotLocales, gotTranslate)
	}
}

func TestScanErrors(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodPost, prefix+"/scan", url.Values{}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("scan without ScanFunc: status = %d", rec.Code)
	}

	f = newFixture(t, func(context.Context, []string, bool) (*scan.Report, error) {
		return nil, errors.New("disk full")
	})
	rec := f.do(t, http.MethodPost, prefix+"/scan", url.Values{}, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decode(t, rec); out["message"] != "disk full" {
		t.Errorf("body = %v", out)
	}
}

func TestRecoversFromPanics(t *testing.T) {
	f := newFixture(t, func(context.Context, []string, bool) (*scan.Report, error) {
		panic("boom")
	})
	rec := f.do(t, http.MethodPost, prefix+"/scan", url.Values{}, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decode(t, rec); out["status"] != "error" {
		t.Errorf("body = %v", out)
	}

	// The lock must have been released.
	form := url.Values{"locale": {"en"}, "key": {"k"}, "value": {"v"}}
	if rec := f.do(t, http.MethodPost, prefix+"/update", form, true); rec.Code != http.StatusOK {
		t.Errorf("update after panic: status = %d", rec.Code)
	}
}

func TestPrefixRedirect(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, prefix, nil, false)
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != prefix+"/" {
		t.Errorf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := f.do(t, http.MethodGet, prefix+"/update", nil, false); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET update: status = %d", rec.Code)
	}
}

func TestRootPrefix(t *testing.T) {
	srv, err := New(Options{Catalog: catalog.New(t.TempDir(), zerolog.Nop()), Prefix: "/", DefaultLocales: []string{"en"}})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="tab-en"`) {
		t.Error("default locale tab missing on empty lang directory")
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("no request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "3f1d3c36-34a4-4d8c-8b5a-1f0d5f0c2b9e")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "3f1d3c36-34a4-4d8c-8b5a-1f0d5f0c2b9e" {
		t.Errorf("client request id not kept: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "not-a-uuid" || got == "" {
		t.Errorf("invalid request id kept: %q", got)
	}

	rec = f.do(t, http.MethodGet, "/metrics", nil, false)
	if !strings.Contains(rec.Body.String(), "transcan_http_requests_total") {
		t.Error("request counter missing from /metrics")
	}
}

func TestListenAndServe(t *testing.T) {
	srv, err := New(Options{Catalog: catalog.New(t.TempDir(), zerolog.Nop())})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a.String() })
	}()

	addr := <-addrCh
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("ListenAndServe: %v", err)
	}
}
