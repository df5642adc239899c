package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":            "<html><body><h1>DataPrism</h1></body></html>",
		"dataprism-core.min.js": "console.log('core')",
		"engine.wasm":           "\x00asm",
		"manifest.json":         "{}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestServer(t *testing.T, watch bool) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Options{Dir: writeBundle(t), Watch: watch})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.hub.Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestServeAssetHeaders(t *testing.T) {
	_, ts := newTestServer(t, false)

	cases := []struct {
		path string
		mime string
	}{
		{"/dataprism-core.min.js", "application/javascript"},
		{"/engine.wasm", "application/wasm"},
		{"/manifest.json", "application/json"},
		{"/index.html", "text/html"},
	}
	for _, tc := range cases {
		resp, _ := get(t, ts.URL+tc.path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", tc.path, resp.StatusCode)
			continue
		}
		if got := resp.Header.Get("Content-Type"); got != tc.mime {
			t.Errorf("%s: Content-Type = %q, want %q", tc.path, got, tc.mime)
		}
		want := map[string]string{
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Embedder-Policy": "require-corp",
			"Cross-Origin-Resource-Policy": "cross-origin",
			"X-Content-Type-Options":       "nosniff",
			"Access-Control-Allow-Origin":  "*",
			"Cache-Control":                "no-cache",
		}
		for key, val := range want {
			if got := resp.Header.Get(key); got != val {
				t.Errorf("%s: %s = %q, want %q", tc.path, key, got, val)
			}
		}
	}
}

func TestRootServesIndex(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "DataPrism") {
		t.Errorf("body = %q", body)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestMissingAsset(t *testing.T) {
	_, ts := newTestServer(t, false)
	resp, _ := get(t, ts.URL+"/nope.js")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTraversalBlocked(t *testing.T) {
	_, ts := newTestServer(t, false)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/../../etc/passwd", nil)
	if err != nil {
		t.Fatal(err)
	}
	// Keep the raw path: the default client would clean it for us.
	req.URL.Path = "/../../etc/passwd"
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("traversal request served a file")
	}
}

func TestReloadScriptInjection(t *testing.T) {
	_, watching := newTestServer(t, true)
	resp, body := get(t, watching.URL+"/index.html")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, reloadPath) {
		t.Error("watched HTML missing the reload script")
	}
	idx := strings.Index(body, "<script>")
	end := strings.Index(body, "</body>")
	if idx == -1 || end == -1 || idx > end {
		t.Errorf("script not spliced before </body>: %q", body)
	}

	_, plain := newTestServer(t, false)
	if _, body := get(t, plain.URL+"/index.html"); strings.Contains(body, reloadPath) {
		t.Error("unwatched HTML contains the reload script")
	}

	// Only HTML is touched.
	if _, body := get(t, watching.URL+"/dataprism-core.min.js"); strings.Contains(body, reloadPath) {
		t.Error("non-HTML asset was modified")
	}
}

func TestInjectReloadWithoutBodyTag(t *testing.T) {
	out := injectReload([]byte("<p>partial</p>"))
	if !strings.Contains(string(out), reloadPath) {
		t.Error("script not appended to tag-less page")
	}
}

func TestHubBroadcast(t *testing.T) {
	s, ts := newTestServer(t, false)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + reloadPath
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Registration races the dial return; wait for the hub to see us.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.hub.Broadcast(Event{Type: "reload", Path: "dataprism-core.min.js"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), `"reload"`) || !strings.Contains(string(msg), "dataprism-core.min.js") {
		t.Errorf("msg = %s", msg)
	}
}

func TestNewMissingDir(t *testing.T) {
	if _, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for a missing dir")
	}
}

func TestDefaultAddr(t *testing.T) {
	s, err := New(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if s.URL() != "http://127.0.0.1:4173" {
		t.Errorf("URL = %q", s.URL())
	}
}
