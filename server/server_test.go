package server

import (
	"context"
	"encoding/json"
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

	"github.com/marcopiovanello/yt-dlp-api/server/internal/queue"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/storage"
	"github.com/marcopiovanello/yt-dlp-api/server/metrics"
)

type stubExtractor struct {
	block chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, source, template string) (string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	path := strings.Replace(template, "%(ext)s", "mp4", 1)
	return path, os.WriteFile(path, []byte(source), 0644)
}

func testConfig(t *testing.T, ex *stubExtractor) serverConfig {
	t.Helper()

	root, err := storage.NewRoot(filepath.Join(t.TempDir(), "downloads"), nil)
	if err != nil {
		t.Fatal(err)
	}

	pool, err := queue.NewPool(1, ex)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start()

	return serverConfig{root: root, pool: pool, metrics: metrics.New()}
}

func TestEndToEnd(t *testing.T) {
	cfg := testConfig(t, &stubExtractor{})
	defer cfg.pool.Stop()

	ts := httptest.NewServer(newServer(cfg).Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/download/?url="+url.QueryEscape("https://example.com/watch?v=1"), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var dl struct {
		Filename string `json:"filename"`
	}
	json.NewDecoder(resp.Body).Decode(&dl)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || dl.Filename == "" {
		t.Fatalf("download: status = %d, filename = %q", resp.StatusCode, dl.Filename)
	}

	resp, err = http.Get(ts.URL + "/files/" + dl.Filename)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "https://example.com/watch?v=1" {
		t.Fatalf("files: status = %d, body = %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("files: content type = %s", ct)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `ytdlp_api_downloads_total{result="ok"} 1`) {
		t.Errorf("metrics did not count the download:\n%s", body)
	}

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: status = %d", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig(t, &stubExtractor{})
	defer cfg.pool.Stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.com")

	rec := httptest.NewRecorder()
	newServer(cfg).Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestGracefulShutdownReleasesWaitingDownloads(t *testing.T) {
	ex := &stubExtractor{block: make(chan struct{})}
	cfg := testConfig(t, ex)
	srv := newServer(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(ln)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		gracefulShutdown(ctx, srv, &cfg)
		close(done)
	}()

	codes := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/download/?url=x", "", nil)
		if err != nil {
			codes <- 0
			return
		}
		resp.Body.Close()
		codes <- resp.StatusCode
	}()

	deadline := time.Now().Add(5 * time.Second)
	for cfg.pool.Stats().Running != 1 {
		if time.Now().After(deadline) {
			t.Fatal("download never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// the api keeps answering while the only worker is busy
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("health check during download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health during download: status = %d", resp.StatusCode)
	}

	cancel()

	select {
	case code := <-codes:
		if code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiting download was not released by shutdown")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
