package portal

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"nfce/internal/config"
	"nfce/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig(dir string) config.Config {
	return config.Config{ReceiptsDir: dir, PortalRateLimitRPS: 1000, PortalTimeoutMs: 1000, PortalUserAgent: "nfce-test"}
}

func TestFetchPageWithRetry(t *testing.T) {
	attempt := 0
	client := NewClient(testConfig(t.TempDir()))
	client.sleep = func(time.Duration) {}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/nfce/consulta" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("User-Agent") != "nfce-test" {
				t.Fatalf("user agent %q", r.Header.Get("User-Agent"))
			}
			attempt++
			if attempt == 1 {
				return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader("busy")), Header: make(http.Header)}, nil
			}
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("<html>ok</html>")), Header: make(http.Header)}, nil
		}),
	}

	body, err := client.FetchPage(context.Background(), "https://portal.example/nfce/consulta?p=123")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<html>ok</html>" || attempt != 2 {
		t.Fatalf("body=%q attempts=%d", body, attempt)
	}
}

func TestFetchPageClientError(t *testing.T) {
	client := NewClient(testConfig(t.TempDir()))
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header)}, nil
		}),
	}
	if _, err := client.FetchPage(context.Background(), "https://portal.example/x"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := client.FetchPage(context.Background(), "ftp://portal.example/x"); err == nil {
		t.Fatal("expected error for scheme")
	}
}

func TestFetchURLs(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	dir := filepath.Join(tmp, "cfs")
	svc := NewFetchService(db, testConfig(dir), zap.NewNop())
	svc.client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.Contains(r.URL.Path, "bad") {
				return &http.Response{StatusCode: http.StatusForbidden, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header)}, nil
			}
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("<html>" + r.URL.Path + "</html>")), Header: make(http.Header)}, nil
		}),
	}

	urls := []string{"https://portal.example/a", "https://portal.example/bad"}
	report, err := svc.FetchURLs(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Saved) != 1 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	blob, err := os.ReadFile(filepath.Join(dir, PageFileName(urls[0])))
	if err != nil || string(blob) != "<html>/a</html>" {
		t.Fatalf("blob=%q err=%v", blob, err)
	}

	report, err = svc.FetchURLs(context.Background(), urls[:1])
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || len(report.Saved) != 0 {
		t.Fatalf("second fetch should skip: %+v", report)
	}

	last, err := db.GetMetadata(metaLastFetch)
	if err != nil || last == nil {
		t.Fatalf("metadata not set: %v", err)
	}
}

func TestReadURLList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte("# notas\r\nhttps://a\r\n\n  https://b  \nhttps://c"), 0o644); err != nil {
		t.Fatal(err)
	}
	urls, err := ReadURLList(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 3 || urls[0] != "https://a" || urls[1] != "https://b" || urls[2] != "https://c" {
		t.Fatalf("urls=%v", urls)
	}
}

func TestPageFileNameStable(t *testing.T) {
	a := PageFileName("https://portal.example/a")
	if a != PageFileName(" https://portal.example/a ") || !strings.HasSuffix(a, ".html") {
		t.Fatalf("name=%s", a)
	}
}
