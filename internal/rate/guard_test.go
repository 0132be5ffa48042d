package rate

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newCountingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "30")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ret=OK,path=" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestWrapHTTPBudget(t *testing.T) {
	srv, hits := newCountingServer(t, http.StatusOK)
	client := WrapHTTP(Provider("test").MaxRequestsPer(Minute, 2), nil)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/aircon/get_control_info")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}

	_, err := client.Get(srv.URL + "/aircon/get_control_info")
	var rle RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Reason != "budget" || rle.RetryAt.IsZero() {
		t.Fatalf("unexpected decision: %+v", rle)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", hits.Load())
	}
}

func TestWrapHTTPServesCachedReads(t *testing.T) {
	srv, hits := newCountingServer(t, http.StatusOK)
	decl := Provider("test").
		MaxRequestsPer(Minute, 1).
		CacheFor(time.Minute, "/common/basic_info")
	client := WrapHTTP(decl, nil)

	resp, err := client.Get(srv.URL + "/common/basic_info")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/common/basic_info")
	if err != nil {
		t.Fatalf("cached request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ret=OK,path=/common/basic_info" {
		t.Fatalf("unexpected cached body: %q", body)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits.Load())
	}

	if _, err := client.Get(srv.URL + "/aircon/set_zone_setting"); err == nil {
		t.Fatalf("expected writes to be refused, not replayed")
	}
}

func TestRetryAfterStartsCooldown(t *testing.T) {
	srv, _ := newCountingServer(t, http.StatusServiceUnavailable)
	client := WrapHTTP(Provider("test").MaxRequestsPer(Minute, 10), nil)

	resp, err := client.Get(srv.URL + "/common/basic_info")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()

	_, err = client.Get(srv.URL + "/common/basic_info")
	var rle RateLimitError
	if !errors.As(err, &rle) || rle.Reason != "cooldown" {
		t.Fatalf("expected cooldown, got %v", err)
	}
}

func TestShouldCallRefills(t *testing.T) {
	g := NewGuard(Provider("test").MaxRequestsPer(Minute, 2))
	start := time.Now()

	for i := 0; i < 2; i++ {
		if d := g.ShouldCall(start); !d.Allowed {
			t.Fatalf("call %d refused: %+v", i, d)
		}
	}
	if d := g.ShouldCall(start); d.Allowed {
		t.Fatalf("expected budget exhaustion")
	}
	if d := g.ShouldCall(start.Add(31 * time.Second)); !d.Allowed {
		t.Fatalf("expected a refilled token: %+v", d)
	}
}

func TestNoLimitsAllowsEverything(t *testing.T) {
	g := NewGuard(Provider("test"))
	for i := 0; i < 100; i++ {
		if !g.ShouldCall(time.Now()).Allowed {
			t.Fatalf("call %d refused", i)
		}
	}
}
