package rate

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

type bucket struct {
	capacity int
	tokens   float64
	last     time.Time
}

type cacheEntry struct {
	status  int
	header  http.Header
	body    []byte
	expires time.Time
}

// Guard enforces rate limits for a provider.
type Guard struct {
	decl Declaration
	now  func() time.Time

	mu       sync.Mutex
	buckets  map[Window]*bucket
	cooldown time.Time
	cache    map[string]cacheEntry
}

// WrapHTTP wraps an http.Client with rate-limit enforcement.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{
		base:  transport,
		guard: NewGuard(decl),
	}
	return &client
}

func NewGuard(decl Declaration) *Guard {
	g := &Guard{
		decl:    decl,
		now:     time.Now,
		buckets: make(map[Window]*bucket),
		cache:   make(map[string]cacheEntry),
	}
	start := g.now()
	for window, limit := range decl.Limits() {
		g.buckets[window] = &bucket{capacity: limit, tokens: float64(limit), last: start}
	}
	return g
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	provider := rt.guard.decl.ProviderName()

	decision := rt.guard.ShouldCall(rt.guard.now())
	if !decision.Allowed {
		if cached := rt.guard.cachedResponse(req); cached != nil {
			cacheHitCounter.WithLabelValues(provider).Inc()
			return cached, nil
		}
		blockedCounter.WithLabelValues(provider, decision.Reason).Inc()
		return nil, RateLimitError{
			Provider: provider,
			Reason:   decision.Reason,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return rt.guard.maybeCacheResponse(req, resp)
}

// ShouldCall takes a token from every window or reports why it cannot.
func (g *Guard) ShouldCall(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.decl.HasLimits() {
		return Decision{Allowed: true}
	}

	if !g.cooldown.IsZero() && now.Before(g.cooldown) {
		return Decision{Allowed: false, Reason: "cooldown", RetryAt: g.cooldown}
	}

	for window, b := range g.buckets {
		if b.capacity <= 0 {
			return Decision{Allowed: false, Reason: "disabled"}
		}
		refill(b, window.Duration(), now)
		tokensGauge.WithLabelValues(g.decl.ProviderName(), window.String()).Set(b.tokens)
		if b.tokens < 1 {
			retryAt := b.last.Add(time.Duration((1 - b.tokens) * float64(window.Duration()) / float64(b.capacity)))
			return Decision{Allowed: false, Reason: "budget", RetryAt: retryAt}
		}
	}
	for _, b := range g.buckets {
		b.tokens--
	}

	return Decision{Allowed: true}
}

// RecordResponse starts a cooldown when the device signals overload.
func (g *Guard) RecordResponse(status int, headers http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lastStatusGauge.WithLabelValues(g.decl.ProviderName()).Set(float64(status))

	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}
	wait := g.decl.Cooldown()
	if secs, err := strconv.Atoi(headers.Get("Retry-After")); err == nil && secs > 0 {
		wait = time.Duration(secs) * time.Second
	}
	if wait > 0 {
		g.cooldown = g.now().Add(wait)
	}
}

func (g *Guard) cachedResponse(req *http.Request) *http.Response {
	if req.Method != http.MethodGet || !g.decl.Cacheable(req.URL.Path) {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[req.URL.String()]
	if !ok || g.now().After(entry.expires) {
		return nil
	}
	return cloneResponse(req, entry.status, entry.header, entry.body)
}

func (g *Guard) maybeCacheResponse(req *http.Request, resp *http.Response) (*http.Response, error) {
	if req.Method != http.MethodGet || resp.StatusCode != http.StatusOK || !g.decl.Cacheable(req.URL.Path) {
		return resp, nil
	}
	buf, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	clone := cloneResponse(req, resp.StatusCode, resp.Header, buf)

	g.mu.Lock()
	g.cache[req.URL.String()] = cacheEntry{
		status:  resp.StatusCode,
		header:  clone.Header.Clone(),
		body:    buf,
		expires: g.now().Add(g.decl.CacheTTL()),
	}
	g.mu.Unlock()

	return clone, nil
}

func refill(b *bucket, window time.Duration, now time.Time) {
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.tokens = min(float64(b.capacity), b.tokens+elapsed.Seconds()*float64(b.capacity)/window.Seconds())
	b.last = now
}

func cloneResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
