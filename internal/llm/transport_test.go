package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTimer satisfies the backoff timer interface, recording requested waits
// and firing immediately so retry tests run in microseconds.
type fakeTimer struct {
	delays []time.Duration
	ch     chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.ch <- time.Time{}
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func newTestClient(t *testing.T) (*Client, *fakeTimer) {
	t.Helper()
	timer := newFakeTimer()
	c := NewClient("Test", 5*time.Second)
	c.timer = timer
	return c, timer
}

func getBuilder(url string) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func rawParser(body []byte) (string, error) {
	return string(body), nil
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("answer"))
	}))
	defer srv.Close()

	c, timer := newTestClient(t)
	text, err := c.Execute(context.Background(), getBuilder(srv.URL), rawParser)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want %q", text, "answer")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
	if len(timer.delays) != 0 {
		t.Errorf("unexpected backoff waits: %v", timer.delays)
	}
}

func TestExecuteRetriesRateLimitThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	c, timer := newTestClient(t)
	text, err := c.Execute(context.Background(), getBuilder(srv.URL), rawParser)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if text != "finally" {
		t.Errorf("text = %q, want %q", text, "finally")
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("server hits = %d, want 3", n)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(timer.delays) != len(want) {
		t.Fatalf("backoff waits = %v, want %v", timer.delays, want)
	}
	for i, d := range want {
		if timer.delays[i] != d {
			t.Errorf("wait %d = %v, want %v", i, timer.delays[i], d)
		}
	}
}

func TestExecuteExhaustsFourAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, timer := newTestClient(t)
	_, err := c.Execute(context.Background(), getBuilder(srv.URL), rawParser)
	if err == nil {
		t.Fatal("Execute succeeded, want rate-limit error")
	}
	if n := hits.Load(); n != 4 {
		t.Errorf("server hits = %d, want 4", n)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(timer.delays) != len(want) {
		t.Fatalf("backoff waits = %v, want %v", timer.delays, want)
	}
	for i, d := range want {
		if timer.delays[i] != d {
			t.Errorf("wait %d = %v, want %v", i, timer.delays[i], d)
		}
	}
	if kind := KindOf(err); kind != KindRateLimited {
		t.Errorf("KindOf(err) = %v, want %v", kind, KindRateLimited)
	}
}

func TestExecuteRetriesOverloaded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(529)
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	_, err := c.Execute(context.Background(), getBuilder(srv.URL), rawParser)
	if err == nil {
		t.Fatal("Execute succeeded, want overloaded error")
	}
	if n := hits.Load(); n != 4 {
		t.Errorf("server hits = %d, want 4", n)
	}
	if kind := KindOf(err); kind != KindOverloaded {
		t.Errorf("KindOf(err) = %v, want %v", kind, KindOverloaded)
	}
}

func TestExecuteRetriesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // every connection now refused

	c, timer := newTestClient(t)
	_, err := c.Execute(context.Background(), getBuilder(url), rawParser)
	if err == nil {
		t.Fatal("Execute succeeded against closed server")
	}
	if kind := KindOf(err); kind != KindTransportFailure {
		t.Errorf("KindOf(err) = %v, want %v", kind, KindTransportFailure)
	}
	if len(timer.delays) != 3 {
		t.Errorf("backoff waits = %v, want 3 waits", timer.delays)
	}
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"bad request", http.StatusBadRequest, KindBadRequest},
		{"unauthorized", http.StatusUnauthorized, KindAuthFailure},
		{"forbidden", http.StatusForbidden, KindAuthFailure},
		{"server error", http.StatusInternalServerError, KindHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte("nope"))
			}))
			defer srv.Close()

			c, timer := newTestClient(t)
			_, err := c.Execute(context.Background(), getBuilder(srv.URL), rawParser)
			if err == nil {
				t.Fatalf("Execute succeeded, want status-%d error", tt.status)
			}
			if n := hits.Load(); n != 1 {
				t.Errorf("server hits = %d, want 1 (no retry)", n)
			}
			if len(timer.delays) != 0 {
				t.Errorf("unexpected backoff waits: %v", timer.delays)
			}
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error is %T, want *ProviderError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", pe.Kind, tt.kind)
			}
			if pe.Status != tt.status {
				t.Errorf("status = %d, want %d", pe.Status, tt.status)
			}
		})
	}
}

func TestExecuteParseFailureNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	parse := func(body []byte) (string, error) {
		return "", errors.New("unexpected shape")
	}
	_, err := c.Execute(context.Background(), getBuilder(srv.URL), parse)
	if err == nil {
		t.Fatal("Execute succeeded, want parse error")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1 (no retry)", n)
	}
	if kind := KindOf(err); kind != KindParseFailure {
		t.Errorf("KindOf(err) = %v, want %v", kind, KindParseFailure)
	}
}

func TestExecuteCancelledWhileWaitingForGate(t *testing.T) {
	c, _ := newTestClient(t)
	c.gate <- struct{}{} // occupy the single in-flight slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, getBuilder("http://127.0.0.1:0"), rawParser)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestExcerptTruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("x", 2*detailLimit)
	got := excerpt([]byte(long))
	if len(got) != detailLimit+3 {
		t.Errorf("len(excerpt) = %d, want %d", len(got), detailLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt not truncated: %q", got[len(got)-10:])
	}
	if short := excerpt([]byte("ok")); short != "ok" {
		t.Errorf("excerpt(short) = %q, want %q", short, "ok")
	}
}
