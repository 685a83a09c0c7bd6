package validator

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"dlproxy/internal/shared/types"
	"dlproxy/proxypool/model"
)

const testSize = 64 * 1024

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// newProxyServer starts an HTTP server acting as a forward proxy: it answers
// every request itself with a body of bodySize bytes and the declared length.
func newProxyServer(t *testing.T, declared, bodySize int) (*httptest.Server, *model.ProxyInfo) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Host != "speedtest.invalid" {
			http.Error(w, "unexpected target "+r.URL.Host, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(declared))
		w.Write(bytes.Repeat([]byte{'x'}, bodySize))
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return srv, &model.ProxyInfo{Host: host, Port: port, Country: "Germany", City: "Berlin"}
}

func newTester(minThroughput int64, clock *fakeClock, progress *bytes.Buffer) *SpeedTester {
	tester := NewSpeedTester(types.SpeedTestConf{
		URL:           "http://speedtest.invalid/5MB.zip",
		ExpectedSize:  testSize,
		MinThroughput: minThroughput,
		MinFraction:   0.1,
		Timeout:       2 * time.Second,
		ProxyScheme:   "http",
	}, progress)
	if clock != nil {
		tester.now = clock.Now
	}
	return tester
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{"Russia"})
	tests := []struct {
		name  string
		proxy *model.ProxyInfo
		want  bool
	}{
		{"valid", &model.ProxyInfo{Host: "1.1.1.1", Port: 80, Country: "Germany"}, true},
		{"empty host", &model.ProxyInfo{Host: "", Port: 80, Country: "Germany"}, false},
		{"blank host", &model.ProxyInfo{Host: "  ", Port: 80, Country: "Germany"}, false},
		{"excluded country", &model.ProxyInfo{Host: "1.1.1.1", Port: 80, Country: "Russia"}, false},
		{"excluded country other case", &model.ProxyInfo{Host: "1.1.1.1", Port: 80, Country: "russia"}, false},
		{"unknown country", &model.ProxyInfo{Host: "1.1.1.1", Port: 80}, true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Valid(tt.proxy); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_ApplyKeepsOrder(t *testing.T) {
	f := NewFilter([]string{"Russia"})
	in := []*model.ProxyInfo{
		{Host: "a", Country: "France"},
		{Host: "b", Country: "Russia"},
		{Host: "", Country: "France"},
		{Host: "c", Country: "Japan"},
	}
	out := f.Apply(in)
	if len(out) != 2 || out[0].Host != "a" || out[1].Host != "c" {
		t.Fatalf("unexpected filter result: %+v", out)
	}
}

func TestSpeedTester_CompletedDownload(t *testing.T) {
	_, p := newProxyServer(t, testSize, testSize)
	var progress bytes.Buffer
	clock := &fakeClock{t: time.Unix(0, 0), step: 10 * time.Millisecond}

	score := newTester(1000, clock, &progress).Test(context.Background(), p)
	if score == nil {
		t.Fatal("expected a score, got nil")
	}
	if score.Slow() {
		t.Fatal("fast proxy must not be marked slow")
	}
	if score.Time <= 0 {
		t.Errorf("expected positive elapsed time, got %v", score.Time)
	}
	if score.Host != p.Host || score.City != "Berlin" {
		t.Errorf("score lost candidate fields: %+v", score)
	}
	if !strings.Contains(progress.String(), "["+strings.Repeat("=", progressBar)+"]") {
		t.Errorf("expected a full progress bar, got %q", progress.String())
	}
}

func TestSpeedTester_SlowProxyAborts(t *testing.T) {
	_, p := newProxyServer(t, testSize, testSize)
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Hour}

	score := newTester(100000, clock, nil).Test(context.Background(), p)
	if score == nil {
		t.Fatal("slow proxy should still be scored")
	}
	if !score.Slow() {
		t.Fatalf("expected +Inf time, got %v", score.Time)
	}
}

func TestSpeedTester_ContentLengthMismatch(t *testing.T) {
	_, p := newProxyServer(t, testSize-1, testSize-1)

	if score := newTester(0, nil, nil).Test(context.Background(), p); score != nil {
		t.Fatalf("expected nil for unexpected size, got %+v", score)
	}
}

func TestSpeedTester_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusProxyAuthRequired)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	p := &model.ProxyInfo{Host: host, Port: port}
	if score := newTester(0, nil, nil).Test(context.Background(), p); score != nil {
		t.Fatalf("expected nil for 407, got %+v", score)
	}
}

func TestSpeedTester_DeadProxy(t *testing.T) {
	srv, p := newProxyServer(t, testSize, testSize)
	srv.Close()

	if score := newTester(0, nil, nil).Test(context.Background(), p); score != nil {
		t.Fatalf("expected nil for dead proxy, got %+v", score)
	}
}

func TestSpeedTester_CanceledContext(t *testing.T) {
	_, p := newProxyServer(t, testSize, testSize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if score := newTester(0, nil, nil).Test(ctx, p); score != nil {
		t.Fatalf("expected nil for canceled context, got %+v", score)
	}
}

func TestSpeedTester_StalledBodyIsRejected(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(testSize))
		w.Write(bytes.Repeat([]byte{'x'}, 1000))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	p := &model.ProxyInfo{Host: host, Port: port}

	tester := newTester(0, nil, nil)
	tester.timeout = 200 * time.Millisecond

	done := make(chan *model.ScoredProxy, 1)
	go func() { done <- tester.Test(context.Background(), p) }()

	select {
	case score := <-done:
		if score != nil {
			t.Fatalf("expected nil for a proxy that stopped sending, got %+v", score)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Test did not return after the proxy stopped sending data")
	}
}
