package validator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"dlproxy/internal/shared/logger"
	"dlproxy/internal/shared/types"
	"dlproxy/proxypool/model"

	"golang.org/x/net/proxy"
)

const (
	chunkSize   = 1024
	progressBar = 30
)

// SpeedTester 通过代理下载固定大小的测试文件，以下载耗时为代理打分。
type SpeedTester struct {
	url           string
	expectedSize  int64
	minThroughput float64
	minFraction   float64
	timeout       time.Duration
	scheme        string
	progress      io.Writer
	now           func() time.Time
}

// NewSpeedTester creates a tester. Progress bars are written to progress;
// pass nil to disable them.
func NewSpeedTester(cfg types.SpeedTestConf, progress io.Writer) *SpeedTester {
	if progress == nil {
		progress = io.Discard
	}
	scheme := cfg.ProxyScheme
	if scheme == "" {
		scheme = "http"
	}
	return &SpeedTester{
		url:           cfg.URL,
		expectedSize:  cfg.ExpectedSize,
		minThroughput: float64(cfg.MinThroughput),
		minFraction:   cfg.MinFraction,
		timeout:       cfg.Timeout,
		scheme:        scheme,
		progress:      progress,
		now:           time.Now,
	}
}

// Test 对单个代理测速。
// 返回 nil 表示代理不可测（连接失败、状态码异常或文件大小不符）；
// 速度过低而中途放弃时返回 Time 为 +Inf 的结果。
func (v *SpeedTester) Test(ctx context.Context, p *model.ProxyInfo) *model.ScoredProxy {
	l := logger.WithComponent("ProxyPool/SpeedTester")
	fmt.Fprintf(v.progress, "Testing %s\n", p.ConnectionString())

	client, err := v.newClient(p)
	if err != nil {
		l.Warn().Err(err).Str("proxy", p.ID()).Msg("Failed to build proxy client.")
		return nil
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		l.Error().Err(err).Msg("Failed to create speed test request.")
		return nil
	}

	start := v.now()
	resp, err := client.Do(req)
	if err != nil {
		l.Info().Err(err).Str("proxy", p.ID()).Msg("Proxy is dead, skipping...")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.Info().Int("status_code", resp.StatusCode).Str("proxy", p.ID()).Msg("Proxy returned non-2xx status, skipping...")
		return nil
	}
	if resp.ContentLength != v.expectedSize {
		l.Info().Int64("content_length", resp.ContentLength).Int64("expected", v.expectedSize).Str("proxy", p.ID()).
			Msg("No content or unexpected content size.")
		return nil
	}

	elapsed, slow, err := v.download(resp.Body, start)
	if err != nil {
		l.Info().Err(err).Str("proxy", p.ID()).Msg("Download interrupted, skipping...")
		return nil
	}
	if slow {
		l.Info().Str("proxy", p.ID()).Msg("Proxy is too slow, skipping...")
		return model.NewSlowProxy(p)
	}

	score := &model.ScoredProxy{ProxyInfo: *p, Time: math.Round(elapsed.Seconds()*100) / 100}
	l.Debug().Str("proxy", p.ID()).Float64("seconds", score.Time).Msg("Speed test finished.")
	return score
}

// download 读完响应体并返回耗时。当已收到的字节数达到 minFraction 之后，
// 平均吞吐量一旦低于 minThroughput 就提前放弃。
func (v *SpeedTester) download(body io.Reader, start time.Time) (time.Duration, bool, error) {
	buf := make([]byte, chunkSize)
	var downloaded int64
	threshold := int64(math.Ceil(v.minFraction * float64(v.expectedSize)))

	for {
		n, err := body.Read(buf)
		if n > 0 {
			downloaded += int64(n)
			elapsed := v.now().Sub(start)
			var speed float64
			if elapsed > 0 {
				speed = float64(downloaded) / elapsed.Seconds()
			}

			if downloaded >= threshold && elapsed > 0 && speed < v.minThroughput {
				fmt.Fprintln(v.progress)
				return elapsed, true, nil
			}
			v.renderProgress(downloaded, speed)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(v.progress)
			return 0, false, err
		}
	}
	fmt.Fprintln(v.progress)

	if downloaded != v.expectedSize {
		return 0, false, fmt.Errorf("short body: got %d of %d bytes", downloaded, v.expectedSize)
	}
	return v.now().Sub(start), false, nil
}

func (v *SpeedTester) renderProgress(downloaded int64, bytesPerSec float64) {
	done := int(progressBar * downloaded / v.expectedSize)
	if done > progressBar {
		done = progressBar
	}
	mbps := bytesPerSec * 8 / 1e6
	fmt.Fprintf(v.progress, "\r[%s%s] %.2f Mbps", strings.Repeat("=", done), strings.Repeat(" ", progressBar-done), mbps)
}

// newClient 为单个代理构建一次性的 HTTP 客户端。
func (v *SpeedTester) newClient(p *model.ProxyInfo) (*http.Client, error) {
	dialer := &idleTimeoutDialer{
		dialer: &net.Dialer{
			Timeout:   v.timeout,
			KeepAlive: 30 * time.Second,
		},
		idle: v.timeout,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   v.timeout,
		ResponseHeaderTimeout: v.timeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		// 保持 Content-Length 原样，便于校验文件大小
		DisableCompression: true,
	}

	switch v.scheme {
	case "socks5":
		var auth *proxy.Auth
		if p.Username != "" {
			auth = &proxy.Auth{User: p.Username, Password: p.Password}
		}
		socksDialer, err := proxy.SOCKS5("tcp", p.ID(), auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := socksDialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = contextDialer.DialContext
	default:
		transport.Proxy = http.ProxyURL(p.ProxyURL("http"))
	}

	return &http.Client{Transport: transport}, nil
}

// idleTimeoutDialer 返回的连接在每次 Read 前刷新读超时，
// 代理在传输中途停止发送数据时读操作会在 idle 之后失败。
type idleTimeoutDialer struct {
	dialer *net.Dialer
	idle   time.Duration
}

func (d *idleTimeoutDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *idleTimeoutDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return &idleTimeoutConn{Conn: conn, idle: d.idle}, nil
}

type idleTimeoutConn struct {
	net.Conn
	idle time.Duration
}

func (c *idleTimeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
