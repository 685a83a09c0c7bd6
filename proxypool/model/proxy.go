package model

import (
	"math"
	"net"
	"net/url"
	"strconv"
)

// ProxyInfo 是从代理列表服务获取到的候选代理，获取后不再修改。
// JSON 字段名与远端服务保持一致。
type ProxyInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Country  string `json:"country"`
	City     string `json:"city"`
}

// ID 返回 "host:port"，用于跨来源去重。
func (p *ProxyInfo) ID() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ConnectionString 返回 "user:pass@host:port"，没有用户名时返回 "host:port"。
func (p *ProxyInfo) ConnectionString() string {
	if p.Username != "" {
		return p.Username + ":" + p.Password + "@" + p.ID()
	}
	return p.ID()
}

// ProxyURL builds the URL handed to the HTTP transport. An empty scheme
// means "http".
func (p *ProxyInfo) ProxyURL(scheme string) *url.URL {
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: p.ID()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// ScoredProxy 是测速后的代理，Time 为下载耗时（秒）。
// 测速中途因速度过低被放弃的代理 Time 为 +Inf。
type ScoredProxy struct {
	ProxyInfo
	Time float64 `json:"time"`
}

// NewSlowProxy returns a score for a proxy whose test was aborted.
func NewSlowProxy(p *ProxyInfo) *ScoredProxy {
	return &ScoredProxy{ProxyInfo: *p, Time: math.Inf(1)}
}

// Slow 表示该代理在测速中被判定为过慢。
func (s *ScoredProxy) Slow() bool {
	return math.IsInf(s.Time, 1)
}
