package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dlproxy/internal/shared/logger"
	"dlproxy/proxypool/model"
)

// JSONScraper 从返回 JSON 数组的代理列表服务抓取代理。
type JSONScraper struct {
	url    string
	client *http.Client
}

// NewJSONScraper 创建一个新的 JSONScraper 实例。
func NewJSONScraper(url string) *JSONScraper {
	return &JSONScraper{
		url: url,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *JSONScraper) Name() string {
	return "json-list"
}

func (s *JSONScraper) Scrape(ctx context.Context) ([]*model.ProxyInfo, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Str("url", s.url).Msg("Starting scrape...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("received non-2xx status code (%d) from %s", resp.StatusCode, s.Name())
	}

	var proxies []*model.ProxyInfo
	if err := json.NewDecoder(resp.Body).Decode(&proxies); err != nil {
		return nil, fmt.Errorf("failed to decode proxy list from %s: %w", s.Name(), err)
	}

	l.Info().Int("count", len(proxies)).Str("source", s.Name()).Msg("Scrape finished.")
	return proxies, nil
}
