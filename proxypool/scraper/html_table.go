package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dlproxy/internal/shared/logger"
	"dlproxy/proxypool/model"

	"github.com/PuerkitoBio/goquery"
)

// HTMLTableScraper 抓取以 HTML 表格发布的免费代理列表。
// 表格每行的前四列依次为 IP、端口、国家、城市，后两列可以缺省。
type HTMLTableScraper struct {
	url    string
	client *http.Client
}

// NewHTMLTableScraper 创建一个新的实例
func NewHTMLTableScraper(url string) *HTMLTableScraper {
	return &HTMLTableScraper{
		url: url,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *HTMLTableScraper) Name() string {
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		return u.Host
	}
	return "html-table"
}

func (s *HTMLTableScraper) Scrape(ctx context.Context) ([]*model.ProxyInfo, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.Name(), err)
	}

	var proxies []*model.ProxyInfo
	doc.Find("table tbody tr").Each(func(_ int, sel *goquery.Selection) {
		cells := sel.Find("td")
		ip := strings.TrimSpace(cells.Eq(0).Text())
		portStr := strings.TrimSpace(cells.Eq(1).Text())
		if ip == "" || portStr == "" {
			return
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			l.Warn().Str("ip", ip).Str("port", portStr).Str("source", s.Name()).Msg("Failed to parse port, skipping row.")
			return
		}

		proxies = append(proxies, &model.ProxyInfo{
			Host:    ip,
			Port:    port,
			Country: strings.TrimSpace(cells.Eq(2).Text()),
			City:    strings.TrimSpace(cells.Eq(3).Text()),
		})
	})

	l.Info().Int("count", len(proxies)).Str("source", s.Name()).Msg("Scrape finished.")
	return proxies, nil
}
