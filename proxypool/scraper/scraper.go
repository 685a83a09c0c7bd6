package scraper

import (
	"context"

	"dlproxy/proxypool/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Scraper 接口定义了从代理源抓取代理信息的行为。
type Scraper interface {
	// Scrape 执行一次抓取并返回候选代理。
	// 实现者只负责抓取和解析，不做过滤或测速。
	Scrape(ctx context.Context) ([]*model.ProxyInfo, error)

	// Name 返回抓取器的名称，用于日志记录。
	Name() string
}
