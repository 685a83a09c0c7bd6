package proxypool

import (
	"context"
	"sort"

	"dlproxy/internal/shared/logger"
	"dlproxy/proxypool/model"
	"dlproxy/proxypool/scraper"
	"dlproxy/proxypool/storage"
	"dlproxy/proxypool/validator"
)

// Tester 对单个候选代理测速，nil 表示该代理不可用。
type Tester interface {
	Test(ctx context.Context, p *model.ProxyInfo) *model.ScoredProxy
}

// Manager 负责一次完整的刷新：抓取 -> 过滤 -> 逐个测速 -> 排名 -> 存储。
type Manager struct {
	storage  storage.Storage
	scrapers []scraper.Scraper
	filter   *validator.Filter
	tester   Tester
	maxKept  int
}

// NewManager 创建代理池管理器。抓取器通过 AddScraper 注册。
func NewManager(storage storage.Storage, filter *validator.Filter, tester Tester, maxKept int) *Manager {
	return &Manager{
		storage: storage,
		filter:  filter,
		tester:  tester,
		maxKept: maxKept,
	}
}

// AddScraper 添加一个抓取器到管理器。
func (m *Manager) AddScraper(s scraper.Scraper) {
	m.scrapers = append(m.scrapers, s)
}

// Refresh 执行一次刷新并返回写入存储的列表。
// 抓取、测速和保存失败只记录日志；只有 ctx 被取消时才返回错误，此时不写文件。
func (m *Manager) Refresh(ctx context.Context) ([]*model.ScoredProxy, error) {
	l := logger.WithComponent("ProxyPool/Manager")
	l.Info().Msg("Starting proxy refresh...")

	candidates := m.fetch(ctx)
	valid := m.filter.Apply(candidates)
	l.Info().Int("fetched", len(candidates)).Int("valid", len(valid)).Msg("Candidates filtered. Starting speed tests...")

	scored := make([]*model.ScoredProxy, 0, len(valid))
	for i, p := range valid {
		if err := ctx.Err(); err != nil {
			l.Warn().Int("tested", i).Msg("Refresh canceled, proxy list left untouched.")
			return nil, err
		}
		if s := m.tester.Test(ctx, p); s != nil {
			scored = append(scored, s)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := Rank(scored, m.maxKept)
	l.Info().Int("tested", len(valid)).Int("usable", len(scored)).Int("kept", len(best)).Msg("Speed tests finished.")

	if err := m.storage.Save(best); err != nil {
		l.Error().Err(err).Msg("Failed to save proxies to file.")
	}
	return best, nil
}

// fetch 依次运行所有抓取器并按 host:port 去重。失败的抓取器只记录日志。
func (m *Manager) fetch(ctx context.Context) []*model.ProxyInfo {
	l := logger.WithComponent("ProxyPool/Manager")

	seen := make(map[string]struct{})
	proxies := make([]*model.ProxyInfo, 0)
	for _, s := range m.scrapers {
		list, err := s.Scrape(ctx)
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Failed to fetch proxies.")
			continue
		}
		for _, p := range list {
			if p == nil {
				continue
			}
			if _, dup := seen[p.ID()]; dup {
				continue
			}
			seen[p.ID()] = struct{}{}
			proxies = append(proxies, p)
		}
	}
	return proxies
}

// Rank 按耗时升序排序并保留前 limit 个。被判定过慢的代理直接丢弃。
func Rank(scored []*model.ScoredProxy, limit int) []*model.ScoredProxy {
	ranked := make([]*model.ScoredProxy, 0, len(scored))
	for _, s := range scored {
		if s != nil && !s.Slow() {
			ranked = append(ranked, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Time < ranked[j].Time
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
