package validator

import (
	"strings"

	"dlproxy/proxypool/model"
)

// Filter 剔除无法使用的候选代理：host 为空，或者所在国家对目标站点限速。
type Filter struct {
	excluded map[string]struct{}
}

func NewFilter(excludeCountries []string) *Filter {
	f := &Filter{excluded: make(map[string]struct{}, len(excludeCountries))}
	for _, c := range excludeCountries {
		if c = strings.TrimSpace(c); c != "" {
			f.excluded[strings.ToLower(c)] = struct{}{}
		}
	}
	return f
}

// Valid reports whether p may be speed-tested.
func (f *Filter) Valid(p *model.ProxyInfo) bool {
	if p == nil || strings.TrimSpace(p.Host) == "" {
		return false
	}
	_, banned := f.excluded[strings.ToLower(strings.TrimSpace(p.Country))]
	return !banned
}

// Apply 返回通过过滤的子集，保持原有顺序。
func (f *Filter) Apply(proxies []*model.ProxyInfo) []*model.ProxyInfo {
	out := make([]*model.ProxyInfo, 0, len(proxies))
	for _, p := range proxies {
		if f.Valid(p) {
			out = append(out, p)
		}
	}
	return out
}
