package types

import "time"

// SourceConf 描述代理列表的来源。
type SourceConf struct {
	ProxyListURL     string   `ini:"proxy_list_url" validate:"required,url"`
	HTMLListURLs     []string `ini:"html_list_urls" delim:"," validate:"dive,url"`
	ExcludeCountries []string `ini:"exclude_countries" delim:","`
}

// SpeedTestConf 包含测速相关的配置
type SpeedTestConf struct {
	URL           string        `ini:"speedtest_url" validate:"required,url"`
	ExpectedSize  int64         `ini:"expected_size" validate:"gt=0"`
	MinThroughput int64         `ini:"min_throughput" validate:"gte=0"`
	MinFraction   float64       `ini:"min_fraction" validate:"gte=0,lte=1"`
	Timeout       time.Duration `ini:"timeout" validate:"gt=0"`
	MaxKept       int           `ini:"max_kept" validate:"gt=0"`
	ProxyScheme   string        `ini:"proxy_scheme" validate:"oneof=http socks5"`
}

// LauncherConf 控制外部下载工具的调用方式
type LauncherConf struct {
	ListFile    string        `ini:"list_file" validate:"required"`
	Tool        string        `ini:"tool" validate:"required"`
	ToolArgs    string        `ini:"tool_args"`
	Challenge   string        `ini:"challenge" validate:"required"`
	RetryDelay  time.Duration `ini:"retry_delay" validate:"gte=0"`
	MaxAttempts int           `ini:"max_attempts" validate:"gte=0"` // 0 表示不限次数
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 dlproxy 的统一配置结构体
type Config struct {
	SourceConf    `ini:"source"`
	SpeedTestConf `ini:"speedtest"`
	LauncherConf  `ini:"launcher"`
	LogConf       `ini:"log"`
}
