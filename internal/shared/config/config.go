package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dlproxy/internal/shared/types"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const (
	DefaultProxyListURL = "https://nnp.nnchan.ru/mahoproxy.php?u=https://api.sandvpn.com/fetch-free-proxys"
	DefaultSpeedTestURL = "http://212.183.159.230/5MB.zip"
	DefaultListFile     = "proxy.json"
	DefaultChallenge    = "Sign in to"
)

var validate = validator.New()

// Default 返回内置的默认配置。
func Default() *types.Config {
	return &types.Config{
		SourceConf: types.SourceConf{
			ProxyListURL:     DefaultProxyListURL,
			ExcludeCountries: []string{"Russia"},
		},
		SpeedTestConf: types.SpeedTestConf{
			URL:           DefaultSpeedTestURL,
			ExpectedSize:  5242880,
			MinThroughput: 100000,
			MinFraction:   0.1,
			Timeout:       5 * time.Second,
			MaxKept:       5,
			ProxyScheme:   "http",
		},
		LauncherConf: types.LauncherConf{
			ListFile:    DefaultListFile,
			Tool:        "yt-dlp",
			ToolArgs:    "--color always",
			Challenge:   DefaultChallenge,
			RetryDelay:  time.Second,
			MaxAttempts: 10,
		},
		LogConf: types.LogConf{
			Level: "info",
		},
	}
}

// Load 依次应用默认值、.env、ini 文件和环境变量，最后校验结果。
// 两个文件都是可选的。
func Load(iniPath, envPath string) (*types.Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file '%s': %w", envPath, err)
		}
	}

	cfg := Default()
	if err := LoadIni(cfg, iniPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIni 把 ini 文件映射到已有配置上，文件中缺失的键保留原值。
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); err != nil {
		return err
	}
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", fileName, err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map config file '%s': %w", fileName, err)
	}
	return nil
}

// Validate 检查配置字段的取值范围。
func Validate(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *types.Config) {
	overrideFromEnvString(&cfg.ProxyListURL, "DLPROXY_PROXY_LIST_URL")
	overrideFromEnvString(&cfg.SpeedTestConf.URL, "DLPROXY_SPEEDTEST_URL")
	overrideFromEnvString(&cfg.ProxyScheme, "DLPROXY_PROXY_SCHEME")
	overrideFromEnvString(&cfg.Tool, "DLPROXY_TOOL")
	overrideFromEnvString(&cfg.Level, "DLPROXY_LOG_LEVEL")
	overrideFromEnvInt(&cfg.MaxAttempts, "DLPROXY_MAX_ATTEMPTS")
	overrideFromEnvInt(&cfg.MaxKept, "DLPROXY_MAX_KEPT")
	if v := os.Getenv("DLPROXY_EXCLUDE_COUNTRIES"); v != "" {
		cfg.ExcludeCountries = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
