package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dlproxy/internal/launcher"
	"dlproxy/internal/shared/logger"
	"dlproxy/internal/shared/types"
	"dlproxy/proxypool"
	"dlproxy/proxypool/scraper"
	"dlproxy/proxypool/storage"
	"dlproxy/proxypool/validator"
)

// App wires the two workflows together. They share nothing but the
// persisted proxy list.
type App struct {
	cfg      *types.Config
	out      io.Writer
	storage  *storage.FileStorage
	manager  *proxypool.Manager
	launcher *launcher.Launcher
}

// New 构建 App。相对路径的 list_file 以 baseDir（通常是可执行文件所在目录）为基准。
func New(cfg *types.Config, baseDir string, out io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}

	listPath := cfg.ListFile
	if !filepath.IsAbs(listPath) {
		listPath = filepath.Join(baseDir, listPath)
	}
	st := storage.NewFileStorage(listPath)

	tester := validator.NewSpeedTester(cfg.SpeedTestConf, out)
	m := proxypool.NewManager(st, validator.NewFilter(cfg.ExcludeCountries), tester, cfg.MaxKept)
	m.AddScraper(scraper.NewJSONScraper(cfg.ProxyListURL))
	for _, u := range cfg.HTMLListURLs {
		m.AddScraper(scraper.NewHTMLTableScraper(u))
	}

	return &App{
		cfg:      cfg,
		out:      out,
		storage:  st,
		manager:  m,
		launcher: launcher.New(cfg.LauncherConf, cfg.ProxyScheme, st, launcher.ExecRunner{}, out),
	}
}

// Update 刷新代理列表。
func (a *App) Update(ctx context.Context) error {
	best, err := a.manager.Refresh(ctx)
	if err != nil {
		return err
	}
	l := logger.WithComponent("App")
	l.Info().Int("kept", len(best)).Str("path", a.storage.Path()).Msg("Proxy list updated.")
	fmt.Fprintln(a.out, "All done.")
	return nil
}

// Launch 通过随机代理运行外部下载工具，args 原样转发。
func (a *App) Launch(ctx context.Context, args []string) error {
	return a.launcher.Run(ctx, args)
}
