package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dlproxy/internal/app"
	"dlproxy/internal/launcher"
	"dlproxy/internal/shared/config"
	"dlproxy/internal/shared/logger"
)

const usage = `usage: dlproxy update | <yt-dlp args>
Starts yt-dlp through the best free proxy.

Commands:
  update   Update best proxy list
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Print(usage)
		return 0
	}

	baseDir := executableDir()
	iniPath := filepath.Join(baseDir, "dlproxy.ini")
	if p := os.Getenv("DLPROXY_CONFIG"); p != "" {
		iniPath = p
	}

	// 1. 加载配置
	cfg, err := config.Load(iniPath, filepath.Join(baseDir, ".env"))
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config: %v\n", err)
		return 1
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 分发命令
	a := app.New(cfg, baseDir, os.Stdout)
	if args[0] == "update" {
		err = a.Update(ctx)
	} else {
		err = a.Launch(ctx, args)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Println("Canceled by user")
		return 0
	case errors.Is(err, launcher.ErrNoProxies):
		fmt.Println("No proxies available. Please run the update command first.")
		return 1
	default:
		logger.Error().Err(err).Msg("Command failed.")
		return 1
	}
}

// executableDir 返回可执行文件所在目录，失败时退回当前目录。
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
