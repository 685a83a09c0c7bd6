package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"strings"
	"time"

	"dlproxy/internal/shared/logger"
	"dlproxy/internal/shared/types"
	"dlproxy/proxypool/model"
	"dlproxy/proxypool/storage"
)

var (
	// ErrNoProxies 表示持久化列表为空或不存在。
	ErrNoProxies = errors.New("no proxies available, please run the update command first")
	// ErrAttemptsExhausted 表示每次尝试都遇到了登录验证。
	ErrAttemptsExhausted = errors.New("every attempt hit the sign-in challenge")
)

// Runner 执行一次外部工具调用，stdout 与 stderr 都写入 out。
// 返回值只反映进程能否启动或是否被取消，退出码不作为错误。
type Runner interface {
	Run(ctx context.Context, name string, args []string, out io.Writer) error
}

// ExecRunner runs the tool as a real subprocess.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = out
	cmd.Stderr = out
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// Launcher 用随机挑选的代理调用外部下载工具，遇到登录验证时换一个代理重试。
type Launcher struct {
	cfg     types.LauncherConf
	scheme  string
	storage storage.Storage
	runner  Runner
	console io.Writer
	tempDir string
	pick    func(n int) int
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a launcher that tees tool output to console.
func New(cfg types.LauncherConf, scheme string, st storage.Storage, runner Runner, console io.Writer) *Launcher {
	if console == nil {
		console = io.Discard
	}
	return &Launcher{
		cfg:     cfg,
		scheme:  scheme,
		storage: st,
		runner:  runner,
		console: console,
		pick:    rand.IntN,
		sleep:   sleepCtx,
	}
}

// Run 加载代理列表并循环尝试，直到输出中不再出现登录验证字样。
func (l *Launcher) Run(ctx context.Context, args []string) error {
	log := logger.WithComponent("Launcher")

	proxies, err := l.storage.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load proxy list.")
		return ErrNoProxies
	}
	if len(proxies) == 0 {
		return ErrNoProxies
	}

	for attempt := 1; l.cfg.MaxAttempts == 0 || attempt <= l.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := proxies[l.pick(len(proxies))]
		log.Info().Int("attempt", attempt).Str("city", p.City).Str("country", p.Country).
			Msgf("Using proxy from %s, %s", p.City, p.Country)

		challenged, err := l.attempt(ctx, p, args)
		if err != nil {
			return err
		}
		if !challenged {
			return nil
		}

		log.Warn().Int("attempt", attempt).Str("challenge", l.cfg.Challenge).
			Msg("Got sign-in challenge. Trying again with another proxy...")
		if err := l.sleep(ctx, l.cfg.RetryDelay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w (%d attempts)", ErrAttemptsExhausted, l.cfg.MaxAttempts)
}

// attempt 运行一次外部工具，输出同时写到控制台和临时日志文件。
// 临时文件在返回前一定会被删除。
func (l *Launcher) attempt(ctx context.Context, p *model.ScoredProxy, args []string) (bool, error) {
	tmp, err := os.CreateTemp(l.tempDir, "dlproxy-*.log")
	if err != nil {
		return false, fmt.Errorf("failed to create temporary log: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	runErr := l.runner.Run(ctx, l.cfg.Tool, l.buildArgs(p, args), io.MultiWriter(l.console, tmp))
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("failed to run %s: %w", l.cfg.Tool, runErr)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("failed to rewind temporary log: %w", err)
	}
	output, err := io.ReadAll(tmp)
	if err != nil {
		return false, fmt.Errorf("failed to read temporary log: %w", err)
	}
	return bytes.Contains(output, []byte(l.cfg.Challenge)), nil
}

// buildArgs 组装 "<tool_args> --proxy <conn> <caller args>"。
func (l *Launcher) buildArgs(p *model.ScoredProxy, args []string) []string {
	out := strings.Fields(l.cfg.ToolArgs)
	out = append(out, "--proxy", ProxyArgument(&p.ProxyInfo, l.scheme))
	return append(out, args...)
}

// ProxyArgument 返回传给 --proxy 的值。HTTP 代理不带 scheme 前缀。
func ProxyArgument(p *model.ProxyInfo, scheme string) string {
	if scheme == "" || scheme == "http" {
		return p.ConnectionString()
	}
	return scheme + "://" + p.ConnectionString()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
