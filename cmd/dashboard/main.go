package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/internal/engine"
	"github.com/betbot/botdash/internal/history"
	"github.com/betbot/botdash/internal/metrics"
	"github.com/betbot/botdash/internal/portfolio"
	"github.com/betbot/botdash/internal/state"
	"github.com/betbot/botdash/internal/tradeapi"
	"github.com/betbot/botdash/pkg/config"
	"github.com/betbot/botdash/pkg/logger"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/betbot/botdash/pkg/shutdown"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .toml, .json）")
	apiURL := flag.String("api", "", "交易服务地址，覆盖 api.base_url（例如 http://localhost:8081/api）")
	headless := flag.Bool("headless", false, "不启动终端界面，只输出日志")
	flag.Parse()

	if err := run(*configPath, *apiURL, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "botdash: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, apiURL string, headless bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if headless || !dashboard.IsTerminal() {
		cfg.UI.Headless = true
	}

	// 终端界面占用 stdout，此时日志只写文件；无界面时日志就是输出
	console := cfg.UI.Headless
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Console:    console,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"api":               cfg.API.BaseURL,
		"trade_interval":    cfg.Poll.TradeInterval,
		"strategy_interval": cfg.Poll.StrategyInterval,
		"headless":          cfg.UI.Headless,
		"log_file":          logger.GetCurrentLogFile(),
	}).Info("botdash 启动")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 逆序关闭：日志最先注册，最后关闭
	sd := shutdown.NewManager()
	sd.OnShutdown("logger", func(context.Context) { _ = logger.Close() })

	if cfg.MetricsListen != "" {
		srv, err := metrics.StartAsync(ctx, cfg.MetricsListen)
		if err != nil {
			return fmt.Errorf("启动 metrics 服务失败: %w", err)
		}
		sd.OnShutdown("metrics", func(ctx context.Context) { _ = srv.Shutdown(ctx) })
	}

	client := tradeapi.New(cfg.API.BaseURL, sdkhttp.Options{
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
	})
	store := state.NewStore()
	eng := engine.New(client, store,
		portfolio.NewDeriver(cfg.DefaultUSDT),
		history.NewWindow(cfg.HistoryWindow),
		engine.Config{
			TradeInterval:    cfg.Poll.TradeInterval,
			StrategyInterval: cfg.Poll.StrategyInterval,
		})
	ui := dashboard.New(store, eng, dashboard.Options{
		Title:    cfg.UI.Title,
		Headless: cfg.UI.Headless,
	})

	// 界面退出（q / ctrl+c）时取消整组任务
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return ui.Run(gctx)
	})
	runErr := g.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()
	if err := sd.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "botdash: %v\n", err)
	}
	return runErr
}
