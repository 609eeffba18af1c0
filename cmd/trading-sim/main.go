package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/botdash/internal/simulator"
	"github.com/betbot/botdash/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		listenAddr = flag.String("listen", getenv("TRADING_SIM_LISTEN", ":8081"), "HTTP listen address")
		csvPath    = flag.String("csv", getenv("TRADING_SIM_CSV", ""), "seed tape from a trades.csv file")
		interval   = flag.Duration("interval", 2*time.Second, "tape generator interval (0 disables)")
		symbol     = flag.String("symbol", "BTCUSDT", "symbol written into generated rows")
		maxRows    = flag.Int("max-rows", 500, "maximum rows kept in memory")
		seed       = flag.Int64("seed", 0, "random seed (0 = time based)")
		logLevel   = flag.String("log-level", getenv("TRADING_SIM_LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *logLevel, Console: true}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}

	sim := simulator.New(simulator.Config{Symbol: *symbol, MaxRows: *maxRows, Seed: *seed})
	if *csvPath != "" {
		n, err := sim.LoadCSVFile(*csvPath)
		if err != nil {
			logrus.Fatalf("加载 CSV 失败: %v", err)
		}
		logrus.Infof("已从 %s 加载 %d 条流水", *csvPath, n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("generator", interval.String()).Infof("trading-sim listening on %s", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sim.Run(gctx, *interval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.Errorf("trading-sim stopped with error: %v", err)
		os.Exit(1)
	}
	logrus.Info("trading-sim stopped")
}
