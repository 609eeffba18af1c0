package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "metrics")

// Handler 观测路由：
//   - /healthz       与交易服务的连通性（离线时 503）
//   - /debug/vars    expvar 计数器
//   - /debug/pprof/  pprof
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthz)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

type health struct {
	Connected      bool  `json:"connected"`
	LastTradeCount int64 `json:"last_trade_count"`
	TradePolls     int64 `json:"trade_polls"`
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	h := health{
		Connected:      Connected.Value() == 1,
		LastTradeCount: LastTradeCount.Value(),
		TradePolls:     TradePolls.Value(),
	}
	w.Header().Set("Content-Type", "application/json")
	if !h.Connected {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}

// Server 观测服务；Addr 为实际监听地址（":0" 时可据此拿到端口）
type Server struct {
	Addr string
	srv  *http.Server
}

// StartAsync 监听并在后台提供 Handler()，ctx 结束时自动关闭。
// 只应监听 localhost 或内网。
func StartAsync(ctx context.Context, listenAddr string) (*Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Addr: ln.Addr().String(),
		srv: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics 服务异常退出: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics 服务已启动: http://%s/debug/vars", s.Addr)
	return s, nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
