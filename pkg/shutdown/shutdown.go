// Package shutdown 进程退出时的清理顺序。
package shutdown

import (
	"context"
	"fmt"
	"sync"

	"github.com/betbot/botdash/pkg/logger"
)

// Handler 关闭处理函数，应在 ctx 结束前返回
type Handler func(ctx context.Context)

type step struct {
	name string
	fn   Handler
}

// Manager 按注册逆序执行清理：后注册的先关闭（与 defer 相同），
// 所以日志这类被其它步骤依赖的资源应当最先注册。
type Manager struct {
	mu    sync.Mutex
	steps []step
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	m.steps = append(m.steps, step{name: name, fn: handler})
	m.mu.Unlock()
}

// TimeoutError 某个回调在 ctx 结束前没有返回
type TimeoutError struct {
	Stuck   string
	Skipped []string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("shutdown: %q did not finish (%v), skipped %v", e.Stuck, e.Err, e.Skipped)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Shutdown 依次执行回调（阻塞调用）。ctx 到期时放弃剩余回调并返回 *TimeoutError。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.fn(ctx)
		}()

		select {
		case <-done:
			logger.Debugf("关闭回调完成: %s", s.name)
		case <-ctx.Done():
			skipped := make([]string, 0, i)
			for j := i - 1; j >= 0; j-- {
				skipped = append(skipped, steps[j].name)
			}
			logger.Warnf("关闭超时: %s (%v)", s.name, ctx.Err())
			return &TimeoutError{Stuck: s.name, Skipped: skipped, Err: ctx.Err()}
		}
	}
	return nil
}
