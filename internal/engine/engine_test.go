package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/betbot/botdash/internal/metrics"
	"github.com/betbot/botdash/internal/state"
	"github.com/betbot/botdash/internal/tradeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errDown = errors.New("connection refused")

func sampleTrades() []domain.TradeRecord {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	return []domain.TradeRecord{
		{Time: ts, Symbol: "BTCUSDT", Side: domain.SideBuy, Price: domain.Float(60000), USDT: domain.Float(900), BTC: domain.Float(0.002)},
		{Time: ts.Add(2 * time.Second), Symbol: "BTCUSDT", Side: domain.SideHold, Price: domain.Float(60100)},
		{Time: ts.Add(4 * time.Second), Symbol: "BTCUSDT", Side: domain.SideSell, Price: domain.Float(60200), USDT: domain.Float(960.2), BTC: domain.Float(0.001)},
	}
}

func startEngine(t *testing.T, mock *tradeapi.MockClient, cfg Config) *Engine {
	t.Helper()
	e := New(mock, state.NewStore(), nil, nil, cfg)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e
}

func slow() Config {
	return Config{TradeInterval: time.Hour, StrategyInterval: time.Hour}
}

func TestEngine_InitialPollPopulatesState(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetTrades(sampleTrades())
	mock.SetStrategyName("MACD (12, 26, 9) + HighRisk")
	e := startEngine(t, mock, slow())

	require.Eventually(t, func() bool {
		s := e.Store().Snapshot()
		return s.HasPortfolio && s.StrategyName != state.InitialStrategyLabel
	}, waitFor, tick)

	s := e.Store().Snapshot()
	assert.True(t, s.Connected)
	assert.Equal(t, 3, s.TotalRecords)
	require.Len(t, s.Trades, 2)
	assert.Equal(t, domain.SideSell, s.Trades[0].Side)
	assert.Equal(t, domain.SideBuy, s.Trades[1].Side)
	assert.Len(t, s.Chart, 3)
	assert.Equal(t, "1020.4", s.Portfolio.PortfolioValue.String())

	assert.Equal(t, "MACD (12, 26, 9) + HighRisk", s.StrategyName)
	assert.Equal(t, domain.StrategyMACD, s.Selection.Strategy)
	// 装饰器不由解析器推断
	assert.Equal(t, domain.DecoratorNone, s.Selection.Decorator)
}

func TestEngine_UnknownNameKeepsSelection(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetStrategyName("Unknown Strategy")
	e := startEngine(t, mock, slow())

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "Unknown Strategy"
	}, waitFor, tick)
	assert.Equal(t, domain.DefaultSelection(), e.Store().Selection())
}

func TestEngine_DisconnectSkipsStrategyPolling(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.Fail(tradeapi.OpListTrades, errDown)
	skippedBefore := metrics.StrategyPollsSkipped.Value()

	e := startEngine(t, mock, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool {
		return !e.Store().Connected() && mock.CallCount(tradeapi.OpListTrades) >= 2
	}, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	strategyCalls := mock.CallCount(tradeapi.OpGetStrategy)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, strategyCalls, mock.CallCount(tradeapi.OpGetStrategy))
	assert.False(t, e.Store().Connected())
	assert.Greater(t, metrics.StrategyPollsSkipped.Value(), skippedBefore)

	mock.Fail(tradeapi.OpListTrades, nil)
	require.Eventually(t, func() bool {
		return e.Store().Connected() && mock.CallCount(tradeapi.OpGetStrategy) > strategyCalls
	}, waitFor, tick)
}

func TestEngine_FailedFetchKeepsStaleData(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetTrades(sampleTrades())
	e := startEngine(t, mock, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: time.Hour})

	require.Eventually(t, func() bool { return e.Store().Snapshot().HasPortfolio }, waitFor, tick)
	before := e.Store().Snapshot()

	mock.Fail(tradeapi.OpListTrades, errDown)
	require.Eventually(t, func() bool { return !e.Store().Connected() }, waitFor, tick)

	after := e.Store().Snapshot()
	assert.Equal(t, before.Portfolio, after.Portfolio)
	assert.Equal(t, before.Chart, after.Chart)
	assert.Equal(t, before.Trades, after.Trades)
	assert.Equal(t, before.TotalRecords, after.TotalRecords)
}

func TestEngine_EmptySequenceKeepsMetrics(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetTrades(sampleTrades())
	e := startEngine(t, mock, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: time.Hour})

	require.Eventually(t, func() bool { return e.Store().Snapshot().HasPortfolio }, waitFor, tick)
	before := e.Store().Snapshot().Portfolio

	mock.SetTrades(nil)
	require.Eventually(t, func() bool { return e.Store().Snapshot().TotalRecords == 0 }, waitFor, tick)

	s := e.Store().Snapshot()
	assert.Equal(t, before, s.Portfolio)
	assert.True(t, s.HasPortfolio)
	assert.Empty(t, s.Trades)
	assert.Empty(t, s.Chart)
}

func TestEngine_RepeatedPollIsIdempotent(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetTrades(sampleTrades())
	e := startEngine(t, mock, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: time.Hour})

	require.Eventually(t, func() bool { return e.Store().Snapshot().HasPortfolio }, waitFor, tick)
	first := e.Store().Snapshot()
	require.Eventually(t, func() bool {
		return e.Store().Snapshot().LastTradeSync.After(first.LastTradeSync)
	}, waitFor, tick)
	second := e.Store().Snapshot()

	assert.Equal(t, first.Portfolio, second.Portfolio)
	assert.Equal(t, first.Chart, second.Chart)
	assert.Equal(t, first.Trades, second.Trades)
}

func TestEngine_SubmitOverwritesLabelOnly(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetReply = &domain.StrategyDescriptor{Name: "MACD+HighRisk"}
	e := startEngine(t, mock, slow())

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "Default (Hold)"
	}, waitFor, tick)

	chosen := domain.Selection{Strategy: domain.StrategyRSI, Decorator: domain.DecoratorLowRisk}
	e.SetSelection(chosen)
	e.Submit(chosen)

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "MACD+HighRisk"
	}, waitFor, tick)

	s := e.Store().Snapshot()
	assert.Equal(t, chosen, s.Selection)
	require.NotNil(t, s.Notice)
	assert.Equal(t, state.NoticeSuccess, s.Notice.Level)
	assert.Contains(t, s.Notice.Text, "MACD+HighRisk")
	assert.Equal(t, 1, mock.CallCount(tradeapi.OpSetStrategy))
	assert.Equal(t, []domain.Selection{chosen}, mock.Submitted)
}

func TestEngine_SubmitFailureOnlyNotifies(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.Fail(tradeapi.OpSetStrategy, errDown)
	errorsBefore := metrics.ConfigSubmitErrors.Value()
	e := startEngine(t, mock, slow())

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "Default (Hold)"
	}, waitFor, tick)
	before := e.Store().Snapshot()

	e.Submit(domain.Selection{Strategy: domain.StrategyADX, Decorator: domain.DecoratorHighRisk})
	require.Eventually(t, func() bool { return e.Store().Snapshot().Notice != nil }, waitFor, tick)

	s := e.Store().Snapshot()
	assert.Equal(t, state.NoticeError, s.Notice.Level)
	assert.Equal(t, before.StrategyName, s.StrategyName)
	assert.Equal(t, before.Selection, s.Selection)
	assert.Equal(t, errorsBefore+1, metrics.ConfigSubmitErrors.Value())
}

func TestEngine_InflightTickIsSkipped(t *testing.T) {
	mock := tradeapi.NewMockClient()
	gate := mock.Gate(tradeapi.OpListTrades)
	skippedBefore := metrics.TicksSkippedInflight.Value()

	startEngine(t, mock, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: time.Hour})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, mock.CallCount(tradeapi.OpListTrades))
	assert.Greater(t, metrics.TicksSkippedInflight.Value(), skippedBefore)

	mock.Ungate(tradeapi.OpListTrades)
	gate <- struct{}{}
	require.Eventually(t, func() bool {
		return mock.CallCount(tradeapi.OpListTrades) > 1
	}, waitFor, tick)
}

func TestEngine_StaleStrategyReplyDiscarded(t *testing.T) {
	mock := tradeapi.NewMockClient()
	gate := mock.Gate(tradeapi.OpGetStrategy)
	mock.SetReply = &domain.StrategyDescriptor{Name: "MACD+HighRisk"}
	staleBefore := metrics.StaleResponsesDiscarded.Value()
	e := startEngine(t, mock, slow())

	require.Eventually(t, func() bool { return mock.CallCount(tradeapi.OpGetStrategy) == 1 }, waitFor, tick)

	e.Submit(domain.Selection{Strategy: domain.StrategyMACD, Decorator: domain.DecoratorHighRisk})
	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "MACD+HighRisk"
	}, waitFor, tick)

	// 先发出的 GET 晚到，带回旧名字
	mock.SetStrategyName("ADX Strategy (Simplified)")
	gate <- struct{}{}

	require.Eventually(t, func() bool {
		return metrics.StaleResponsesDiscarded.Value() > staleBefore
	}, waitFor, tick)
	s := e.Store().Snapshot()
	assert.Equal(t, "MACD+HighRisk", s.StrategyName)
	assert.Equal(t, domain.DefaultSelection(), s.Selection)
}

func TestEngine_SubmitReplyWinsOverOverlappingPoll(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetReply = &domain.StrategyDescriptor{Name: "MACD+HighRisk"}
	postGate := mock.Gate(tradeapi.OpSetStrategy)
	staleBefore := metrics.StaleResponsesDiscarded.Value()
	e := startEngine(t, mock, Config{TradeInterval: time.Hour, StrategyInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().StrategyName == "Default (Hold)"
	}, waitFor, tick)

	e.Submit(domain.Selection{Strategy: domain.StrategyMACD, Decorator: domain.DecoratorHighRisk})
	require.Eventually(t, func() bool { return mock.CallCount(tradeapi.OpSetStrategy) == 1 }, waitFor, tick)

	// 提交在途时服务端仍返回旧名字，这些查询结果不能生效
	gets := mock.CallCount(tradeapi.OpGetStrategy)
	require.Eventually(t, func() bool {
		return mock.CallCount(tradeapi.OpGetStrategy) >= gets+2 && metrics.StaleResponsesDiscarded.Value() > staleBefore
	}, waitFor, tick)
	mock.Gate(tradeapi.OpGetStrategy)
	time.Sleep(30 * time.Millisecond)

	postGate <- struct{}{}
	require.Eventually(t, func() bool {
		n := e.Store().Snapshot().Notice
		return n != nil && n.Level == state.NoticeSuccess
	}, waitFor, tick)

	s := e.Store().Snapshot()
	assert.Equal(t, "MACD+HighRisk", s.StrategyName)
	assert.Equal(t, "Strategy updated: MACD+HighRisk", s.Notice.Text)
}

func TestEngine_PollAfterSubmitAppliesAgain(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.SetReply = &domain.StrategyDescriptor{Name: "MACD+HighRisk"}
	e := startEngine(t, mock, Config{TradeInterval: time.Hour, StrategyInterval: 10 * time.Millisecond})

	e.Submit(domain.Selection{Strategy: domain.StrategyMACD, Decorator: domain.DecoratorHighRisk})
	require.Eventually(t, func() bool {
		return e.Store().Snapshot().Notice != nil
	}, waitFor, tick)

	// 提交完成后发出的查询照常生效
	mock.SetStrategyName("RSI Strategy (14) + LowRisk")
	require.Eventually(t, func() bool {
		s := e.Store().Snapshot()
		return s.StrategyName == "RSI Strategy (14) + LowRisk" && s.Selection.Strategy == domain.StrategyRSI
	}, waitFor, tick)
}

func TestEngine_StopCancelsInflight(t *testing.T) {
	mock := tradeapi.NewMockClient()
	mock.Gate(tradeapi.OpListTrades)
	e := New(mock, state.NewStore(), nil, nil, Config{TradeInterval: 10 * time.Millisecond, StrategyInterval: 10 * time.Millisecond})
	e.Start(context.Background())

	require.Eventually(t, func() bool { return mock.CallCount(tradeapi.OpListTrades) == 1 }, waitFor, tick)

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatalf("Stop did not return")
	}

	version := e.Store().Snapshot().Version
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, version, e.Store().Snapshot().Version)

	// 停止后的操作不会阻塞
	e.Submit(domain.DefaultSelection())
	e.SetSelection(domain.DefaultSelection())
}

func TestEngine_RunReturnsOnContextCancel(t *testing.T) {
	mock := tradeapi.NewMockClient()
	e := New(mock, state.NewStore(), nil, nil, slow())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return mock.CallCount(tradeapi.OpListTrades) == 1 }, waitFor, tick)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("Run did not return after cancel")
	}
	<-e.Done()
}

func TestConfig_Defaults(t *testing.T) {
	e := New(tradeapi.NewMockClient(), state.NewStore(), nil, nil, Config{})
	if e.cfg.TradeInterval != DefaultTradeInterval || e.cfg.StrategyInterval != DefaultStrategyInterval {
		t.Fatalf("unexpected defaults: %+v", e.cfg)
	}
}
