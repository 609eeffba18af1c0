package state

import (
	"testing"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()

	assert.True(t, snap.Connected)
	assert.Equal(t, InitialStrategyLabel, snap.StrategyName)
	assert.Equal(t, domain.DefaultSelection(), snap.Selection)
	assert.False(t, snap.HasPortfolio)
	assert.Empty(t, snap.Trades)
	assert.Nil(t, snap.Notice)
}

func TestApplyTrades_EmptyKeepsPortfolio(t *testing.T) {
	s := NewStore()
	p := domain.PortfolioSnapshot{
		USDTBalance:    decimal.NewFromInt(500),
		BTCBalance:     decimal.NewFromInt(1),
		Price:          decimal.NewFromInt(10),
		PortfolioValue: decimal.NewFromInt(510),
	}
	s.ApplyTrades(TradeUpdate{Portfolio: &p, Trades: []domain.TradeRecord{{Side: domain.SideBuy}}, TotalRecords: 1})
	s.ApplyTrades(TradeUpdate{Portfolio: nil, TotalRecords: 0})

	snap := s.Snapshot()
	require.True(t, snap.HasPortfolio)
	assert.True(t, snap.Portfolio.PortfolioValue.Equal(decimal.NewFromInt(510)))
	assert.Empty(t, snap.Trades)
	assert.Equal(t, 0, snap.TotalRecords)
}

func TestApplyTrades_RestoresConnectivity(t *testing.T) {
	s := NewStore()
	s.SetConnected(false)
	assert.False(t, s.Connected())

	s.ApplyTrades(TradeUpdate{})
	assert.True(t, s.Connected())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore()
	s.ApplyTrades(TradeUpdate{
		Trades: []domain.TradeRecord{{Symbol: "BTCUSDT"}},
		Chart:  domain.ChartSeries{{Label: "a"}},
	})
	s.SetNotice(Notice{Level: NoticeSuccess, Text: "ok"})

	snap := s.Snapshot()
	snap.Trades[0].Symbol = "changed"
	snap.Chart[0].Label = "changed"
	snap.Notice.Text = "changed"

	again := s.Snapshot()
	assert.Equal(t, "BTCUSDT", again.Trades[0].Symbol)
	assert.Equal(t, "a", again.Chart[0].Label)
	assert.Equal(t, "ok", again.Notice.Text)
}

func TestSetConnected_NoopDoesNotBumpVersion(t *testing.T) {
	s := NewStore()
	v := s.Snapshot().Version
	s.SetConnected(true)
	assert.Equal(t, v, s.Snapshot().Version)
	s.SetConnected(false)
	assert.Equal(t, v+1, s.Snapshot().Version)
}

func TestSetStrategy(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.SetStrategy("MACD+HighRisk", nil, now)
	snap := s.Snapshot()
	assert.Equal(t, "MACD+HighRisk", snap.StrategyName)
	assert.Equal(t, domain.DefaultSelection(), snap.Selection)
	assert.Equal(t, now, snap.LastStrategySync)

	sel := domain.Selection{Strategy: domain.StrategyADX, Decorator: domain.DecoratorLowRisk}
	s.SetStrategy("ADX", &sel, now)
	assert.Equal(t, sel, s.Selection())
}

func TestChanged_Coalesces(t *testing.T) {
	s := NewStore()
	s.SetSelection(domain.Selection{Strategy: domain.StrategyRSI, Decorator: domain.DecoratorNone})
	s.SetNotice(Notice{Text: "x"})

	select {
	case <-s.Changed():
	default:
		t.Fatalf("expected change signal")
	}
	select {
	case <-s.Changed():
		t.Fatalf("expected signals to coalesce")
	default:
	}
}

func TestNoticeLevelString(t *testing.T) {
	assert.Equal(t, "info", NoticeInfo.String())
	assert.Equal(t, "success", NoticeSuccess.String())
	assert.Equal(t, "error", NoticeError.String())
}
