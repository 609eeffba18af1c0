package metrics

import "expvar"

var (
	TradePolls              = expvar.NewInt("trade_polls")
	TradePollErrors         = expvar.NewInt("trade_poll_errors")
	StrategyPolls           = expvar.NewInt("strategy_polls")
	StrategyPollErrors      = expvar.NewInt("strategy_poll_errors")
	StrategyPollsSkipped    = expvar.NewInt("strategy_polls_skipped")
	TicksSkippedInflight    = expvar.NewInt("ticks_skipped_inflight")
	StaleResponsesDiscarded = expvar.NewInt("stale_responses_discarded")
	ConfigSubmits           = expvar.NewInt("config_submits")
	ConfigSubmitErrors      = expvar.NewInt("config_submit_errors")

	// 最近一次成交拉取得到的记录数 / 连接状态（1=在线）
	LastTradeCount = expvar.NewInt("last_trade_count")
	Connected      = expvar.NewInt("connected")
)
