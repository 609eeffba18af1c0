package tradeapi

import (
	"context"
	"sync"

	"github.com/betbot/botdash/internal/domain"
)

// MockClient is a scripted trading-service client for testing
type MockClient struct {
	mu sync.Mutex

	// Response data
	Trades   []domain.TradeRecord
	Strategy domain.StrategyDescriptor
	// SetReply overrides the POST /strategy reply; nil echoes "<strategy>+<decorator>"
	SetReply *domain.StrategyDescriptor

	// Call tracking
	Calls     map[string]int
	Submitted []domain.Selection

	// Error injection: ErrorOnNext fires once, FailWith until cleared
	ErrorOnNext map[string]error
	FailWith    map[string]error

	// Gates block a call until a value is received or ctx is done
	Gates map[string]chan struct{}
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		Strategy:    domain.StrategyDescriptor{Name: "Default (Hold)"},
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		FailWith:    make(map[string]error),
		Gates:       make(map[string]chan struct{}),
	}
}

func (m *MockClient) trackCall(ctx context.Context, op string) error {
	m.mu.Lock()
	m.Calls[op]++
	gate := m.Gates[op]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &Error{Op: op, Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ErrorOnNext[op]; ok {
		delete(m.ErrorOnNext, op)
		return err
	}
	if err, ok := m.FailWith[op]; ok {
		return err
	}
	return nil
}

// CallCount returns how many times op has been called
func (m *MockClient) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

// SetTrades replaces the trade tape
func (m *MockClient) SetTrades(trades []domain.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append([]domain.TradeRecord(nil), trades...)
}

// SetStrategyName replaces the active strategy name
func (m *MockClient) SetStrategyName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Strategy = domain.StrategyDescriptor{Name: name}
}

// Fail makes every call to op fail with err; nil clears it
func (m *MockClient) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.FailWith, op)
		return
	}
	m.FailWith[op] = err
}

// Gate installs a blocking gate for op and returns it
func (m *MockClient) Gate(op string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.Gates[op] = ch
	return ch
}

// Ungate removes the gate for op
func (m *MockClient) Ungate(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Gates, op)
}

func (m *MockClient) ListTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	if err := m.trackCall(ctx, OpListTrades); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TradeRecord(nil), m.Trades...), nil
}

func (m *MockClient) GetStrategy(ctx context.Context) (domain.StrategyDescriptor, error) {
	if err := m.trackCall(ctx, OpGetStrategy); err != nil {
		return domain.StrategyDescriptor{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Strategy, nil
}

func (m *MockClient) SetStrategy(ctx context.Context, sel domain.Selection) (domain.StrategyDescriptor, error) {
	if err := m.trackCall(ctx, OpSetStrategy); err != nil {
		return domain.StrategyDescriptor{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, sel)
	if m.SetReply != nil {
		m.Strategy = *m.SetReply
		return *m.SetReply, nil
	}
	m.Strategy = domain.StrategyDescriptor{Name: string(sel.Strategy) + "+" + string(sel.Decorator)}
	return m.Strategy, nil
}
