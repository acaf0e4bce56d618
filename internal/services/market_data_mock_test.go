package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"futurescli/internal/marketdata"
	"futurescli/internal/options"
	"futurescli/pkg/contracts/domain"
)

// MockMarketData is a mock for the MarketData interface
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) Definitions(ctx context.Context, symbols []string, stype string, start, end time.Time) ([]domain.InstrumentDefinition, error) {
	args := m.Called(ctx, symbols, stype, start, end)
	defs, _ := args.Get(0).([]domain.InstrumentDefinition)
	return defs, args.Error(1)
}

func (m *MockMarketData) ResolveSymbology(ctx context.Context, req marketdata.SymbologyRequest) (map[string][]domain.RollSegment, error) {
	args := m.Called(ctx, req)
	segs, _ := args.Get(0).(map[string][]domain.RollSegment)
	return segs, args.Error(1)
}

func (m *MockMarketData) Frame(ctx context.Context, schema string, symbols []string, stype string, start, end time.Time, columns []string) (domain.Frame, error) {
	args := m.Called(ctx, schema, symbols, stype, start, end, columns)
	return args.Get(0).(domain.Frame), args.Error(1)
}

func (m *MockMarketData) Trades(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Trade, error) {
	args := m.Called(ctx, symbols, start, end)
	trades, _ := args.Get(0).([]domain.Trade)
	return trades, args.Error(1)
}

func (m *MockMarketData) LegsOn(ctx context.Context, date domain.Date, parent string) (marketdata.Legs, error) {
	args := m.Called(ctx, date, parent)
	return args.Get(0).(marketdata.Legs), args.Error(1)
}

func (m *MockMarketData) OptionsChain(ctx context.Context, parent string, start time.Time, underlying string, classes []domain.InstrumentClass, daysPerYear float64) ([]options.Contract, error) {
	args := m.Called(ctx, parent, start, underlying, classes, daysPerYear)
	chain, _ := args.Get(0).([]options.Contract)
	return chain, args.Error(1)
}

func (m *MockMarketData) TopOfBook(ctx context.Context, symbols []string, start, end time.Time) (map[string]domain.Quote, error) {
	args := m.Called(ctx, symbols, start, end)
	quotes, _ := args.Get(0).(map[string]domain.Quote)
	return quotes, args.Error(1)
}
