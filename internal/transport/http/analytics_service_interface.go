package http

import (
	"context"
	"time"

	"futurescli/internal/marketdata"
	"futurescli/internal/services"
)

// AnalyticsService defines the analytics operations served over HTTP.
type AnalyticsService interface {
	RollSpec(ctx context.Context, req services.RollSpecRequest) (*services.RollSpecResult, error)
	Continuous(ctx context.Context, method string, req services.ContinuousRequest) (*services.ContinuousResult, error)
	ConstantMaturity(ctx context.Context, req services.ConstantMaturityRequest) (*services.ConstantMaturityResult, error)
	Bars(ctx context.Context, req services.BarsRequest) (*services.BarsResult, error)
	Legs(ctx context.Context, req services.LegsRequest) (*marketdata.Legs, error)

	// Options
	PriceOption(ctx context.Context, req services.OptionPriceRequest) (*services.OptionPriceResult, error)
	ImpliedVol(ctx context.Context, req services.ImpliedVolRequest) (*services.ImpliedVolResult, error)
	Smile(ctx context.Context, req services.SmileRequest) (*services.SmileResult, error)

	Session(ctx context.Context, at time.Time, days int) services.SessionResult
}

var _ AnalyticsService = (*services.AnalyticsService)(nil)
