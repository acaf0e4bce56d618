package options

import (
	"errors"
	"log/slog"
	"math"

	"futurescli/pkg/contracts/domain"
)

// Search bounds and tolerances for implied volatility.
const (
	EuropeanMinVol = 1e-5
	EuropeanMaxVol = 4.0

	AmericanMinVol         = 1e-4
	AmericanMaxVol         = 4.0
	AmericanAccuracy       = 1e-6
	AmericanMaxEvaluations = 200
)

// Inputs describes one option for implied volatility. Forward is the
// underlying futures price.
type Inputs struct {
	Symbol  string            `json:"symbol,omitempty"`
	Forward float64           `json:"underlying_price"`
	Strike  float64           `json:"strike_price"`
	Years   float64           `json:"years_to_expiration"`
	Rate    float64           `json:"interest_rate"`
	Type    domain.OptionType `json:"option_type"`
}

// VolSolver implies volatilities and logs the quotes it cannot solve.
type VolSolver struct {
	logger *slog.Logger

	MinVol         float64
	MaxVol         float64
	Accuracy       float64
	MaxEvaluations int
}

// NewVolSolver creates a solver with the American search settings.
func NewVolSolver(logger *slog.Logger) *VolSolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &VolSolver{
		logger:         logger,
		MinVol:         AmericanMinVol,
		MaxVol:         AmericanMaxVol,
		Accuracy:       AmericanAccuracy,
		MaxEvaluations: AmericanMaxEvaluations,
	}
}

// European returns the Black-76 vol reproducing price, searched on
// [1e-5, 4]. It returns NaN, after logging why, when the price is outside
// the range the model can reach or the search fails.
func (s *VolSolver) European(price float64, in Inputs) float64 {
	model := func(vol float64) float64 {
		return Black76(in.Forward, in.Strike, in.Years, vol, in.Rate, in.Type)
	}
	f := func(vol float64) float64 { return price - model(vol) }

	root, err := brent(f, EuropeanMinVol, EuropeanMaxVol, 2e-12, 100)
	switch {
	case err == nil:
		return root
	case errors.Is(err, ErrNoBracket):
		s.logger.Warn("cannot find vol in search range",
			"option_type", in.Type,
			"strike", in.Strike,
			"lower_bound", EuropeanMinVol,
			"upper_bound", EuropeanMaxVol,
			"price_at_lower", model(EuropeanMinVol),
			"price_at_upper", model(EuropeanMaxVol),
			"target", price,
			"forward", in.Forward,
			"years", in.Years,
			"rate", in.Rate,
		)
	default:
		s.logger.Warn("could not find sigma", "symbol", in.Symbol, "target", price, "error", err)
	}
	return math.NaN()
}

// American returns the Barone-Adesi-Whaley vol reproducing price, or NaN
// when no vol in [MinVol, MaxVol] does.
func (s *VolSolver) American(price float64, in Inputs) float64 {
	if math.IsNaN(price) {
		return math.NaN()
	}
	f := func(vol float64) float64 {
		return AmericanPrice(in.Forward, in.Strike, in.Years, vol, in.Rate, in.Type) - price
	}
	root, err := brent(f, s.MinVol, s.MaxVol, s.Accuracy, s.MaxEvaluations)
	if err != nil {
		s.logger.Debug("american implied vol failed", "symbol", in.Symbol, "target", price, "error", err)
		return math.NaN()
	}
	return root
}

// ImplyEuropeanVol is VolSolver.European with the default logger.
func ImplyEuropeanVol(price float64, in Inputs) float64 {
	return NewVolSolver(nil).European(price, in)
}

// ImplyAmericanVol is VolSolver.American with default settings.
func ImplyAmericanVol(price float64, in Inputs) float64 {
	return NewVolSolver(nil).American(price, in)
}
