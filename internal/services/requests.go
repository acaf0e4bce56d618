package services

import (
	"time"

	"futurescli/internal/options"
	"futurescli/pkg/contracts/domain"
)

// RollSpecRequest asks for the constant-maturity roll schedule of Symbol
// over [Start, End). Definitions are fetched for the symbol's root when
// omitted.
type RollSpecRequest struct {
	Symbol      string                        `json:"symbol" validate:"required,cmsymbol"`
	Start       string                        `json:"start" validate:"required,isodate"`
	End         string                        `json:"end" validate:"required,isodate"`
	MatchRoot   bool                          `json:"match_root,omitempty"`
	Definitions []domain.InstrumentDefinition `json:"definitions,omitempty"`
}

// RollSpecResult is a roll schedule and the instruments it references.
type RollSpecResult struct {
	Symbol      string              `json:"symbol"`
	Windows     []domain.RollWindow `json:"windows"`
	Instruments []uint32            `json:"instruments"`
}

// ContinuousRequest asks for a back-adjusted continuous series. Symbol is a
// Databento continuous symbol such as "ES.v.0"; its roll segments and the
// prices of the instruments involved are fetched when omitted.
type ContinuousRequest struct {
	Symbol         string               `json:"symbol" validate:"required_without=Segments"`
	Start          string               `json:"start" validate:"required,isodate"`
	End            string               `json:"end" validate:"required,isodate"`
	Schema         string               `json:"schema,omitempty" validate:"omitempty,oneof=ohlcv-1d ohlcv-1h ohlcv-1m"`
	AdjustBy       string               `json:"adjust_by,omitempty"`
	AdjustmentCols []string             `json:"adjustment_cols,omitempty"`
	Segments       []domain.RollSegment `json:"segments,omitempty" validate:"omitempty,dive"`
	Frame          *domain.Frame        `json:"frame,omitempty"`
}

// ContinuousResult is a spliced series and the segments it followed.
type ContinuousResult struct {
	Symbol   string               `json:"symbol"`
	Method   string               `json:"method"`
	Segments []domain.RollSegment `json:"segments"`
	Frame    domain.Frame         `json:"frame"`
}

// ConstantMaturityRequest asks for a blended constant-maturity series.
// Windows, definitions and prices are each derived or fetched when omitted.
type ConstantMaturityRequest struct {
	Symbol      string                        `json:"symbol" validate:"required,cmsymbol"`
	Start       string                        `json:"start" validate:"required,isodate"`
	End         string                        `json:"end" validate:"required,isodate"`
	Schema      string                        `json:"schema,omitempty" validate:"omitempty,oneof=ohlcv-1d ohlcv-1h ohlcv-1m"`
	Column      string                        `json:"column,omitempty"`
	MatchRoot   bool                          `json:"match_root,omitempty"`
	Definitions []domain.InstrumentDefinition `json:"definitions,omitempty"`
	Windows     []domain.RollWindow           `json:"windows,omitempty"`
	Prices      []domain.ContractPrice        `json:"prices,omitempty"`
}

// ConstantMaturityResult is the blended series with its schedule.
type ConstantMaturityResult struct {
	Symbol  string                         `json:"symbol"`
	Windows []domain.RollWindow            `json:"windows"`
	Points  []domain.ConstantMaturityPoint `json:"points"`
}

// BarsRequest aggregates trades into OHLCV bars. Trades of Symbols over
// [Start, End) are fetched when none are supplied.
type BarsRequest struct {
	Interval string         `json:"interval,omitempty" validate:"omitempty,interval"`
	Symbols  []string       `json:"symbols,omitempty" validate:"required_without=Trades"`
	Start    string         `json:"start,omitempty" validate:"omitempty,isodate"`
	End      string         `json:"end,omitempty" validate:"omitempty,isodate"`
	Trades   []domain.Trade `json:"trades,omitempty" validate:"omitempty,dive"`
}

// BarsResult holds the bars and the interval actually used.
type BarsResult struct {
	Interval string       `json:"interval"`
	Bars     []domain.Bar `json:"bars"`
}

// LegsRequest asks for the futures legs of Parent (e.g. "SR3.FUT") on Date
// with their official statistics.
type LegsRequest struct {
	Parent string `json:"parent" validate:"required"`
	Date   string `json:"date" validate:"required,isodate"`
}

// Pricing models.
const (
	ModelBlack76      = "black76"
	ModelBlackScholes = "black_scholes"
	ModelAmerican     = "american"
	ModelEuropean     = "european"
)

// OptionPriceRequest prices one option. Underlying is the futures price
// for black76 and american, the spot for black_scholes.
type OptionPriceRequest struct {
	Model      string   `json:"model" validate:"required,oneof=black76 black_scholes american"`
	OptionType string   `json:"option_type" validate:"required,oneof=C P c p call put Call Put"`
	Underlying float64  `json:"underlying_price" validate:"gt=0"`
	Strike     float64  `json:"strike_price" validate:"gt=0"`
	Years      float64  `json:"years_to_expiration" validate:"gt=0"`
	Vol        float64  `json:"vol" validate:"gt=0"`
	Rate       *float64 `json:"interest_rate,omitempty"`
	Yield      float64  `json:"dividend_yield,omitempty"`
}

// OptionPriceResult is a price with the sensitivities the model offers.
// Theta is per year for american and per day for black76.
type OptionPriceResult struct {
	Model string   `json:"model"`
	Price float64  `json:"price"`
	Delta *float64 `json:"delta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
}

// ImpliedVolRequest implies the vol that reproduces Price.
type ImpliedVolRequest struct {
	Model      string   `json:"model" validate:"required,oneof=european american"`
	OptionType string   `json:"option_type" validate:"required,oneof=C P c p call put Call Put"`
	Price      float64  `json:"price" validate:"gt=0"`
	Underlying float64  `json:"underlying_price" validate:"gt=0"`
	Strike     float64  `json:"strike_price" validate:"gt=0"`
	Years      float64  `json:"years_to_expiration" validate:"gt=0"`
	Rate       *float64 `json:"interest_rate,omitempty"`
}

// ImpliedVolResult carries a nil Vol when no vol reproduces the price.
type ImpliedVolResult struct {
	Model  string         `json:"model"`
	Vol    *float64       `json:"vol"`
	Inputs options.Inputs `json:"inputs"`
}

// Smile fits.
const (
	FitPolynomial = "polynomial"
	FitPiecewise  = "piecewise"
	FitSpline     = "spline"
	FitSVI        = "svi"
	FitDensity    = "density"
)

// SmileRequest fits volatility smiles to a chain. Rows are used as given;
// without rows the chain of Parent as of At is fetched and its vols
// implied from top-of-book quotes.
type SmileRequest struct {
	Fits       []string         `json:"fits" validate:"required,min=1,dive,oneof=polynomial piecewise spline svi density"`
	VolColumn  string           `json:"vol_column,omitempty" validate:"omitempty,oneof=iv_bid iv_midprice iv_ask iv_weighted_midprice european_vol"`
	Degree     int              `json:"degree,omitempty" validate:"omitempty,min=1,max=8"`
	OTMOnly    bool             `json:"otm_only,omitempty"`
	GridPoints int              `json:"grid_points,omitempty" validate:"omitempty,min=2,max=1000"`
	Rows       []options.VolRow `json:"rows,omitempty"`

	Parent      string    `json:"parent,omitempty" validate:"required_without=Rows"`
	Underlying  string    `json:"underlying,omitempty" validate:"required_with=Parent"`
	At          time.Time `json:"at,omitempty"`
	QuoteWindow string    `json:"quote_window,omitempty" validate:"omitempty,interval"`
}

// SmilePoint is one point of a fitted curve.
type SmilePoint struct {
	Strike float64 `json:"strike"`
	Value  float64 `json:"value"`
}

// SmileCurve is one fitted curve. Value is implied vol, except for the
// density fit where it is the risk-neutral density.
type SmileCurve struct {
	Fit    string       `json:"fit"`
	Params any          `json:"params,omitempty"`
	Points []SmilePoint `json:"points"`
}

// SmileResult holds the observed points and the fitted curves.
type SmileResult struct {
	Underlying float64      `json:"underlying_price"`
	Observed   []SmilePoint `json:"observed"`
	Curves     []SmileCurve `json:"curves"`
}

// SessionResult describes the CME session clock at At.
type SessionResult struct {
	At               time.Time     `json:"at"`
	Chicago          time.Time     `json:"chicago"`
	BusinessDay      bool          `json:"business_day"`
	SessionEnd       time.Time     `json:"session_end"`
	NextSessionEnd   time.Time     `json:"next_session_end"`
	NextBusinessDays []domain.Date `json:"next_business_days"`
}
