package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"futurescli/internal/bars"
	apierrors "futurescli/internal/errors"
	"futurescli/internal/options"
	"futurescli/internal/skew"
	"futurescli/pkg/contracts/domain"
)

// Smile defaults.
const (
	DefaultSmileDegree = 2
	DefaultGridPoints  = 50
	DefaultVolColumn   = "iv_midprice"
	DefaultQuoteWindow = 10 * time.Minute
)

func (s *AnalyticsService) rate(r *float64) float64 {
	if r != nil {
		return *r
	}
	return s.cfg.RiskFreeRate
}

// finite returns nil for values JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// PriceOption prices one option with the requested model.
func (s *AnalyticsService) PriceOption(ctx context.Context, req OptionPriceRequest) (*OptionPriceResult, error) {
	op := s.begin(ctx, "option_price", attribute.String("model", req.Model))
	res, err := s.priceOption(req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(1, nil)
}

func (s *AnalyticsService) priceOption(req OptionPriceRequest) (*OptionPriceResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	typ, err := domain.ParseOptionType(req.OptionType)
	if err != nil {
		return nil, apierrors.NewAppValidationError("invalid option type", err)
	}
	rate := s.rate(req.Rate)
	f, k, t, vol := req.Underlying, req.Strike, req.Years, req.Vol

	res := &OptionPriceResult{Model: req.Model}
	switch req.Model {
	case ModelBlack76:
		res.Price = options.Black76(f, k, t, vol, rate, typ)
		res.Theta = finite(options.Black76OneDayTheta(f, k, t, vol, rate, typ, 1/s.cfg.DaysPerYear))
	case ModelBlackScholes:
		res.Price = options.BlackScholes(f, k, t, vol, rate, req.Yield, typ)
		res.Rho = finite(options.BlackScholesNumericalRho(f, k, t, vol, rate, req.Yield, typ, options.DefaultRateBump))
	case ModelAmerican:
		g := options.AmericanGreeks(f, k, t, vol, rate, typ)
		res.Price = g.Price
		res.Delta = finite(g.Delta)
		res.Vega = finite(g.Vega)
		res.Theta = finite(g.Theta)
		res.Rho = finite(g.Rho)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}

	if finite(res.Price) == nil {
		return nil, fmt.Errorf("%s price is undefined for these inputs: %w", req.Model, ErrNoData)
	}
	return res, nil
}

// ImpliedVol finds the vol reproducing req.Price. A price no vol in the
// search range reaches yields a nil Vol rather than an error.
func (s *AnalyticsService) ImpliedVol(ctx context.Context, req ImpliedVolRequest) (*ImpliedVolResult, error) {
	op := s.begin(ctx, "implied_vol", attribute.String("model", req.Model))
	res, err := s.impliedVol(req)
	if err != nil {
		return nil, op.end(0, err)
	}
	rows := 0
	if res.Vol != nil {
		rows = 1
	}
	return res, op.end(rows, nil)
}

func (s *AnalyticsService) impliedVol(req ImpliedVolRequest) (*ImpliedVolResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	typ, err := domain.ParseOptionType(req.OptionType)
	if err != nil {
		return nil, apierrors.NewAppValidationError("invalid option type", err)
	}
	in := options.Inputs{
		Forward: req.Underlying,
		Strike:  req.Strike,
		Years:   req.Years,
		Rate:    s.rate(req.Rate),
		Type:    typ,
	}

	var vol float64
	switch req.Model {
	case ModelEuropean:
		vol = s.solver.European(req.Price, in)
	case ModelAmerican:
		vol = s.solver.American(req.Price, in)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}
	return &ImpliedVolResult{Model: req.Model, Vol: finite(vol), Inputs: in}, nil
}

// Smile fits the requested curves across the strikes of a chain.
func (s *AnalyticsService) Smile(ctx context.Context, req SmileRequest) (*SmileResult, error) {
	op := s.begin(ctx, "smile",
		attribute.StringSlice("fits", req.Fits),
		attribute.String("parent", req.Parent))
	res, err := s.smile(op.ctx, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Observed), nil)
}

// smilePoint is one usable option of the chain.
type smilePoint struct {
	strike float64
	vol    float64
	years  float64
}

func (s *AnalyticsService) smile(ctx context.Context, req SmileRequest) (*SmileResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	rows := req.Rows
	underlying := math.NaN()
	if len(rows) == 0 {
		var err error
		if rows, underlying, err = s.chainVols(ctx, req); err != nil {
			return nil, err
		}
	} else if rows[0].UnderlyingPrice > 0 {
		underlying = rows[0].UnderlyingPrice
	}
	hasUnderlying := !math.IsNaN(underlying)

	if req.OTMOnly {
		if !hasUnderlying {
			return nil, apierrors.NewAppValidationError("otm_only needs rows with an underlying_price", nil)
		}
		rows = skew.FilterOTM(rows, underlying)
	}

	column := req.VolColumn
	if column == "" {
		column = DefaultVolColumn
	}
	points := make([]smilePoint, 0, len(rows))
	for _, r := range rows {
		v := volColumn(r, column)
		if math.IsNaN(v) || math.IsNaN(r.Strike) {
			continue
		}
		points = append(points, smilePoint{strike: r.Strike, vol: v, years: r.YearsToExpiration})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no %s values in chain: %w", column, ErrNoData)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].strike < points[j].strike })

	k := make([]float64, len(points))
	sigma := make([]float64, len(points))
	observed := make([]SmilePoint, len(points))
	for i, p := range points {
		k[i], sigma[i] = p.strike, p.vol
		observed[i] = SmilePoint{Strike: p.strike, Value: p.vol}
	}

	degree := req.Degree
	if degree == 0 {
		degree = DefaultSmileDegree
	}
	n := req.GridPoints
	if n == 0 {
		n = DefaultGridPoints
	}
	grid := linspace(k[0], k[len(k)-1], n)

	res := &SmileResult{Observed: observed}
	if hasUnderlying {
		res.Underlying = underlying
	}
	for _, fit := range req.Fits {
		var curve SmileCurve
		var err error
		switch fit {
		case FitPolynomial:
			curve, err = polynomialCurve(k, sigma, degree, grid)
		case FitPiecewise:
			if !hasUnderlying {
				return nil, apierrors.NewAppValidationError("piecewise fit needs an underlying_price", nil)
			}
			curve, err = piecewiseCurve(k, sigma, underlying, degree, s.cfg.ATMWeight, grid)
		case FitSpline:
			curve, err = splineCurve(k, sigma, s.cfg.SplineFraction, grid)
		case FitSVI:
			if !hasUnderlying {
				return nil, apierrors.NewAppValidationError("svi fit needs an underlying_price", nil)
			}
			curve, err = sviCurve(points, underlying, grid)
		case FitDensity:
			curve, err = s.densityCurve(rows)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownFit, fit)
		}
		if err != nil {
			return nil, fmt.Errorf("%s fit: %w", fit, err)
		}
		res.Curves = append(res.Curves, curve)
	}
	return res, nil
}

// chainVols fetches the chain of req.Parent as of req.At and implies its
// vols from the top of book over the preceding quote window.
func (s *AnalyticsService) chainVols(ctx context.Context, req SmileRequest) ([]options.VolRow, float64, error) {
	if err := s.requireSource(); err != nil {
		return nil, math.NaN(), err
	}
	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	window := DefaultQuoteWindow
	if req.QuoteWindow != "" {
		w, err := bars.ParseInterval(req.QuoteWindow)
		if err != nil {
			return nil, math.NaN(), err
		}
		window = w
	}

	chain, err := s.source.OptionsChain(ctx, req.Parent, at, req.Underlying,
		[]domain.InstrumentClass{domain.InstrumentClassCall, domain.InstrumentClassPut}, s.cfg.DaysPerYear)
	if err != nil {
		return nil, math.NaN(), err
	}
	if len(chain) == 0 {
		return nil, math.NaN(), fmt.Errorf("options of %s on %s: %w", req.Parent, req.Underlying, ErrNoData)
	}

	symbols := make([]string, 0, len(chain)+1)
	symbols = append(symbols, req.Underlying)
	for _, c := range chain {
		symbols = append(symbols, c.Symbol)
	}
	quotes, err := s.source.TopOfBook(ctx, symbols, at.Add(-window), at)
	if err != nil {
		return nil, math.NaN(), err
	}

	rows, underlying, err := options.CalculateOptionVols(quotes, req.Underlying, chain, s.cfg.RiskFreeRate, s.logger)
	if err != nil {
		return nil, math.NaN(), fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return rows, underlying, nil
}

func volColumn(r options.VolRow, column string) float64 {
	switch column {
	case "iv_bid":
		return r.IVBid
	case "iv_ask":
		return r.IVAsk
	case "iv_weighted_midprice":
		return r.IVWeightedMid
	case "european_vol":
		return r.EuropeanVol
	default:
		return r.IVMid
	}
}

func linspace(lo, hi float64, n int) []float64 {
	if n < 2 || lo == hi {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

func evalGrid(grid []float64, f func(float64) float64) []SmilePoint {
	out := make([]SmilePoint, 0, len(grid))
	for _, x := range grid {
		y := f(x)
		if finite(y) == nil {
			continue
		}
		out = append(out, SmilePoint{Strike: x, Value: y})
	}
	return out
}

func polynomialCurve(k, sigma []float64, degree int, grid []float64) (SmileCurve, error) {
	p, err := skew.FitPolynomial(k, sigma, degree)
	if err != nil {
		return SmileCurve{}, err
	}
	return SmileCurve{Fit: FitPolynomial, Params: p, Points: evalGrid(grid, p.Eval)}, nil
}

func piecewiseCurve(k, sigma []float64, atm float64, degree int, atmWeight float64, grid []float64) (SmileCurve, error) {
	p, err := skew.FitWeightedPiecewisePolynomial(k, sigma, atm, degree, atmWeight)
	if err != nil {
		return SmileCurve{}, err
	}
	return SmileCurve{Fit: FitPiecewise, Params: p, Points: evalGrid(grid, p.Eval)}, nil
}

func splineCurve(k, sigma []float64, pct float64, grid []float64) (SmileCurve, error) {
	sp, err := skew.FitSpline(k, sigma, pct)
	if err != nil {
		return SmileCurve{}, err
	}
	return SmileCurve{Fit: FitSpline, Points: evalGrid(grid, sp.Eval)}, nil
}

// sviCurve fits raw SVI to total variance over log-moneyness and reports
// it back as vol at the mean time to expiry.
func sviCurve(points []smilePoint, forward float64, grid []float64) (SmileCurve, error) {
	var logK, w []float64
	var years float64
	for _, p := range points {
		if p.years <= 0 || p.strike <= 0 {
			continue
		}
		logK = append(logK, math.Log(p.strike/forward))
		w = append(w, p.vol*p.vol*p.years)
		years += p.years
	}
	if len(logK) == 0 {
		return SmileCurve{}, fmt.Errorf("no options with a positive time to expiry: %w", skew.ErrTooFewPoints)
	}
	years /= float64(len(logK))

	params, err := skew.FitRawSVI(logK, w)
	if err != nil {
		return SmileCurve{}, err
	}
	vol := func(strike float64) float64 {
		variance := params.Eval(math.Log(strike/forward))
		if variance < 0 {
			return math.NaN()
		}
		return math.Sqrt(variance / years)
	}
	return SmileCurve{Fit: FitSVI, Params: params, Points: evalGrid(grid, vol)}, nil
}

// densityCurve differences call mid prices twice over strikes.
func (s *AnalyticsService) densityCurve(rows []options.VolRow) (SmileCurve, error) {
	calls, _ := skew.SplitCallPut(rows)
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Strike < calls[j].Strike })

	var strikes, mids []float64
	for _, c := range calls {
		if math.IsNaN(c.Quote.Mid) {
			continue
		}
		strikes = append(strikes, c.Strike)
		mids = append(mids, c.Quote.Mid)
	}
	if len(strikes) < 3 {
		return SmileCurve{}, fmt.Errorf("density needs 3 quoted calls, have %d: %w", len(strikes), skew.ErrTooFewPoints)
	}

	density, err := skew.CallPriceImpliedDensity(strikes, mids, s.logger)
	if err != nil {
		return SmileCurve{}, err
	}
	points := make([]SmilePoint, 0, len(density))
	for i, d := range density {
		if finite(d) == nil {
			continue
		}
		points = append(points, SmilePoint{Strike: strikes[i], Value: d})
	}
	return SmileCurve{Fit: FitDensity, Points: points}, nil
}
