// Package skew fits volatility smiles across strikes and derives the
// risk-neutral density implied by call prices.
package skew

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"futurescli/internal/options"
	"futurescli/pkg/contracts/domain"
)

// DefaultATMWeight pins the two pieces of a piecewise fit together at the money.
const DefaultATMWeight = 1e6

var (
	ErrTooFewPoints   = errors.New("too few points to fit")
	ErrLengthMismatch = errors.New("x and y lengths differ")

	// ErrFit is returned when the points do not determine a curve, such as
	// repeated strikes in a least-squares fit.
	ErrFit = errors.New("smile fit failed")
)

// FilterValid keeps the pairs where neither x nor y is NaN.
func FilterValid(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// SplitCallPut separates the call and put rows of a chain.
func SplitCallPut(rows []options.VolRow) (calls, puts []options.VolRow) {
	for _, r := range rows {
		switch r.Class {
		case domain.InstrumentClassCall:
			calls = append(calls, r)
		case domain.InstrumentClassPut:
			puts = append(puts, r)
		}
	}
	return calls, puts
}

// FilterOTM keeps calls struck at or above the underlying and puts struck at
// or below it, sorted by strike.
func FilterOTM(rows []options.VolRow, underlying float64) []options.VolRow {
	calls, puts := SplitCallPut(rows)
	var otm []options.VolRow
	for _, c := range calls {
		if c.Strike >= underlying {
			otm = append(otm, c)
		}
	}
	for _, p := range puts {
		if p.Strike <= underlying {
			otm = append(otm, p)
		}
	}
	sort.SliceStable(otm, func(i, j int) bool {
		return otm[i].Strike < otm[j].Strike
	})
	return otm
}

// Polynomial holds coefficients in increasing order of power.
type Polynomial []float64

// Eval evaluates p at x with Horner's rule.
func (p Polynomial) Eval(x float64) float64 {
	var y float64
	for i := len(p) - 1; i >= 0; i-- {
		y = y*x + p[i]
	}
	return y
}

// FitPolynomial least-squares fits a polynomial of the given degree to the
// valid (k, sigma) pairs.
func FitPolynomial(k, sigma []float64, degree int) (Polynomial, error) {
	if len(k) != len(sigma) {
		return nil, ErrLengthMismatch
	}
	k, sigma = FilterValid(k, sigma)
	return weightedPolyfit(k, sigma, nil, degree)
}

// weightedPolyfit scales each Vandermonde row and target by its weight, so
// the weight applies to the residual rather than its square.
func weightedPolyfit(x, y, w []float64, degree int) (Polynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("invalid degree %d", degree)
	}
	if len(x) < degree+1 {
		return nil, fmt.Errorf("degree %d needs %d points, have %d: %w", degree, degree+1, len(x), ErrTooFewPoints)
	}

	cols := degree + 1
	a := mat.NewDense(len(x), cols, nil)
	b := mat.NewVecDense(len(x), nil)
	for i, xi := range x {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		pow := wi
		for j := 0; j < cols; j++ {
			a.Set(i, j, pow)
			pow *= xi
		}
		b.SetVec(i, wi*y[i])
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: least squares: %w", ErrFit, err)
	}
	p := make(Polynomial, cols)
	for j := range p {
		p[j] = coef.AtVec(j)
	}
	return p, nil
}

// Piecewise is a put-side polynomial below ATM and a call-side one at and
// above it.
type Piecewise struct {
	ATM  float64    `json:"atm"`
	Put  Polynomial `json:"put"`
	Call Polynomial `json:"call"`
}

// Eval evaluates the piece that covers x.
func (p Piecewise) Eval(x float64) float64 {
	if x < p.ATM {
		return p.Put.Eval(x)
	}
	return p.Call.Eval(x)
}

// FitWeightedPiecewisePolynomial fits separate polynomials below and above
// atm. The point nearest atm on each side carries atmWeight so that the
// pieces meet there. A non-positive atmWeight means DefaultATMWeight.
func FitWeightedPiecewisePolynomial(k, sigma []float64, atm float64, degree int, atmWeight float64) (Piecewise, error) {
	if len(k) != len(sigma) {
		return Piecewise{}, ErrLengthMismatch
	}
	if atmWeight <= 0 {
		atmWeight = DefaultATMWeight
	}
	k, sigma = FilterValid(k, sigma)

	var putK, putS, callK, callS []float64
	for i := range k {
		if k[i] < atm {
			putK = append(putK, k[i])
			putS = append(putS, sigma[i])
		} else {
			callK = append(callK, k[i])
			callS = append(callS, sigma[i])
		}
	}
	if len(putK) == 0 || len(callK) == 0 {
		return Piecewise{}, fmt.Errorf("need points on both sides of %g: %w", atm, ErrTooFewPoints)
	}

	putW := ones(len(putK))
	putW[slices.Index(putK, slices.Max(putK))] = atmWeight
	callW := ones(len(callK))
	callW[slices.Index(callK, slices.Min(callK))] = atmWeight

	put, err := weightedPolyfit(putK, putS, putW, degree)
	if err != nil {
		return Piecewise{}, fmt.Errorf("put side: %w", err)
	}
	call, err := weightedPolyfit(callK, callS, callW, degree)
	if err != nil {
		return Piecewise{}, fmt.Errorf("call side: %w", err)
	}
	return Piecewise{ATM: atm, Put: put, Call: call}, nil
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// Spline is a clamped cubic spline that does not extrapolate.
type Spline struct {
	lo, hi float64
	cubic  interp.ClampedCubic
}

// Eval returns NaN outside the knot range.
func (s *Spline) Eval(x float64) float64 {
	if x < s.lo || x > s.hi {
		return math.NaN()
	}
	return s.cubic.Predict(x)
}

// FitSpline fits a clamped cubic through every n-th valid point, with
// n = len*pct (at least 1). Points are taken in increasing k and repeated
// strikes keep their first value.
func FitSpline(k, sigma []float64, pct float64) (*Spline, error) {
	if len(k) != len(sigma) {
		return nil, ErrLengthMismatch
	}
	k, sigma = FilterValid(k, sigma)
	idx := make([]int, len(k))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return k[idx[i]] < k[idx[j]] })

	step := int(float64(len(k)) * pct)
	if step < 1 {
		step = 1
	}
	var xs, ys []float64
	for n := 0; n < len(idx); n += step {
		x := k[idx[n]]
		if len(xs) > 0 && x == xs[len(xs)-1] {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, sigma[idx[n]])
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("spline needs 2 knots, have %d: %w", len(xs), ErrTooFewPoints)
	}

	s := &Spline{lo: xs[0], hi: xs[len(xs)-1]}
	if err := s.cubic.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("%w: spline: %w", ErrFit, err)
	}
	return s, nil
}

// RawSVI parameterizes total implied variance over log-strike:
// w(k) = a + b*(rho*(k-m) + sqrt((k-m)^2 + sigma^2)).
// Variance stays positive when a + b*sigma*sqrt(1-rho^2) >= 0.
type RawSVI struct {
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Rho   float64 `json:"rho"`
	M     float64 `json:"m"`
	Sigma float64 `json:"sigma"`
}

// DefaultRawSVI is the starting point of FitRawSVI.
func DefaultRawSVI() RawSVI {
	return RawSVI{A: 0.1, B: 0.1, Rho: 0, M: 0, Sigma: 0.1}
}

// Eval returns the total variance at log-strike k.
func (p RawSVI) Eval(k float64) float64 {
	x := k - p.M
	return p.A + p.B*(p.Rho*x+math.Sqrt(x*x+p.Sigma*p.Sigma))
}

const (
	sviRhoTol   = 1e-6
	sviMinSigma = 1e-8
	sviMaxEvals = 1_000_000
)

// FitRawSVI fits raw SVI parameters to total variances w at log-strikes k
// with b in [0, 1], |rho| < 1 and sigma > 0.
//
// For fixed (m, sigma) the curve is linear in (a, b*rho, b), so only
// (m, log sigma) is searched with Nelder-Mead and the rest is solved by
// least squares at each step.
func FitRawSVI(k, w []float64) (RawSVI, error) {
	if len(k) != len(w) {
		return RawSVI{}, ErrLengthMismatch
	}
	k, w = FilterValid(k, w)
	if len(k) < 5 {
		return RawSVI{}, fmt.Errorf("svi needs 5 points, have %d: %w", len(k), ErrTooFewPoints)
	}

	inner := func(m, sigma float64) (RawSVI, float64) {
		p := sviLinear(k, w, m, sigma)
		return p, sviSSE(p, k, w)
	}

	p0 := DefaultRawSVI()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			_, sse := inner(x[0], sviMinSigma+math.Exp(x[1]))
			return sse
		},
	}
	settings := &optimize.Settings{FuncEvaluations: sviMaxEvals}
	result, err := optimize.Minimize(problem, []float64{p0.M, math.Log(p0.Sigma)}, settings, &optimize.NelderMead{})
	if err != nil && (result == nil || !sviConverged(result.Status)) {
		return RawSVI{}, fmt.Errorf("%w: svi: %w", ErrFit, err)
	}
	if result == nil {
		return RawSVI{}, fmt.Errorf("%w: svi: no result", ErrFit)
	}
	fit, sse := inner(result.X[0], sviMinSigma+math.Exp(result.X[1]))
	if math.IsNaN(fit.A) || math.IsInf(sse, 1) {
		return RawSVI{}, fmt.Errorf("%w: svi: degenerate strikes", ErrFit)
	}
	return fit, nil
}

// sviConverged reports whether the search stopped at a usable point, either
// converged or out of budget.
func sviConverged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.FunctionThreshold,
		optimize.MethodConverge, optimize.FunctionEvaluationLimit, optimize.IterationLimit:
		return true
	}
	return false
}

// sviLinear solves a, b and rho for fixed m and sigma, then clamps them
// into bounds and refits a.
func sviLinear(k, w []float64, m, sigma float64) RawSVI {
	a := mat.NewDense(len(k), 3, nil)
	y := mat.NewVecDense(len(k), w)
	for i, ki := range k {
		x := ki - m
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, math.Sqrt(x*x+sigma*sigma))
	}
	var c mat.VecDense
	p := RawSVI{M: m, Sigma: sigma}
	if err := c.SolveVec(a, y); err != nil {
		p.A, p.B = math.NaN(), math.NaN()
		return p
	}

	p.B = math.Min(math.Max(c.AtVec(2), 0), 1)
	if p.B > 0 {
		p.Rho = c.AtVec(1) / p.B
	}
	p.Rho = math.Min(math.Max(p.Rho, -1+sviRhoTol), 1-sviRhoTol)

	var sum float64
	for i, ki := range k {
		sum += w[i] - p.Eval(ki)
	}
	p.A = sum / float64(len(k))
	return p
}

func sviSSE(p RawSVI, k, w []float64) float64 {
	var sse float64
	for i, ki := range k {
		d := p.Eval(ki) - w[i]
		sse += d * d
	}
	if math.IsNaN(sse) {
		return math.Inf(1)
	}
	return sse
}

// CallPriceImpliedDensity differences call prices twice over strikes. The
// first call-spread slope is taken as 1 and the last density is NaN. A
// warning is logged when call-spread slopes fall outside [0, 1], since the
// result is then not a density.
func CallPriceImpliedDensity(strikes, calls []float64, logger *slog.Logger) ([]float64, error) {
	if len(strikes) != len(calls) {
		return nil, ErrLengthMismatch
	}
	if len(strikes) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	qBar := make([]float64, len(strikes))
	qBar[0] = 1
	var outside int
	for i := 1; i < len(strikes); i++ {
		qBar[i] = -(calls[i] - calls[i-1]) / (strikes[i] - strikes[i-1])
	}
	for _, q := range qBar {
		if q < 0 || q > 1 {
			outside++
		}
	}
	if outside > 0 {
		logger.Warn("call spreads are outside of [0, 1]", slog.Int("count", outside))
	}

	q := make([]float64, len(strikes))
	for i := 0; i < len(q)-1; i++ {
		q[i] = qBar[i] - qBar[i+1]
	}
	q[len(q)-1] = math.NaN()
	return q, nil
}
