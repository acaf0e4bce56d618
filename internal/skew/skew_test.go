package skew

import (
	"log/slog"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"futurescli/internal/options"
	"futurescli/internal/shared/testutil"
	"futurescli/pkg/contracts/domain"
)

func grid(lo, step float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = lo + step*float64(i)
	}
	return xs
}

func TestFilterValid(t *testing.T) {
	x, y := FilterValid(
		[]float64{1, math.NaN(), 3, 4},
		[]float64{10, 20, math.NaN(), 40},
	)
	assert.Equal(t, []float64{1, 4}, x)
	assert.Equal(t, []float64{10, 40}, y)
}

func TestFilterOTM(t *testing.T) {
	row := func(class domain.InstrumentClass, strike float64) options.VolRow {
		return options.VolRow{Contract: options.Contract{Class: class, Strike: strike}}
	}
	rows := []options.VolRow{
		row(domain.InstrumentClassCall, 5800),
		row(domain.InstrumentClassCall, 6000),
		row(domain.InstrumentClassPut, 5800),
		row(domain.InstrumentClassPut, 6000),
		row(domain.InstrumentClassCall, 5900),
		row(domain.InstrumentClassPut, 5900),
		row(domain.InstrumentClassFuture, 5900),
	}

	calls, puts := SplitCallPut(rows)
	assert.Len(t, calls, 3)
	assert.Len(t, puts, 3)

	otm := FilterOTM(rows, 5900)
	require.Len(t, otm, 4)
	assert.Equal(t, 5800.0, otm[0].Strike)
	assert.Equal(t, domain.InstrumentClassPut, otm[0].Class)
	assert.Equal(t, 5900.0, otm[1].Strike)
	assert.Equal(t, 5900.0, otm[2].Strike)
	assert.Equal(t, 6000.0, otm[3].Strike)
	assert.Equal(t, domain.InstrumentClassCall, otm[3].Class)
}

func TestFitPolynomial(t *testing.T) {
	k := grid(-0.3, 0.05, 13)
	sigma := make([]float64, len(k))
	for i, x := range k {
		sigma[i] = 0.3 - 0.2*x + 0.5*x*x
	}
	k = append(k, math.NaN())
	sigma = append(sigma, 0.25)

	p, err := FitPolynomial(k, sigma, 2)
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.InDelta(t, 0.3, p[0], 1e-9)
	assert.InDelta(t, -0.2, p[1], 1e-9)
	assert.InDelta(t, 0.5, p[2], 1e-9)
	assert.InDelta(t, 0.3-0.2*0.1+0.5*0.01, p.Eval(0.1), 1e-9)

	_, err = FitPolynomial([]float64{1, 2}, []float64{1, 2}, 2)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = FitPolynomial([]float64{1, 2}, []float64{1}, 1)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = FitPolynomial([]float64{100, 100, 100}, []float64{0.2, 0.21, 0.22}, 2)
	assert.ErrorIs(t, err, ErrFit)
}

func TestFitWeightedPiecewisePolynomial(t *testing.T) {
	k := grid(-0.4, 0.1, 9)
	sigma := make([]float64, len(k))
	for i, x := range k {
		if x < -1e-9 {
			sigma[i] = 0.2 - 0.3*x + 0.01*float64(i%2)
		} else {
			sigma[i] = 0.21 + 0.1*x + 0.01*float64(i%2)
		}
	}

	fit, err := FitWeightedPiecewisePolynomial(k, sigma, -1e-9, 1, 0)
	require.NoError(t, err)

	// The weighted point on each side is reproduced almost exactly.
	assert.InDelta(t, sigma[3], fit.Put.Eval(k[3]), 1e-6)
	assert.InDelta(t, sigma[4], fit.Call.Eval(k[4]), 1e-6)
	assert.InDelta(t, sigma[4], fit.Eval(k[4]), 1e-6)
	assert.InDelta(t, fit.Put.Eval(k[0]), fit.Eval(k[0]), 1e-12)

	_, err = FitWeightedPiecewisePolynomial(k, sigma, -1, 1, 0)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	// Input order does not matter: the points nearest atm carry the weight.
	rk, rs := slices.Clone(k), slices.Clone(sigma)
	slices.Reverse(rk)
	slices.Reverse(rs)
	reversed, err := FitWeightedPiecewisePolynomial(rk, rs, -1e-9, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, sigma[3], reversed.Put.Eval(k[3]), 1e-6)
	assert.InDelta(t, sigma[4], reversed.Call.Eval(k[4]), 1e-6)
	assert.InDelta(t, fit.Put.Eval(k[0]), reversed.Put.Eval(k[0]), 1e-6)
}

func TestFitSpline(t *testing.T) {
	k := grid(-0.5, 0.05, 21)
	sigma := make([]float64, len(k))
	for i, x := range k {
		sigma[i] = 0.2 + 0.5*x*x
	}

	s, err := FitSpline(k, sigma, 0.1)
	require.NoError(t, err)

	for _, knot := range []int{0, 4, 10, 16, 20} {
		assert.InDelta(t, sigma[knot], s.Eval(k[knot]), 1e-9, "knot %d", knot)
	}
	assert.InDelta(t, 0.2+0.5*0.05*0.05, s.Eval(0.05), 1e-3)
	assert.True(t, math.IsNaN(s.Eval(-0.6)))
	assert.True(t, math.IsNaN(s.Eval(0.51)))

	_, err = FitSpline([]float64{1}, []float64{0.2}, 0.1)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestRawSVI(t *testing.T) {
	p := DefaultRawSVI()
	assert.InDelta(t, 0.1+0.1*0.1, p.Eval(0), 1e-12)
	assert.InDelta(t, 0.1+0.1*math.Sqrt(0.25+0.01), p.Eval(0.5), 1e-12)
}

func TestFitRawSVI(t *testing.T) {
	truth := RawSVI{A: 0.04, B: 0.2, Rho: -0.3, M: 0.05, Sigma: 0.15}
	k := grid(-0.5, 0.05, 21)
	w := make([]float64, len(k))
	for i, x := range k {
		w[i] = truth.Eval(x)
	}

	fit, err := FitRawSVI(k, w)
	require.NoError(t, err)

	for i, x := range k {
		assert.InDelta(t, w[i], fit.Eval(x), 1e-5, "k=%g", x)
	}
	assert.InDelta(t, truth.B, fit.B, 1e-2)
	assert.InDelta(t, truth.Rho, fit.Rho, 1e-2)
	assert.InDelta(t, truth.M, fit.M, 1e-2)
	assert.GreaterOrEqual(t, fit.B, 0.0)
	assert.LessOrEqual(t, fit.B, 1.0)
	assert.Less(t, math.Abs(fit.Rho), 1.0)
	assert.Greater(t, fit.Sigma, 0.0)

	_, err = FitRawSVI(k[:3], w[:3])
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestSVIConverged(t *testing.T) {
	tests := []struct {
		status optimize.Status
		want   bool
	}{
		{status: optimize.Success, want: true},
		{status: optimize.FunctionConvergence, want: true},
		{status: optimize.MethodConverge, want: true},
		{status: optimize.FunctionEvaluationLimit, want: true},
		{status: optimize.IterationLimit, want: true},
		{status: optimize.NotTerminated, want: false},
		{status: optimize.Failure, want: false},
		{status: optimize.RuntimeLimit, want: false},
		{status: optimize.FunctionNegativeInfinity, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sviConverged(tt.status), tt.status.String())
	}
}

func TestCallPriceImpliedDensity(t *testing.T) {
	t.Run("uniform density", func(t *testing.T) {
		logger, handler := testutil.NewTestLogger(t)
		q, err := CallPriceImpliedDensity(
			[]float64{90, 95, 100, 105, 110},
			[]float64{12, 8, 5, 3, 2},
			logger,
		)
		require.NoError(t, err)
		require.Len(t, q, 5)
		for _, v := range q[:4] {
			assert.InDelta(t, 0.2, v, 1e-12)
		}
		assert.True(t, math.IsNaN(q[4]))
		assert.Empty(t, handler.Entries(slog.LevelWarn))
	})

	t.Run("arbitrage warns", func(t *testing.T) {
		logger, handler := testutil.NewTestLogger(t)
		_, err := CallPriceImpliedDensity(
			[]float64{90, 95, 100},
			[]float64{12, 13, 5},
			logger,
		)
		require.NoError(t, err)
		testutil.AssertLogContains(t, handler, slog.LevelWarn, "call spreads are outside of [0, 1]")
		testutil.AssertLogAttr(t, handler, "count", int64(2))
	})

	t.Run("empty", func(t *testing.T) {
		q, err := CallPriceImpliedDensity(nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, q)
	})
}
