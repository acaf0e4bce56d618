// Package options prices European and American options and implies
// volatilities from market prices.
package options

import (
	"math"

	"futurescli/pkg/contracts/domain"
)

// DefaultRateBump is the rate shift used for numerical rho.
const DefaultRateBump = 1e-4

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// BlackScholes prices a European option on a spot asset paying a
// continuous yield q.
func BlackScholes(spot, strike, years, vol, rate, yield float64, typ domain.OptionType) float64 {
	forward := spot * math.Exp((rate-yield)*years)
	return Black76(forward, strike, years, vol, rate, typ)
}

// BlackScholesNumericalRho is the central difference of BlackScholes in the
// rate, holding the spot fixed.
func BlackScholesNumericalRho(spot, strike, years, vol, rate, yield float64, typ domain.OptionType, dr float64) float64 {
	if dr == 0 {
		dr = DefaultRateBump
	}
	up := BlackScholes(spot, strike, years, vol, rate+dr, yield, typ)
	down := BlackScholes(spot, strike, years, vol, rate-dr, yield, typ)
	return (up - down) / (2 * dr)
}

// Black76 prices a European option on a forward or futures price.
func Black76(forward, strike, years, vol, rate float64, typ domain.OptionType) float64 {
	sd := vol * math.Sqrt(years)
	d1 := (math.Log(forward/strike) + 0.5*sd*sd) / sd
	d2 := d1 - sd
	cp := typ.Sign()
	return math.Exp(-rate*years) * cp * (forward*normCDF(cp*d1) - strike*normCDF(cp*d2))
}

// Black76OneDayTheta is the value lost as time to expiry shrinks by dt
// years: price(T) - price(T-dt).
func Black76OneDayTheta(forward, strike, years, vol, rate float64, typ domain.OptionType, dt float64) float64 {
	return Black76(forward, strike, years, vol, rate, typ) - Black76(forward, strike, years-dt, vol, rate, typ)
}

// Black76NumericalTheta is Black76OneDayTheta per year.
func Black76NumericalTheta(forward, strike, years, vol, rate float64, typ domain.OptionType, dt float64) float64 {
	return Black76OneDayTheta(forward, strike, years, vol, rate, typ, dt) / dt
}

// generalizedBlackScholes prices a European option with cost of carry b.
func generalizedBlackScholes(spot, strike, years, vol, rate, carry float64, typ domain.OptionType) float64 {
	return Black76(spot*math.Exp(carry*years), strike, years, vol, rate, typ)
}

func d1(spot, strike, years, vol, carry float64) float64 {
	sd := vol * math.Sqrt(years)
	return (math.Log(spot/strike) + (carry+0.5*vol*vol)*years) / sd
}
