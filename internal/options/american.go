package options

import (
	"math"

	"futurescli/pkg/contracts/domain"
)

// Default bump sizes for numerical American greeks.
const (
	DefaultVolBump  = 0.01
	DefaultTimeBump = 1.0 / 365
)

const (
	criticalPriceTolerance = 1e-6
	criticalPriceMaxIter   = 100
)

// Greeks holds an American option value and its sensitivities. Theta is
// the change in value per year of elapsed time, so it is usually negative.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// AmericanPrice prices an American option on a futures contract with the
// Barone-Adesi-Whaley quadratic approximation. A NaN vol gives NaN.
func AmericanPrice(future, strike, years, vol, rate float64, typ domain.OptionType) float64 {
	return baroneAdesiWhaley(future, strike, years, vol, rate, 0, typ)
}

// baroneAdesiWhaley follows Haug's formulation with cost of carry b.
func baroneAdesiWhaley(spot, strike, years, vol, rate, carry float64, typ domain.OptionType) float64 {
	if math.IsNaN(vol) || math.IsNaN(spot) {
		return math.NaN()
	}
	if years <= 0 || vol <= 0 {
		return intrinsic(spot, strike, typ)
	}
	if typ == domain.OptionTypeCall && carry >= rate {
		return generalizedBlackScholes(spot, strike, years, vol, rate, carry, typ)
	}

	variance := vol * vol
	n := 2 * carry / variance
	var mOverK float64
	if rt := rate * years; math.Abs(rt) < 1e-12 {
		mOverK = 2 / (variance * years)
	} else {
		mOverK = 2 * rate / (variance * (1 - math.Exp(-rt)))
	}
	carryDiscount := math.Exp((carry - rate) * years)
	european := generalizedBlackScholes(spot, strike, years, vol, rate, carry, typ)

	if typ == domain.OptionTypeCall {
		q2 := (-(n - 1) + math.Sqrt((n-1)*(n-1)+4*mOverK)) / 2
		critical := criticalCall(strike, years, vol, rate, carry, n, q2)
		if spot >= critical {
			return spot - strike
		}
		a2 := critical / q2 * (1 - carryDiscount*normCDF(d1(critical, strike, years, vol, carry)))
		return european + a2*math.Pow(spot/critical, q2)
	}

	q1 := (-(n - 1) - math.Sqrt((n-1)*(n-1)+4*mOverK)) / 2
	critical := criticalPut(strike, years, vol, rate, carry, n, q1)
	if spot <= critical {
		return strike - spot
	}
	a1 := -critical / q1 * (1 - carryDiscount*normCDF(-d1(critical, strike, years, vol, carry)))
	return european + a1*math.Pow(spot/critical, q1)
}

func intrinsic(spot, strike float64, typ domain.OptionType) float64 {
	return math.Max(typ.Sign()*(spot-strike), 0)
}

// criticalCall solves S* - K = c(S*) + (1 - e^{(b-r)T} N(d1(S*))) S*/q2 by
// Newton iteration from the Barone-Adesi-Whaley seed.
func criticalCall(strike, years, vol, rate, carry, n, q2 float64) float64 {
	sd := vol * math.Sqrt(years)
	carryDiscount := math.Exp((carry - rate) * years)

	q2Inf := (-(n - 1) + math.Sqrt((n-1)*(n-1)+4*2*rate/(vol*vol))) / 2
	sInf := strike / (1 - 1/q2Inf)
	h2 := -(carry*years + 2*sd) * strike / (sInf - strike)
	si := strike + (sInf-strike)*(1-math.Exp(h2))

	for i := 0; i < criticalPriceMaxIter; i++ {
		dd := d1(si, strike, years, vol, carry)
		lhs := si - strike
		rhs := generalizedBlackScholes(si, strike, years, vol, rate, carry, domain.OptionTypeCall) +
			(1-carryDiscount*normCDF(dd))*si/q2
		if math.Abs(lhs-rhs)/strike < criticalPriceTolerance {
			break
		}
		bi := carryDiscount*normCDF(dd)*(1-1/q2) + (1-carryDiscount*normPDF(dd)/sd)/q2
		si = (strike + rhs - bi*si) / (1 - bi)
	}
	return si
}

// criticalPut is the put counterpart of criticalCall.
func criticalPut(strike, years, vol, rate, carry, n, q1 float64) float64 {
	sd := vol * math.Sqrt(years)
	carryDiscount := math.Exp((carry - rate) * years)

	q1Inf := (-(n - 1) - math.Sqrt((n-1)*(n-1)+4*2*rate/(vol*vol))) / 2
	sInf := strike / (1 - 1/q1Inf)
	h1 := (carry*years - 2*sd) * strike / (strike - sInf)
	si := sInf + (strike-sInf)*math.Exp(h1)

	for i := 0; i < criticalPriceMaxIter; i++ {
		dd := d1(si, strike, years, vol, carry)
		lhs := strike - si
		rhs := generalizedBlackScholes(si, strike, years, vol, rate, carry, domain.OptionTypePut) -
			(1-carryDiscount*normCDF(-dd))*si/q1
		if math.Abs(lhs-rhs)/strike < criticalPriceTolerance {
			break
		}
		bi := -carryDiscount*normCDF(-dd)*(1-1/q1) - (1+carryDiscount*normPDF(-dd)/sd)/q1
		si = (strike - rhs + bi*si) / (1 + bi)
	}
	return si
}

// NumericalDelta is the central difference of AmericanPrice in the futures
// price. A zero dFuture uses 0.01% of the futures price.
func NumericalDelta(future, strike, years, vol, rate float64, typ domain.OptionType, dFuture float64) float64 {
	if dFuture == 0 {
		dFuture = future * 1e-4
	}
	up := AmericanPrice(future+dFuture, strike, years, vol, rate, typ)
	down := AmericanPrice(future-dFuture, strike, years, vol, rate, typ)
	return (up - down) / (2 * dFuture)
}

// NumericalVega is the central difference of AmericanPrice in vol.
func NumericalVega(future, strike, years, vol, rate float64, typ domain.OptionType, dVol float64) float64 {
	if dVol == 0 {
		dVol = DefaultVolBump
	}
	up := AmericanPrice(future, strike, years, vol+dVol, rate, typ)
	down := AmericanPrice(future, strike, years, vol-dVol, rate, typ)
	return (up - down) / (2 * dVol)
}

// NumericalRho is the central difference of AmericanPrice in the rate with
// the futures price held fixed.
func NumericalRho(future, strike, years, vol, rate float64, typ domain.OptionType, dr float64) float64 {
	if dr == 0 {
		dr = DefaultRateBump
	}
	up := AmericanPrice(future, strike, years, vol, rate+dr, typ)
	down := AmericanPrice(future, strike, years, vol, rate-dr, typ)
	return (up - down) / (2 * dr)
}

// OneDayTheta is the American value lost when time to expiry shrinks by
// dt years: price(T) - price(T-dt).
func OneDayTheta(future, strike, years, vol, rate float64, typ domain.OptionType, dt float64) float64 {
	if dt == 0 {
		dt = DefaultTimeBump
	}
	return AmericanPrice(future, strike, years, vol, rate, typ) - AmericanPrice(future, strike, years-dt, vol, rate, typ)
}

// NumericalTheta is OneDayTheta per year of decay.
func NumericalTheta(future, strike, years, vol, rate float64, typ domain.OptionType, dt float64) float64 {
	if dt == 0 {
		dt = DefaultTimeBump
	}
	return OneDayTheta(future, strike, years, vol, rate, typ, dt) / dt
}

// AmericanGreeks prices an American futures option and bumps it for its
// sensitivities.
func AmericanGreeks(future, strike, years, vol, rate float64, typ domain.OptionType) Greeks {
	if math.IsNaN(vol) {
		nan := math.NaN()
		return Greeks{Price: nan, Delta: nan, Vega: nan, Theta: nan, Rho: nan}
	}
	return Greeks{
		Price: AmericanPrice(future, strike, years, vol, rate, typ),
		Delta: NumericalDelta(future, strike, years, vol, rate, typ, 0),
		Vega:  NumericalVega(future, strike, years, vol, rate, typ, 0),
		Theta: -NumericalTheta(future, strike, years, vol, rate, typ, 0),
		Rho:   NumericalRho(future, strike, years, vol, rate, typ, 0),
	}
}
