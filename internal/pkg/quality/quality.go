package quality

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Tier string

func (t Tier) String() string {
	return string(t)
}

const (
	Indeterminate Tier = "indeterminate"
	Optimal       Tier = "optimal"
	Suboptimal    Tier = "suboptimal"
	Error         Tier = "error"
)

const (
	BasePrice   int64 = 30000
	PriceOffset int64 = 5000
)

var (
	optimalTempMin = decimal.NewFromInt(30)
	optimalTempMax = decimal.NewFromInt(35)
	optimalHumMin  = decimal.NewFromInt(60)
	optimalHumMax  = decimal.NewFromInt(80)

	errorTempMin = decimal.NewFromInt(28)
	errorTempMax = decimal.NewFromInt(36)
	errorHumMin  = decimal.NewFromInt(50)
	errorHumMax  = decimal.NewFromInt(90)
)

// Result is the quality tier of a reading and the price per kg it commands.
// PricePerKg is zero for Indeterminate.
type Result struct {
	Tier       Tier  `json:"tier"`
	PricePerKg int64 `json:"price_per_kg"`
}

func (r Result) Determinate() bool {
	return r.Tier != Indeterminate
}

// Classify maps a temperature/humidity pair to a tier. Optimal is checked before
// Error and the order matters.
func Classify(temperature, humidity decimal.NullDecimal) Result {
	if !temperature.Valid || !humidity.Valid {
		return Result{Tier: Indeterminate}
	}
	t, h := temperature.Decimal, humidity.Decimal

	if between(t, optimalTempMin, optimalTempMax) && between(h, optimalHumMin, optimalHumMax) {
		return Result{Tier: Optimal, PricePerKg: BasePrice + PriceOffset}
	}
	if t.LessThan(errorTempMin) || t.GreaterThan(errorTempMax) || h.LessThan(errorHumMin) || h.GreaterThan(errorHumMax) {
		return Result{Tier: Error, PricePerKg: BasePrice - PriceOffset}
	}
	return Result{Tier: Suboptimal, PricePerKg: BasePrice}
}

// ClassifyText parses both values first; anything unparseable (like "--") is Indeterminate.
func ClassifyText(temperature, humidity string) Result {
	return Classify(parse(temperature), parse(humidity))
}

func between(v, lo, hi decimal.Decimal) bool {
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}

func parse(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
