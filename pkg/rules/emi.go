package rules

import (
	"math"

	"github.com/shopspring/decimal"
)

// monthlyRate converts an annual percentage into a monthly fraction.
func monthlyRate(annualRate float64) float64 {
	if annualRate <= 0 {
		return 0
	}
	return annualRate / 12 / 100
}

// EMI returns the equated monthly installment for a principal at an annual percentage rate
// over months. A zero rate degenerates to straight division; a non-positive principal or
// tenure yields 0. The result is not rounded; see RoundMoney.
func EMI(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	r := monthlyRate(annualRate)
	if r == 0 {
		return principal / float64(months)
	}
	growth := math.Pow(1+r, float64(months))
	return principal * r * growth / (growth - 1)
}

// ReversePrincipal answers "what can I borrow for this EMI": the principal whose EMI at the
// given rate and tenure equals emi.
func ReversePrincipal(emi, annualRate float64, months int) float64 {
	if emi <= 0 || months <= 0 {
		return 0
	}
	r := monthlyRate(annualRate)
	if r == 0 {
		return emi * float64(months)
	}
	growth := math.Pow(1+r, float64(months))
	return emi * (growth - 1) / (r * growth)
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Installment is one row of an amortization schedule.
type Installment struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// AmortizationSchedule splits each installment into interest and principal. At most limit
// rows are returned; limit <= 0 returns the full schedule. The final installment absorbs
// rounding so the balance closes at zero.
func AmortizationSchedule(principal, annualRate float64, months, limit int) []Installment {
	if principal <= 0 || months <= 0 {
		return nil
	}
	if limit <= 0 || limit > months {
		limit = months
	}

	payment := decimal.NewFromFloat(EMI(principal, annualRate, months)).Round(2)
	rate := decimal.NewFromFloat(monthlyRate(annualRate))
	balance := decimal.NewFromFloat(principal).Round(2)

	rows := make([]Installment, 0, limit)
	for month := 1; month <= limit; month++ {
		interest := balance.Mul(rate).Round(2)
		toPrincipal := payment.Sub(interest)
		if month == months || toPrincipal.GreaterThan(balance) {
			toPrincipal = balance
		}
		balance = balance.Sub(toPrincipal)

		rows = append(rows, Installment{
			Month:     month,
			Payment:   toPrincipal.Add(interest).InexactFloat64(),
			Principal: toPrincipal.InexactFloat64(),
			Interest:  interest.InexactFloat64(),
			Balance:   balance.InexactFloat64(),
		})
	}
	return rows
}
