// Package fixture produces deterministic ledger traffic for tests.
package fixture

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

type spendCategory struct {
	name         string
	descriptions []string
	min, span    int64 // whole currency units
}

var spendCategories = []spendCategory{
	{"Food & Dining", []string{"Starbucks Coffee", "Grocery Store", "Pizza Hut", "Food Delivery"}, 5, 50},
	{"Transportation", []string{"Gas Station", "Uber Ride", "Public Transit", "Parking Fee"}, 10, 80},
	{"Shopping", []string{"Amazon Purchase", "Clothing Store", "Electronics Store"}, 20, 200},
	{"Entertainment", []string{"Movie Theater", "Concert Tickets", "Streaming Service"}, 15, 100},
	{"Bills & Utilities", []string{"Electric Bill", "Internet Bill", "Phone Bill", "Water Bill"}, 50, 150},
	{"Healthcare", []string{"Pharmacy", "Doctor Visit", "Dental Care"}, 30, 300},
	{"Education", []string{"Course Fee", "Books", "Online Learning"}, 50, 500},
	{"Travel", []string{"Hotel Booking", "Flight Ticket", "Car Rental"}, 100, 1000},
	{"Other", []string{"ATM Withdrawal", "Bank Fee", "Donation"}, 5, 100},
}

var incomeDescriptions = []string{"Salary Deposit", "Bonus Payment", "Refund", "Cashback", "Gift Money"}

// Generator yields a reproducible stream of apply requests.
// The same seed always produces the same sequence.
type Generator struct {
	rng *rand.Rand
	// CreditRatio is the share of credits in the stream.
	CreditRatio float64
}

func New(seed uint64) *Generator {
	return &Generator{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		CreditRatio: 0.2,
	}
}

// Next returns one request against accountID.
func (g *Generator) Next(accountID int64) domain.ApplyRequest {
	if g.rng.Float64() < g.CreditRatio {
		var units int64
		if g.rng.Float64() < 0.2 {
			units = 1000 + g.rng.Int64N(2000)
		} else {
			units = 20 + g.rng.Int64N(200)
		}
		return domain.ApplyRequest{
			AccountID:   accountID,
			Kind:        domain.EntryKindCredit,
			Amount:      g.amount(units),
			Description: incomeDescriptions[g.rng.IntN(len(incomeDescriptions))],
			Category:    "Income",
		}
	}
	c := spendCategories[g.rng.IntN(len(spendCategories))]
	return domain.ApplyRequest{
		AccountID:   accountID,
		Kind:        domain.EntryKindDebit,
		Amount:      g.amount(c.min + g.rng.Int64N(c.span)),
		Description: c.descriptions[g.rng.IntN(len(c.descriptions))],
		Category:    c.name,
	}
}

// Requests returns n requests against accountID.
func (g *Generator) Requests(accountID int64, n int) []domain.ApplyRequest {
	out := make([]domain.ApplyRequest, n)
	for i := range out {
		out[i] = g.Next(accountID)
	}
	return out
}

// amount adds random cents to whole units.
func (g *Generator) amount(units int64) decimal.Decimal {
	cents := g.rng.Int64N(100)
	return domain.FromMinorUnits(units*100 + cents)
}
