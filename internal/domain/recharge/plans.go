package recharge

import "github.com/shopspring/decimal"

// CreditsPerYuan prices custom recharge amounts.
const CreditsPerYuan = 10

// Plan is a fixed recharge offer. Bonus credits are granted on top of Credits.
type Plan struct {
	ID      string          `json:"id"`
	Credits int64           `json:"credits"`
	Price   decimal.Decimal `json:"price"`
	Bonus   int64           `json:"bonus"`
	Popular bool            `json:"popular"`
}

// TotalCredits is what the user receives for the plan.
func (p Plan) TotalCredits() int64 {
	return p.Credits + p.Bonus
}

// Plans lists the recharge offers in display order.
var Plans = []Plan{
	{ID: "credits_100", Credits: 100, Price: decimal.NewFromInt(10)},
	{ID: "credits_300", Credits: 300, Price: decimal.NewFromInt(30), Bonus: 30},
	{ID: "credits_500", Credits: 500, Price: decimal.NewFromInt(50), Bonus: 75, Popular: true},
	{ID: "credits_1000", Credits: 1000, Price: decimal.NewFromInt(100), Bonus: 200},
}

// FindPlan looks a plan up by id.
func FindPlan(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PriceFor is the payment due for a custom credit amount.
func PriceFor(credits int64) decimal.Decimal {
	return decimal.NewFromInt(credits).Div(decimal.NewFromInt(CreditsPerYuan)).Round(2)
}
