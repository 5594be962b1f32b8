// Package views computes read-only projections over a trip's stored records:
// who owes whom, the ordered schedule, and the trip summary. Nothing here
// writes to the store.
package views

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/database"
)

// Balance is one participant's net position. Positive means the group owes
// them, negative means they owe the group.
type Balance struct {
	Name string
	Net  decimal.Decimal
}

// Settlement is one payment that moves the group toward all-zero balances.
type Settlement struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// ComputeBalances folds every split expense into per-participant net
// positions. Expenses without split data are skipped; the payer is credited
// the full total and each participant debited their share, so all nets sum
// to zero. Results are sorted by name for stable rendering.
func ComputeBalances(expenses []*database.Expense) []Balance {
	nets := map[string]decimal.Decimal{}

	for _, e := range expenses {
		if !e.HasSplit() {
			continue
		}
		total := decimal.Zero
		for name, share := range e.SplitAmounts {
			nets[name] = nets[name].Sub(share)
			total = total.Add(share)
		}
		nets[e.PaidBy] = nets[e.PaidBy].Add(total)
	}

	balances := make([]Balance, 0, len(nets))
	for name, net := range nets {
		balances = append(balances, Balance{Name: name, Net: net})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Name < balances[j].Name })
	return balances
}

// Settle produces a small set of payments that zeroes all balances. It
// repeatedly pays the largest debt toward the largest credit, which settles
// n participants in at most n-1 transfers. Sub-cent residue is dropped.
func Settle(balances []Balance) []Settlement {
	cent := decimal.New(1, -2)

	type position struct {
		name   string
		amount decimal.Decimal
	}
	var creditors, debtors []position
	for _, b := range balances {
		switch {
		case b.Net.GreaterThanOrEqual(cent):
			creditors = append(creditors, position{b.Name, b.Net})
		case b.Net.LessThanOrEqual(cent.Neg()):
			debtors = append(debtors, position{b.Name, b.Net.Neg()})
		}
	}

	// Largest first; ties by name so output is deterministic.
	byAmount := func(ps []position) {
		sort.Slice(ps, func(i, j int) bool {
			if !ps[i].amount.Equal(ps[j].amount) {
				return ps[i].amount.GreaterThan(ps[j].amount)
			}
			return ps[i].name < ps[j].name
		})
	}
	byAmount(creditors)
	byAmount(debtors)

	var settlements []Settlement
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		pay := decimal.Min(debtors[i].amount, creditors[j].amount)
		settlements = append(settlements, Settlement{
			From:   debtors[i].name,
			To:     creditors[j].name,
			Amount: pay.Round(2),
		})
		debtors[i].amount = debtors[i].amount.Sub(pay)
		creditors[j].amount = creditors[j].amount.Sub(pay)
		if debtors[i].amount.LessThan(cent) {
			i++
		}
		if creditors[j].amount.LessThan(cent) {
			j++
		}
	}
	return settlements
}

// TotalSpend sums expense totals per currency.
func TotalSpend(expenses []*database.Expense) map[string]decimal.Decimal {
	totals := map[string]decimal.Decimal{}
	for _, e := range expenses {
		totals[e.Currency] = totals[e.Currency].Add(e.Total)
	}
	return totals
}
