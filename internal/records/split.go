package records

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
)

// tolerance is the largest rounding drift an explicit split may carry: one
// unit in the last place at the given precision.
func tolerance(precision int32) decimal.Decimal {
	return decimal.New(1, -precision)
}

// EvenSplit divides total evenly across participants, rounding each share to
// precision decimal places. Any rounding residue lands on the first
// participant so the shares always sum exactly to the total.
func EvenSplit(total decimal.Decimal, participants []string, precision int32) (database.DecimalMap, error) {
	if len(participants) == 0 {
		return nil, errors.New("cannot split between zero participants")
	}
	if total.IsNegative() {
		return nil, errors.New("cannot split a negative total")
	}

	n := decimal.NewFromInt(int64(len(participants)))
	base := total.DivRound(n, precision)
	residue := total.Sub(base.Mul(n))

	amounts := make(database.DecimalMap, len(participants))
	for i, p := range participants {
		share := base
		if i == 0 {
			share = share.Add(residue)
		}
		amounts[p] = share
	}
	return amounts, nil
}

// ValidateSplit checks explicit per-participant amounts against the expense
// total. Drift up to one unit at the given precision is absorbed by the first
// participant in the between order; anything larger is a SplitMismatchError.
// Returns the adjusted amounts, which sum exactly to the total.
func ValidateSplit(total decimal.Decimal, between []string, amounts database.DecimalMap, precision int32) (database.DecimalMap, error) {
	if len(between) == 0 || len(amounts) == 0 {
		return nil, errors.New("explicit split requires participants and amounts")
	}

	sum := decimal.Zero
	adjusted := make(database.DecimalMap, len(amounts))
	for _, p := range between {
		amount, ok := amounts[p]
		if !ok {
			return nil, &errs.IncompleteRecordError{Kind: "split", Missing: []string{"amount for " + p}}
		}
		adjusted[p] = amount
		sum = sum.Add(amount)
	}

	diff := total.Sub(sum)
	if diff.Abs().GreaterThan(tolerance(precision)) {
		return nil, &errs.SplitMismatchError{Total: total, Sum: sum}
	}
	if !diff.IsZero() {
		first := between[0]
		adjusted[first] = adjusted[first].Add(diff)
	}
	return adjusted, nil
}
