package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const expenseColumns = `id, created_at, updated_at, trip_id, ingest_id, merchant,
	location, transaction_date, category, subtotal, tax, tip, total, currency,
	items, paid_by, split_between, split_amounts, confidence_score, raw_source`

// InsertExpense inserts an expense and bumps the trip's activity. When the
// expense carries an ingest id that was already stored, the existing row is
// loaded into the argument instead, making retried ingestion a no-op.
func (s *sqlxStore) InsertExpense(ctx context.Context, expense *Expense) error {
	if expense == nil {
		return errors.New("cannot insert nil expense")
	}
	if expense.TripID == 0 {
		return errors.New("expense must belong to a trip")
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if expense.IngestID.Valid {
			var existing Expense
			err := tx.GetContext(ctx, &existing,
				`SELECT `+expenseColumns+` FROM expenses WHERE ingest_id = ?`,
				expense.IngestID.String)
			switch {
			case err == nil:
				*expense = existing
				s.logger.DebugContext(ctx, "Expense ingest replayed, returning stored row",
					"expense_id", existing.ID, "ingest_id", existing.IngestID.String)
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("failed to check expense ingest id: %w", err)
			}
		}

		now := time.Now().UTC()
		expense.CreatedAt = now
		expense.UpdatedAt = now
		if expense.Currency == "" {
			expense.Currency = "USD"
		}
		if expense.Category == "" {
			expense.Category = "other"
		}

		query := `
            INSERT INTO expenses (trip_id, ingest_id, merchant, location, transaction_date,
                                  category, subtotal, tax, tip, total, currency, items,
                                  paid_by, split_between, split_amounts, confidence_score,
                                  raw_source, created_at, updated_at)
            VALUES (:trip_id, :ingest_id, :merchant, :location, :transaction_date,
                    :category, :subtotal, :tax, :tip, :total, :currency, :items,
                    :paid_by, :split_between, :split_amounts, :confidence_score,
                    :raw_source, :created_at, :updated_at);
        `
		result, err := tx.NamedExecContext(ctx, query, expense)
		if err != nil {
			return fmt.Errorf("failed to insert expense for trip %d: %w", expense.TripID, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			expense.ID = id
		}

		return touchTripTx(ctx, tx, expense.TripID)
	})
}

// GetExpense retrieves an expense by id. Returns nil, nil if not found.
func (s *sqlxStore) GetExpense(ctx context.Context, expenseID int64) (*Expense, error) {
	var expense Expense
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	err := s.db.GetContext(ctx, &expense, query, expenseID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get expense %d: %w", expenseID, err)
	}
	return &expense, nil
}

// ListExpenses returns all expenses for a trip, newest transaction first.
func (s *sqlxStore) ListExpenses(ctx context.Context, tripID int64) ([]*Expense, error) {
	var expenses []*Expense
	query := `
        SELECT ` + expenseColumns + `
        FROM expenses
        WHERE trip_id = ?
        ORDER BY transaction_date DESC, id DESC;
    `
	if err := s.db.SelectContext(ctx, &expenses, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list expenses for trip %d: %w", tripID, err)
	}
	return expenses, nil
}

// ApplyExpenseSplit records split data on an expense, updates the trip's
// participant roster and activity, and writes the completed session, all in
// one transaction.
func (s *sqlxStore) ApplyExpenseSplit(ctx context.Context, expenseID int64, paidBy string, between StringList, amounts DecimalMap, participants StringList, session *Session) error {
	if paidBy == "" || len(amounts) == 0 {
		return errors.New("split requires a payer and per-participant amounts")
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var tripID int64
		err := tx.GetContext(ctx, &tripID, `SELECT trip_id FROM expenses WHERE id = ?`, expenseID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("expense %d not found", expenseID)
		}
		if err != nil {
			return fmt.Errorf("failed to load expense %d: %w", expenseID, err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
            UPDATE expenses
            SET paid_by = ?, split_between = ?, split_amounts = ?, updated_at = ?
            WHERE id = ?`,
			paidBy, between, amounts, now, expenseID); err != nil {
			return fmt.Errorf("failed to apply split to expense %d: %w", expenseID, err)
		}

		if participants != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE trips SET participants = ?, updated_at = ? WHERE id = ?`,
				participants, now, tripID); err != nil {
				return fmt.Errorf("failed to update participants of trip %d: %w", tripID, err)
			}
		}
		if err := touchTripTx(ctx, tx, tripID); err != nil {
			return err
		}

		if session != nil {
			if err := saveSessionTx(ctx, tx, session); err != nil {
				return err
			}
		}
		return nil
	})
}
