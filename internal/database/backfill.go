package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/wanderlog/wanderbot/internal/scope"
)

// BackfillChatScopes assigns a chat scope to trip and session rows that
// predate group-chat support. Legacy rows were written from private chats
// only, where the chat id always equals the user id, so the backfill sets
// chat_id := user_id and chat_type := private. Runs at startup, in one
// transaction, and is idempotent: rows with a chat_id are never touched.
// Returns the number of rows updated.
func (s *sqlxStore) BackfillChatScopes(ctx context.Context) (int64, error) {
	var updated int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
            UPDATE trips
            SET chat_id = user_id, chat_type = ?
            WHERE chat_id IS NULL`, string(scope.KindPrivate))
		if err != nil {
			return fmt.Errorf("failed to backfill trip chat scopes: %w", err)
		}
		tripRows, _ := result.RowsAffected()

		result, err = tx.ExecContext(ctx, `
            UPDATE sessions
            SET chat_id = user_id, chat_type = ?
            WHERE chat_id IS NULL`, string(scope.KindPrivate))
		if err != nil {
			return fmt.Errorf("failed to backfill session chat scopes: %w", err)
		}
		sessionRows, _ := result.RowsAffected()

		updated = tripRows + sessionRows
		return nil
	})
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.logger.InfoContext(ctx, "Backfilled chat scopes on legacy rows", "rows", updated)
	} else {
		s.logger.DebugContext(ctx, "No legacy rows to backfill")
	}
	return updated, nil
}
