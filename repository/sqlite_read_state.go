package repository

import (
	"context"
	"fmt"

	"github.com/hatchlab/hatchdesk/database"
	"github.com/hatchlab/hatchdesk/pkg"
)

type sqliteReadStateRepo struct {
	db database.TxQuerier
}

// NewSQLiteReadStateRepo returns a ReadStateRepository over db.
func NewSQLiteReadStateRepo(db database.TxQuerier) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) MarkRead(ctx context.Context, conversationID, userID, messageID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_message_id = ?
		WHERE conversation_id = ? AND user_id = ?
		  AND (last_read_message_id IS NULL OR last_read_message_id < ?)`,
		messageID, conversationID, userID, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing changed: either the position was already further, or the user
	// is not in the conversation.
	var exists int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("%w: not a participant", pkg.ErrNotFound)
	}
	return false, nil
}
