package repository

import "context"

// ReadStateRepository moves participants' read positions.
type ReadStateRepository interface {
	// MarkRead raises the user's last_read_message_id in the conversation to
	// messageID. A position at or past messageID is left alone; advanced
	// reports whether the row changed. A user who is not a participant gets
	// pkg.ErrNotFound.
	MarkRead(ctx context.Context, conversationID, userID, messageID int64) (advanced bool, err error)
}
