package repository

import (
	"context"

	"github.com/hatchlab/hatchdesk/models"
)

// MessageRepository stores messages.
//
// Pages are offset-based and newest first: page 1 holds the newest
// messages. A message that arrives while a client pages back shifts the
// later pages by one; clients tolerate that by deduplicating on id.
type MessageRepository interface {
	// Create inserts message and moves its conversation's last_message_id
	// and updated_at, in one transaction.
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	// GetByIDs returns the messages that exist among ids, with senders.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Message, error)
	ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, int, error)
}
