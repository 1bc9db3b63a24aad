package repository

import (
	"context"

	"github.com/hatchlab/hatchdesk/models"
)

// ConversationRepository stores conversations and their participants.
type ConversationRepository interface {
	// Create inserts conv and its participants in one transaction. conv.ID,
	// timestamps and the participants' ids are filled in.
	Create(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) error
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	// FindDirect returns the direct conversation between two users, or
	// pkg.ErrNotFound.
	FindDirect(ctx context.Context, userA, userB int64) (*models.Conversation, error)
	// ListForUser returns one page of the user's conversations with their
	// unread counts, and the total number of conversations the user is in.
	ListForUser(ctx context.Context, userID int64, p models.ListParams) ([]models.ConversationWithUnread, int, error)

	// GetParticipants returns the participants of each conversation with
	// their users, ordered by join order.
	GetParticipants(ctx context.Context, conversationIDs []int64) (map[int64][]models.ConversationParticipant, error)
	GetParticipant(ctx context.Context, conversationID, userID int64) (*models.ConversationParticipant, error)
	ParticipantUserIDs(ctx context.Context, conversationID int64) ([]int64, error)
}
