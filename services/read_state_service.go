package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/cache"
	"github.com/hatchlab/hatchdesk/repository"
	"github.com/hatchlab/hatchdesk/ws"
)

// ReadStateService moves read positions. Positions only move forward: a
// mark-read for an older message is accepted and ignored.
type ReadStateService interface {
	MarkRead(ctx context.Context, userID, conversationID int64, req *models.MarkReadRequest) error
}

type readStateService struct {
	readRepo     repository.ReadStateRepository
	messageRepo  repository.MessageRepository
	convRepo     repository.ConversationRepository
	conversation ConversationService
	listCache    *cache.ConversationCache
	hub          ws.EventPublisher
}

// NewReadStateService creates a ReadStateService. listCache may be nil.
func NewReadStateService(
	readRepo repository.ReadStateRepository,
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	conversation ConversationService,
	listCache *cache.ConversationCache,
	hub ws.EventPublisher,
) ReadStateService {
	return &readStateService{
		readRepo:     readRepo,
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		conversation: conversation,
		listCache:    listCache,
		hub:          hub,
	}
}

func (s *readStateService) MarkRead(ctx context.Context, userID, conversationID int64, req *models.MarkReadRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.conversation.RequireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	msg, err := s.messageRepo.GetByID(ctx, req.MessageID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: message %d does not exist", pkg.ErrBadRequest, req.MessageID)
		}
		return err
	}
	if msg.ConversationID != conversationID {
		return fmt.Errorf("%w: message %d is not in conversation %d", pkg.ErrBadRequest, req.MessageID, conversationID)
	}

	advanced, err := s.readRepo.MarkRead(ctx, conversationID, userID, req.MessageID)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	// Only the reader's unread counts change.
	if err := s.listCache.InvalidateLists(ctx, userID); err != nil {
		log.Printf("[read_state] failed to invalidate list cache: %v", err)
	}

	memberIDs, err := s.convRepo.ParticipantUserIDs(ctx, conversationID)
	if err != nil {
		log.Printf("[read_state] failed to load participants of conversation %d: %v", conversationID, err)
		return nil
	}
	s.hub.BroadcastToUsers(memberIDs, ws.Event{
		Op: ws.OpReadUpdate,
		Data: models.ReadUpdateData{
			ConversationID: conversationID,
			UserID:         userID,
			MessageID:      req.MessageID,
		},
	})

	return nil
}
