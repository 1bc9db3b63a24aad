package services

import (
	"context"
	"fmt"
	"log"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg"
	"github.com/hatchlab/hatchdesk/pkg/cache"
	"github.com/hatchlab/hatchdesk/repository"
	"github.com/hatchlab/hatchdesk/ws"
)

// MessageService lists and sends messages in conversations the caller
// participates in.
type MessageService interface {
	// List returns one page of messages, newest first.
	List(ctx context.Context, userID, conversationID int64, page, perPage int) ([]models.Message, models.Pagination, error)
	Send(ctx context.Context, userID, conversationID int64, req *models.SendMessageRequest) (*models.Message, error)
}

type messageService struct {
	messageRepo  repository.MessageRepository
	convRepo     repository.ConversationRepository
	conversation ConversationService
	listCache    *cache.ConversationCache
	hub          ws.EventPublisher
}

// NewMessageService creates a MessageService. listCache may be nil.
func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	conversation ConversationService,
	listCache *cache.ConversationCache,
	hub ws.EventPublisher,
) MessageService {
	return &messageService{
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		conversation: conversation,
		listCache:    listCache,
		hub:          hub,
	}
}

func (s *messageService) List(ctx context.Context, userID, conversationID int64, page, perPage int) ([]models.Message, models.Pagination, error) {
	if err := s.conversation.RequireParticipant(ctx, conversationID, userID); err != nil {
		return nil, models.Pagination{}, err
	}

	p := models.ListParams{Page: page, PerPage: perPage}.Normalize()

	messages, total, err := s.messageRepo.ListByConversation(ctx, conversationID, p.PerPage, models.Offset(p.Page, p.PerPage))
	if err != nil {
		return nil, models.Pagination{}, err
	}

	return messages, models.NewPagination(p.Page, p.PerPage, total), nil
}

// Send stores the message and notifies every participant, the sender
// included so their other connections refresh too.
func (s *messageService) Send(ctx context.Context, userID, conversationID int64, req *models.SendMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.conversation.RequireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	full.Sender.PasswordHash = ""

	memberIDs, err := s.convRepo.ParticipantUserIDs(ctx, conversationID)
	if err != nil {
		log.Printf("[messages] failed to load participants of conversation %d: %v", conversationID, err)
		return full, nil
	}

	if err := s.listCache.InvalidateLists(ctx, memberIDs...); err != nil {
		log.Printf("[messages] failed to invalidate list cache: %v", err)
	}
	s.hub.BroadcastToUsers(memberIDs, ws.Event{
		Op:   ws.OpMessageCreate,
		Data: models.MessageCreateData{ConversationID: conversationID, Message: *full},
	})

	return full, nil
}
