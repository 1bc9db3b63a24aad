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

// ConversationService creates and reads conversations. Users only ever see
// conversations they participate in; any other id is reported as not found.
type ConversationService interface {
	// Create makes a conversation between the creator and req's
	// participants. Creating a direct conversation that already exists
	// returns the existing one with created=false.
	Create(ctx context.Context, creatorID int64, req *models.CreateConversationRequest) (conv *models.Conversation, created bool, err error)
	Get(ctx context.Context, userID, conversationID int64) (*models.Conversation, error)
	List(ctx context.Context, userID int64, p models.ListParams) ([]models.ConversationWithUnread, models.Pagination, error)
	// RequireParticipant returns pkg.ErrNotFound unless userID is in the
	// conversation.
	RequireParticipant(ctx context.Context, conversationID, userID int64) error
}

type conversationService struct {
	convRepo    repository.ConversationRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	listCache   *cache.ConversationCache
	hub         ws.EventPublisher
}

// NewConversationService creates a ConversationService. listCache may be
// nil.
func NewConversationService(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	listCache *cache.ConversationCache,
	hub ws.EventPublisher,
) ConversationService {
	return &conversationService{
		convRepo:    convRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		listCache:   listCache,
		hub:         hub,
	}
}

func (s *conversationService) Create(ctx context.Context, creatorID int64, req *models.CreateConversationRequest) (*models.Conversation, bool, error) {
	// The creator is always a participant; listing them is allowed but
	// redundant.
	others := req.ParticipantIDs[:0:0]
	for _, id := range req.ParticipantIDs {
		if id != creatorID {
			others = append(others, id)
		}
	}
	req.ParticipantIDs = others

	if err := req.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	users, err := s.userRepo.GetByIDs(ctx, req.ParticipantIDs)
	if err != nil {
		return nil, false, err
	}
	for _, id := range req.ParticipantIDs {
		if _, ok := users[id]; !ok {
			return nil, false, fmt.Errorf("%w: user %d does not exist", pkg.ErrBadRequest, id)
		}
	}

	isGroup := req.Group()
	if !isGroup {
		existing, err := s.convRepo.FindDirect(ctx, creatorID, req.ParticipantIDs[0])
		if err == nil {
			conv, err := s.Get(ctx, creatorID, existing.ID)
			return conv, false, err
		}
		if !errors.Is(err, pkg.ErrNotFound) {
			return nil, false, err
		}
	}

	conv := &models.Conversation{Title: req.Title, IsGroup: isGroup}
	participants := []models.ConversationParticipant{{UserID: creatorID, Role: models.ParticipantRoleOwner}}
	for _, id := range req.ParticipantIDs {
		participants = append(participants, models.ConversationParticipant{UserID: id, Role: models.ParticipantRoleMember})
	}

	if err := s.convRepo.Create(ctx, conv, participants); err != nil {
		return nil, false, err
	}

	full, err := s.Get(ctx, creatorID, conv.ID)
	if err != nil {
		return nil, false, err
	}

	memberIDs := participantUserIDs(full.Participants)
	s.invalidateLists(ctx, memberIDs...)
	s.hub.BroadcastToUsers(memberIDs, ws.Event{
		Op:   ws.OpConversationCreate,
		Data: models.ConversationCreateData{Conversation: *full},
	})

	return full, true, nil
}

func (s *conversationService) Get(ctx context.Context, userID, conversationID int64) (*models.Conversation, error) {
	if err := s.RequireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	parts, err := s.convRepo.GetParticipants(ctx, []int64{conv.ID})
	if err != nil {
		return nil, err
	}
	conv.Participants = parts[conv.ID]

	if conv.LastMessageID != nil {
		msgs, err := s.messageRepo.GetByIDs(ctx, []int64{*conv.LastMessageID})
		if err != nil {
			return nil, err
		}
		if m, ok := msgs[*conv.LastMessageID]; ok {
			conv.LastMessage = &m
		}
	}

	return conv, nil
}

func (s *conversationService) List(ctx context.Context, userID int64, p models.ListParams) ([]models.ConversationWithUnread, models.Pagination, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if cached, ok := s.listCache.GetList(ctx, userID, p); ok {
		return cached.Items, models.NewPagination(p.Page, p.PerPage, cached.Total), nil
	}

	convs, total, err := s.convRepo.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	if err := s.attachListDetails(ctx, convs); err != nil {
		return nil, models.Pagination{}, err
	}

	if err := s.listCache.SetList(ctx, userID, p, &cache.ConversationListPage{Items: convs, Total: total}); err != nil {
		log.Printf("[conversations] failed to cache list for user %d: %v", userID, err)
	}

	return convs, models.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *conversationService) RequireParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if errors.Is(err, pkg.ErrNotFound) {
		return fmt.Errorf("%w: conversation %d", pkg.ErrNotFound, conversationID)
	}
	return err
}

// attachListDetails loads participants and last messages for a page of
// rows in two queries.
func (s *conversationService) attachListDetails(ctx context.Context, convs []models.ConversationWithUnread) error {
	if len(convs) == 0 {
		return nil
	}

	ids := make([]int64, len(convs))
	var lastIDs []int64
	for i, c := range convs {
		ids[i] = c.ID
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	parts, err := s.convRepo.GetParticipants(ctx, ids)
	if err != nil {
		return err
	}
	lastMessages, err := s.messageRepo.GetByIDs(ctx, lastIDs)
	if err != nil {
		return err
	}

	for i := range convs {
		convs[i].Participants = parts[convs[i].ID]
		if convs[i].LastMessageID != nil {
			if m, ok := lastMessages[*convs[i].LastMessageID]; ok {
				convs[i].LastMessage = &m
			}
		}
	}
	return nil
}

func (s *conversationService) invalidateLists(ctx context.Context, userIDs ...int64) {
	if err := s.listCache.InvalidateLists(ctx, userIDs...); err != nil {
		log.Printf("[conversations] failed to invalidate list cache: %v", err)
	}
}

func participantUserIDs(parts []models.ConversationParticipant) []int64 {
	ids := make([]int64, len(parts))
	for i, p := range parts {
		ids[i] = p.UserID
	}
	return ids
}
