package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/vmihailenco/msgpack/v5"
)

// ConversationListTTL bounds how long a cached list page may lag behind the
// database if an invalidation is ever missed.
const ConversationListTTL = 2 * time.Minute

// ConversationListPage is a cached page of a user's conversation list.
type ConversationListPage struct {
	Items []models.ConversationWithUnread `msgpack:"items"`
	Total int                             `msgpack:"total"`
}

// ConversationCache caches conversation list pages per user in Redis,
// msgpack-encoded. Every method is a no-op on a nil receiver or a nil Redis.
type ConversationCache struct {
	redis *RedisCache
}

// NewConversationCache returns a cache backed by redis, which may be nil.
func NewConversationCache(redis *RedisCache) *ConversationCache {
	return &ConversationCache{redis: redis}
}

func listKey(userID int64, p models.ListParams) string {
	return fmt.Sprintf("convlist:%d:%d:%d:%s:%s", userID, p.Page, p.PerPage, p.Sort, p.Order)
}

func listPattern(userID int64) string {
	return fmt.Sprintf("convlist:%d:*", userID)
}

// GetList returns the cached page for (userID, params).
func (cc *ConversationCache) GetList(ctx context.Context, userID int64, p models.ListParams) (*ConversationListPage, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}
	data, err := cc.redis.Get(ctx, listKey(userID, p))
	if err != nil || data == nil {
		return nil, false
	}

	var page ConversationListPage
	if err := msgpack.Unmarshal(data, &page); err != nil {
		return nil, false
	}
	return &page, true
}

// SetList caches a page for (userID, params).
func (cc *ConversationCache) SetList(ctx context.Context, userID int64, p models.ListParams, page *ConversationListPage) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(page)
	if err != nil {
		return err
	}
	return cc.redis.Set(ctx, listKey(userID, p), data, ConversationListTTL)
}

// InvalidateLists drops every cached list page of the given users.
func (cc *ConversationCache) InvalidateLists(ctx context.Context, userIDs ...int64) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	for _, id := range userIDs {
		if err := cc.redis.DeletePattern(ctx, listPattern(id)); err != nil {
			return err
		}
	}
	return nil
}
