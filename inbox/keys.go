package inbox

import (
	"time"

	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/pkg/cache"
)

// Query tuning shared by the view-models.
const (
	ListStaleTime   = 60 * time.Second
	DetailStaleTime = 30 * time.Second
	ThreadStaleTime = 30 * time.Second
	UsersStaleTime  = 5 * time.Minute

	// QueryRetry is how many extra attempts a query gets for network and
	// server failures. Business and auth errors are never retried.
	QueryRetry      = 2
	queryRetryDelay = 300 * time.Millisecond
)

// Cache key layout. Everything a conversation mutation may touch lives
// under conversationsKey; everything about accounts under usersKey, so
// logout can drop both families by prefix.
var (
	conversationsKey = cache.K("conversations")
	listPrefix       = conversationsKey.Append("list")
	usersKey         = cache.K("users")
	selfKey          = usersKey.Append("me")

	// disabledDetailKey is read by detail queries without a valid id. It is
	// never written.
	disabledDetailKey = conversationsKey.Append("detail", "disabled")
)

// ListKey is the cache key of one conversation list page.
func ListKey(p models.ListParams) cache.Key {
	return listPrefix.Append(p.Page, p.PerPage, p.Sort, p.Order)
}

// ListPrefix covers every conversation list page.
func ListPrefix() cache.Key {
	return listPrefix
}

// DetailKey is the cache key of a conversation with its participants.
func DetailKey(id int64) cache.Key {
	return conversationsKey.Append("detail", id)
}

// MessagesPrefix covers every message thread of a conversation, whatever
// its page size.
func MessagesPrefix(conversationID int64) cache.Key {
	return conversationsKey.Append("messages", conversationID)
}

// MessagesKey is the cache key of a conversation's loaded message pages.
func MessagesKey(conversationID int64, perPage int) cache.Key {
	return MessagesPrefix(conversationID).Append(perPage)
}

// UsersKey is the cache key of one user directory page.
func UsersKey(query string, page, perPage int) cache.Key {
	return usersKey.Append("directory", query, page, perPage)
}

func queryOptions(staleTime time.Duration) cache.FetchOptions {
	return cache.FetchOptions{
		StaleTime:   staleTime,
		Retry:       QueryRetry,
		RetryDelay:  queryRetryDelay,
		ShouldRetry: client.IsRetryable,
	}
}
