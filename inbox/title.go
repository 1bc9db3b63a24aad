package inbox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hatchlab/hatchdesk/chat"
)

const (
	// GroupTitleFallback titles an untitled group nobody in it can be named for.
	GroupTitleFallback = "Group conversation"
	// DirectTitleFallback titles a direct conversation without another participant.
	DirectTitleFallback = "Direct conversation"

	// MaxAvatars is the size of a list row's avatar stack.
	MaxAvatars = 3
)

// DeriveTitle returns the display title of conv for the user selfID.
//
// An explicit title wins. A direct conversation is named after the other
// participant (name, else email, else "User {id}"). A group is named after
// its other participants, joined with ", ".
func DeriveTitle(conv chat.Conversation, selfID int64) string {
	if conv.Title != "" {
		return conv.Title
	}

	if !conv.IsGroup {
		other, ok := otherParticipant(conv, selfID)
		if !ok {
			return DirectTitleFallback
		}
		if name := displayName(other); name != "" {
			return name
		}
		return fmt.Sprintf("User %d", other.UserID)
	}

	var names []string
	for _, p := range conv.Participants {
		if p.UserID == selfID {
			continue
		}
		if name := displayName(p); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return GroupTitleFallback
	}
	return strings.Join(names, ", ")
}

// UnreadBadge returns the badge text for an unread count; "" means no badge.
func UnreadBadge(unread int) string {
	if unread <= 0 {
		return ""
	}
	return strconv.Itoa(unread)
}

// AvatarStack returns up to MaxAvatars non-self participants in participant
// order. Participants without an embedded user get a user carrying only
// their id.
func AvatarStack(conv chat.Conversation, selfID int64) []chat.User {
	stack := make([]chat.User, 0, MaxAvatars)
	for _, p := range conv.Participants {
		if len(stack) == MaxAvatars {
			break
		}
		if p.UserID == selfID {
			continue
		}
		if p.User != nil {
			stack = append(stack, *p.User)
		} else {
			stack = append(stack, chat.User{ID: p.UserID})
		}
	}
	return stack
}

// otherParticipant picks the non-self participant of a direct conversation.
// The lowest user id wins if the data holds more than one, so the result
// never depends on participant order.
func otherParticipant(conv chat.Conversation, selfID int64) (chat.Participant, bool) {
	var (
		other chat.Participant
		found bool
	)
	for _, p := range conv.Participants {
		if p.UserID == selfID {
			continue
		}
		if !found || p.UserID < other.UserID {
			other, found = p, true
		}
	}
	return other, found
}

func displayName(p chat.Participant) string {
	if p.User == nil {
		return ""
	}
	return p.User.DisplayName()
}
