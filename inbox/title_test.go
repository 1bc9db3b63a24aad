package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hatchlab/hatchdesk/chat"
)

const selfID = 1

func participant(userID int64, u *chat.User) chat.Participant {
	return chat.Participant{UserID: userID, User: u}
}

func TestDeriveTitleDirectIgnoresParticipantOrder(t *testing.T) {
	self := participant(selfID, &chat.User{ID: selfID, Name: "Ada", Email: "ada@example.com"})

	cases := []struct {
		name  string
		other chat.Participant
		want  string
	}{
		{"name", participant(2, &chat.User{ID: 2, Name: "Bob", Email: "bob@example.com"}), "Bob"},
		{"email when nameless", participant(2, &chat.User{ID: 2, Email: "bob@example.com"}), "bob@example.com"},
		{"id when anonymous", participant(2, &chat.User{ID: 2}), "User 2"},
		{"id without user", participant(9, nil), "User 9"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			forward := chat.Conversation{Participants: []chat.Participant{self, tc.other}}
			backward := chat.Conversation{Participants: []chat.Participant{tc.other, self}}

			assert.Equal(t, tc.want, DeriveTitle(forward, selfID))
			assert.Equal(t, tc.want, DeriveTitle(backward, selfID))
		})
	}
}

func TestDeriveTitleExplicitTitleWins(t *testing.T) {
	conv := chat.Conversation{
		Title:        "Demo day prep",
		Participants: []chat.Participant{participant(2, &chat.User{Name: "Bob"})},
	}
	assert.Equal(t, "Demo day prep", DeriveTitle(conv, selfID))
}

func TestDeriveTitleGroup(t *testing.T) {
	conv := chat.Conversation{
		IsGroup: true,
		Participants: []chat.Participant{
			participant(selfID, &chat.User{Name: "Ada"}),
			participant(2, &chat.User{Name: "Bob"}),
			participant(3, &chat.User{Email: "cy@example.com"}),
			participant(4, &chat.User{}),
		},
	}
	assert.Equal(t, "Bob, cy@example.com", DeriveTitle(conv, selfID))
}

func TestDeriveTitleGroupFallback(t *testing.T) {
	conv := chat.Conversation{
		IsGroup: true,
		Participants: []chat.Participant{
			participant(selfID, &chat.User{Name: "Ada"}),
			participant(2, &chat.User{ID: 2}),
			participant(3, nil),
		},
	}
	assert.Equal(t, "Group conversation", DeriveTitle(conv, selfID))

	empty := chat.Conversation{IsGroup: true}
	assert.Equal(t, GroupTitleFallback, DeriveTitle(empty, selfID))
}

func TestDeriveTitleDirectWithoutOther(t *testing.T) {
	conv := chat.Conversation{Participants: []chat.Participant{participant(selfID, &chat.User{Name: "Ada"})}}
	assert.Equal(t, DirectTitleFallback, DeriveTitle(conv, selfID))
}

func TestUnreadBadge(t *testing.T) {
	assert.Equal(t, "", UnreadBadge(0))
	assert.Equal(t, "", UnreadBadge(-3))
	assert.Equal(t, "5", UnreadBadge(5))
	assert.Equal(t, "120", UnreadBadge(120))
}

func TestAvatarStack(t *testing.T) {
	var parts []chat.Participant
	for id := int64(1); id <= 6; id++ {
		parts = append(parts, participant(id, &chat.User{ID: id, AvatarURL: "https://cdn.example.com/a.png"}))
	}

	stack := AvatarStack(chat.Conversation{Participants: parts}, selfID)
	if assert.Len(t, stack, MaxAvatars) {
		assert.Equal(t, []int64{2, 3, 4}, []int64{stack[0].ID, stack[1].ID, stack[2].ID})
	}

	direct := chat.Conversation{Participants: []chat.Participant{parts[0], participant(7, nil)}}
	stack = AvatarStack(direct, selfID)
	assert.Equal(t, []chat.User{{ID: 7}}, stack)
}

func TestNewListRow(t *testing.T) {
	deleted := baseTime
	conv := chat.ConversationWithUnread{
		Conversation: chat.Conversation{
			ID:           42,
			Participants: []chat.Participant{participant(selfID, nil), participant(2, &chat.User{Name: "Bob"})},
			LastMessage:  &chat.Message{ID: 9, Content: "see you"},
			UpdatedAt:    baseTime,
		},
		UnreadCount: 0,
	}

	row := NewListRow(conv, selfID)
	assert.Equal(t, "Bob", row.Title)
	assert.Empty(t, row.Badge)
	assert.Equal(t, "see you", row.Preview)
	assert.Equal(t, baseTime, row.UpdatedAt)

	conv.UnreadCount = 5
	conv.LastMessage.DeletedAt = &deleted
	row = NewListRow(conv, selfID)
	assert.Equal(t, "5", row.Badge)
	assert.Empty(t, row.Preview)
}
