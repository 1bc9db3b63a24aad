package inbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/models"
)

func TestSendInvalidatesOnlyTheOwningConversation(t *testing.T) {
	api, s := newThreadFixture(t, 5, 10)
	api.addConversation(7, false, 2)
	api.addMessages(7, 2, 100)
	ctx := context.Background()

	other := s.Thread(7, nil)
	_, err := other.Load(ctx)
	require.NoError(t, err)
	_, err = s.Detail(7).Load(ctx)
	require.NoError(t, err)
	_, err = s.Detail(42).Load(ctx)
	require.NoError(t, err)
	_, err = s.List().Load(ctx)
	require.NoError(t, err)

	var intents []ScrollIntent
	thread := s.Thread(42, func(in ScrollIntent) { intents = append(intents, in) })
	_, err = thread.Load(ctx)
	require.NoError(t, err)

	composer := s.Composer(thread)
	composer.SetDraft("  hello there  ")
	msg, err := composer.Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
	assert.Empty(t, composer.Draft())

	// The thread was refetched and now ends with the new message.
	msgs := thread.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, msg.ID, msgs[len(msgs)-1].ID)
	assert.Equal(t, []ScrollIntent{{}, {Smooth: true, Delay: SendScrollDelay}}, intents)

	qc := s.Cache()
	assert.True(t, qc.IsStale(ListKey(s.List().Params())))
	assert.True(t, qc.IsStale(DetailKey(42)))
	assert.False(t, qc.IsStale(DetailKey(7)), "other conversations are untouched")
	assert.False(t, qc.IsStale(MessagesKey(7, 10)))
}

func TestFailedSendKeepsDraft(t *testing.T) {
	api, s := newThreadFixture(t, 5, 10)
	api.SendMessageFunc = func(ctx context.Context, conversationID int64, content string) (chat.Message, error) {
		return chat.Message{}, errors.New("connection reset")
	}
	thread := s.Thread(42, nil)
	composer := s.Composer(thread)

	composer.SetDraft("don't lose me")
	_, err := composer.Send(context.Background())
	require.Error(t, err)
	assert.Equal(t, "don't lose me", composer.Draft())
	assert.False(t, composer.Sending())
}

func TestSendValidatesDraft(t *testing.T) {
	api, s := newThreadFixture(t, 5, 10)
	composer := s.Composer(s.Thread(42, nil))

	composer.SetDraft("   ")
	_, err := composer.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyMessage)

	composer.SetDraft(strings.Repeat("x", models.MaxMessageLength+1))
	_, err = composer.Send(context.Background())
	assert.ErrorIs(t, err, ErrMessageTooLong)

	assert.Zero(t, api.count("SendMessage"))
}

func TestDraftEditedDuringSendIsKept(t *testing.T) {
	api, s := newThreadFixture(t, 5, 10)
	composer := s.Composer(s.Thread(42, nil))

	api.SendMessageFunc = func(ctx context.Context, conversationID int64, content string) (chat.Message, error) {
		composer.SetDraft("second thought")
		return chat.Message{ID: 6, ConversationID: conversationID, Content: content}, nil
	}

	composer.SetDraft("first")
	_, err := composer.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second thought", composer.Draft())
}
