package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/inbox"
	"github.com/hatchlab/hatchdesk/pkg/i18n"
)

func newTestCLI(t *testing.T, lang string) (*cli, *bytes.Buffer) {
	t.Helper()
	require.NoError(t, i18n.LoadEmbedded())
	var out bytes.Buffer
	return &cli{
		cfg:  &config.ClientConfig{APIURL: "http://127.0.0.1:1", Language: lang, PerPage: 20},
		l:    i18n.NewLocalizer(lang),
		out:  &out,
		logs: log.New(&out, "", 0),
	}, &out
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	c, _ := newTestCLI(t, "en")

	assert.ErrorIs(t, c.run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, c.run(context.Background(), []string{"frobnicate"}), errUsage)
	assert.ErrorIs(t, c.run(context.Background(), []string{"send", "3"}), errUsage)
	assert.ErrorIs(t, c.run(context.Background(), []string{"list", "-nope"}), errUsage)
}

func TestCommandsNeedCredentials(t *testing.T) {
	c, _ := newTestCLI(t, "en")

	err := c.run(context.Background(), []string{"list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HATCHDESK_EMAIL")
}

func TestConversationArg(t *testing.T) {
	id, err := conversationArg([]string{"42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = conversationArg([]string{"0"})
	assert.Error(t, err)
	_, err = conversationArg([]string{"1", "2"})
	assert.ErrorIs(t, err, errUsage)
}

func TestDescribeLocalizesAPIErrors(t *testing.T) {
	notFound := fmt.Errorf("load: %w", &client.APIError{Status: http.StatusNotFound, Code: "not_found"})

	en, _ := newTestCLI(t, "en")
	tr, _ := newTestCLI(t, "tr_TR.UTF-8")
	assert.NotEqual(t, en.describe(notFound), tr.describe(notFound))
	assert.NotContains(t, en.describe(notFound), "api error")

	assert.Equal(t, en.l.T("composer.empty"), en.describe(inbox.ErrEmptyMessage))

	plain := errors.New("HATCHDESK_EMAIL and HATCHDESK_PASSWORD must be set")
	assert.Equal(t, plain.Error(), en.describe(plain))
}

func TestUserLabel(t *testing.T) {
	assert.Equal(t, "User 7", userLabel(nil, 7))
	assert.Equal(t, "Ada", userLabel(&chat.User{Name: "Ada", Email: "ada@example.com"}, 7))
	assert.Equal(t, "ada@example.com", userLabel(&chat.User{Email: "ada@example.com"}, 7))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestPrintListEmpty(t *testing.T) {
	c, out := newTestCLI(t, "en")
	c.printList(inbox.ListView{})
	assert.Equal(t, c.l.T("conversations.empty")+"\n", out.String())
}
