// Command inbox is a terminal front end of the messaging feature. It signs
// in with HATCHDESK_EMAIL and HATCHDESK_PASSWORD and talks to the API at
// HATCHDESK_API_URL.
//
//	inbox list [-page N]
//	inbox show [-older N] <conversation-id>
//	inbox send <conversation-id> <text...>
//	inbox new [-title T] <user-id...>
//	inbox users [query]
//	inbox watch
//	inbox register [-name N]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/config"
	"github.com/hatchlab/hatchdesk/inbox"
	"github.com/hatchlab/hatchdesk/pkg/i18n"
)

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("inbox: ")

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := i18n.LoadEmbedded(); err != nil {
		log.Fatalf("failed to load translations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli{
		cfg:  cfg,
		l:    i18n.NewLocalizer(cfg.Language),
		out:  os.Stdout,
		logs: log.New(os.Stderr, "inbox: ", 0),
	}

	if err := app.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Print(app.describe(err))
		os.Exit(1)
	}
}

const usage = `usage: inbox <command> [flags] [args]

commands:
  list      list conversations
  show      show a conversation and its messages
  send      send a message
  new       start a conversation
  users     search the user directory
  watch     print live updates until interrupted
  register  create the account named by HATCHDESK_EMAIL`

// cli holds what every command needs.
type cli struct {
	cfg  *config.ClientConfig
	l    *i18n.Localizer
	out  io.Writer
	logs *log.Logger
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return c.list(ctx, rest)
	case "show":
		return c.show(ctx, rest)
	case "send":
		return c.send(ctx, rest)
	case "new":
		return c.newConversation(ctx, rest)
	case "users":
		return c.users(ctx, rest)
	case "watch":
		return c.watch(ctx, rest)
	case "register":
		return c.register(ctx, rest)
	default:
		return errUsage
	}
}

// describe turns err into the line shown to the user. API failures get
// the localized message; anything else is printed as is.
func (c *cli) describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) || errors.Is(err, inbox.ErrEmptyMessage) ||
		errors.Is(err, inbox.ErrMessageTooLong) || errors.Is(err, inbox.ErrNoParticipants) {
		if msg := inbox.ErrorMessage(c.l, err); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// newClient builds an API client that logs refresh diagnostics to stderr.
func (c *cli) newClient() (*client.Client, error) {
	return client.New(client.Options{
		BaseURL: c.cfg.APIURL,
		Logger:  c.logs,
	})
}

// signIn builds a client and logs in with the configured credentials.
func (c *cli) signIn(ctx context.Context) (*client.Client, error) {
	if c.cfg.Email == "" || c.cfg.Password == "" {
		return nil, errors.New("HATCHDESK_EMAIL and HATCHDESK_PASSWORD must be set")
	}

	api, err := c.newClient()
	if err != nil {
		return nil, err
	}
	if _, err := api.Login(ctx, c.cfg.Email, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return api, nil
}

// open signs in and opens an inbox session.
func (c *cli) open(ctx context.Context) (*inbox.Session, error) {
	s, _, err := c.openWithClient(ctx)
	return s, err
}
