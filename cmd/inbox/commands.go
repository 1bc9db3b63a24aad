package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hatchlab/hatchdesk/chat"
	"github.com/hatchlab/hatchdesk/client"
	"github.com/hatchlab/hatchdesk/inbox"
	"github.com/hatchlab/hatchdesk/models"
)

const timeLayout = "2006-01-02 15:04"

// parseFlags parses a command's flags. Errors and -h both end in the
// usage message.
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	list := s.List()
	list.SetPage(*page)
	view, err := list.Load(ctx)
	if err != nil {
		return err
	}
	c.printList(view)
	return nil
}

func (c *cli) printList(view inbox.ListView) {
	if len(view.Rows) == 0 {
		fmt.Fprintln(c.out, c.l.T("conversations.empty"))
		return
	}
	for _, row := range view.Rows {
		badge := ""
		if row.Badge != "" {
			badge = " (" + row.Badge + ")"
		}
		fmt.Fprintf(c.out, "%6d  %s%s\n", row.ID, row.Title, badge)
		if row.Preview != "" {
			fmt.Fprintf(c.out, "        %s\n", truncate(row.Preview, 72))
		}
	}
	p := view.Pagination
	fmt.Fprintf(c.out, "page %d, %d conversations\n", p.Page, p.Total)
}

func (c *cli) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	older := fs.Int("older", 0, "number of older pages to load")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := conversationArg(fs.Args())
	if err != nil {
		return err
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	detail := s.Detail(id)
	view, err := detail.Load(ctx)
	if err != nil {
		return err
	}

	thread := s.Thread(id, nil)
	messages, err := thread.Load(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < *older && thread.HasOlder(); i++ {
		if messages, err = thread.LoadOlder(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "%s\n", view.Title)
	names := make([]string, 0, len(view.Conversation.Participants))
	for _, p := range view.Conversation.Participants {
		names = append(names, userLabel(p.User, p.UserID))
	}
	fmt.Fprintf(c.out, "participants: %s\n\n", strings.Join(names, ", "))

	if len(messages) == 0 {
		fmt.Fprintln(c.out, c.l.T("conversations.noMessages"))
	}
	for _, m := range messages {
		c.printMessage(m)
	}
	if thread.HasOlder() {
		fmt.Fprintln(c.out, "(older messages available, use -older)")
	}
	if err := thread.MarkReadErr(); err != nil {
		c.logs.Printf("could not mark the conversation read: %s", c.describe(err))
	}
	return nil
}

func (c *cli) printMessage(m chat.Message) {
	content := m.Content
	if m.DeletedAt != nil {
		content = "(deleted)"
	}
	fmt.Fprintf(c.out, "[%s] %s: %s\n",
		m.CreatedAt.Local().Format(timeLayout), userLabel(m.Sender, m.SenderID), content)
}

func (c *cli) send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := conversationArg(args[:1])
	if err != nil {
		return err
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	composer := s.Composer(s.Thread(id, nil))
	composer.SetDraft(strings.Join(args[1:], " "))
	msg, err := composer.Send(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "sent message %d\n", msg.ID)
	return nil
}

func (c *cli) newConversation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	title := fs.String("title", "", "conversation title")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var created int64
	form := s.NewConversationForm(func(id int64) { created = id })
	for _, arg := range fs.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid user id %q", arg)
		}
		form.Toggle(id)
	}
	form.SetTitle(*title)

	conv, err := form.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d  %s\n", created, inbox.DeriveTitle(conv, s.Self().ID))
	return nil
}

func (c *cli) users(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	form := s.NewConversationForm(nil)
	result, err := form.Candidates(ctx, strings.Join(fs.Args(), " "), *page, c.cfg.PerPage)
	if err != nil {
		return err
	}
	for _, u := range result.Items {
		fmt.Fprintf(c.out, "%6d  %s <%s>\n", u.ID, userLabel(&u, u.ID), u.Email)
	}
	return nil
}

// watch prints one line per live event until interrupted. Each event
// invalidates the session cache first, so the reloaded list reflects it.
func (c *cli) watch(ctx context.Context, _ []string) error {
	s, api, err := c.openWithClient(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(c.out, "watching for updates, press Ctrl-C to stop")
	err = api.Subscribe(ctx, func(ev models.LiveEvent) {
		s.Apply(ev)
		c.printEvent(ctx, s, ev)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *cli) printEvent(ctx context.Context, s *inbox.Session, ev models.LiveEvent) {
	var conversationID int64
	switch ev.Op {
	case models.EventMessageCreate:
		var data models.MessageCreateData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		conversationID = data.ConversationID
		sender := data.Message.Sender
		label := fmt.Sprintf("User %d", data.Message.SenderID)
		if sender != nil {
			label = userLabel(&chat.User{Name: deref(sender.Name), Email: sender.Email}, sender.ID)
		}
		fmt.Fprintf(c.out, "[%s] new message in %d from %s: %s\n",
			time.Now().Format(timeLayout), conversationID, label, truncate(data.Message.Content, 72))
	case models.EventConversationCreate:
		var data models.ConversationCreateData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		conversationID = data.Conversation.ID
		fmt.Fprintf(c.out, "[%s] added to conversation %d\n", time.Now().Format(timeLayout), conversationID)
	default:
		return
	}

	view, err := s.List().Load(ctx)
	if err != nil {
		return
	}
	for _, row := range view.Rows {
		if row.ID == conversationID && row.Badge != "" {
			fmt.Fprintf(c.out, "        %s: %s unread\n", row.Title, row.Badge)
		}
	}
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if c.cfg.Email == "" || c.cfg.Password == "" {
		return errors.New("HATCHDESK_EMAIL and HATCHDESK_PASSWORD must be set")
	}

	api, err := c.newClient()
	if err != nil {
		return err
	}
	u, err := api.Register(ctx, models.RegisterRequest{Email: c.cfg.Email, Password: c.cfg.Password, Name: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "registered user %d <%s>\n", u.ID, u.Email)
	return nil
}

// openWithClient is open that also returns the client, for commands that
// subscribe to live events.
func (c *cli) openWithClient(ctx context.Context) (*inbox.Session, *client.Client, error) {
	api, err := c.signIn(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := inbox.Open(ctx, api, inbox.Options{PerPage: c.cfg.PerPage, Logger: c.logs})
	if err != nil {
		return nil, nil, err
	}
	return s, api, nil
}

func conversationArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id := inbox.ParseConversationID(args[0])
	if id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", args[0])
	}
	return id, nil
}

func userLabel(u *chat.User, id int64) string {
	switch {
	case u == nil:
		return fmt.Sprintf("User %d", id)
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return fmt.Sprintf("User %d", id)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
