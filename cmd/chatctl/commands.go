package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"duochat/internal/app/message"
	"duochat/internal/app/peer"
	"duochat/internal/app/presence"
	"duochat/internal/app/user"
)

func (o *rootOptions) login(ctx context.Context) (*peer.HTTPMessageAPI, user.User, error) {
	if o.email == "" || o.password == "" {
		return nil, user.User{}, errors.New("--email and --password are required")
	}

	api, err := peer.NewHTTPMessageAPI(o.server)
	if err != nil {
		return nil, user.User{}, err
	}

	me, err := api.Login(ctx, o.email, o.password)
	if err != nil {
		return nil, user.User{}, fmt.Errorf("login: %w", err)
	}

	return api, me, nil
}

// resolvePeer finds a contact by ID or email.
func resolvePeer(ctx context.Context, api *peer.HTTPMessageAPI, ref string) (user.User, error) {
	contacts, err := api.Contacts(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("list contacts: %w", err)
	}

	for _, c := range contacts {
		if c.ID == ref || strings.EqualFold(c.Email, ref) {
			return c, nil
		}
	}

	return user.User{}, fmt.Errorf("no contact matches %q", ref)
}

func newSignupCommand(opts *rootOptions) *cobra.Command {
	var fullName string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fullName == "" || opts.email == "" || opts.password == "" {
				return errors.New("--name, --email and --password are required")
			}

			api, err := peer.NewHTTPMessageAPI(opts.server)
			if err != nil {
				return err
			}

			u, err := api.Signup(cmd.Context(), fullName, opts.email, opts.password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.FullName, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	return cmd
}

func newContactsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List other users",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := opts.login(cmd.Context())
			if err != nil {
				return err
			}

			contacts, err := api.Contacts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range contacts {
				fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.FullName, c.Email)
			}
			return nil
		},
	}
}

func newSendCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <text>",
		Short: "Send one message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := opts.login(cmd.Context())
			if err != nil {
				return err
			}

			to, err := resolvePeer(cmd.Context(), api, args[0])
			if err != nil {
				return err
			}

			msg, err := api.SendMessage(cmd.Context(), to.ID, message.SendInput{Text: args[1]})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
			return nil
		},
	}
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer>",
		Short: "Open a live conversation; each input line is sent as a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, opts *rootOptions, ref string, in io.Reader, out io.Writer) error {
	api, me, err := opts.login(ctx)
	if err != nil {
		return err
	}

	to, err := resolvePeer(ctx, api, ref)
	if err != nil {
		return err
	}

	history, err := api.Conversation(ctx, to.ID)
	if err != nil {
		return err
	}

	ch, err := peer.DialSocket(ctx, api.SocketURL(), api.Jar(), nil)
	if err != nil {
		return err
	}

	var store *peer.Store
	view := &chatView{out: out, me: me, peer: to}
	store = peer.NewStore(ch, api, peer.WithObserver(func(ev presence.EventType) {
		view.render(store, ev)
	}))

	sub := store.Subscribe()
	defer sub.Close()

	store.SetActivePeer(to.ID, history)
	view.flush(store)

	lines := make(chan string)
	go scanLines(in, lines)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ch.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errSessionEnded
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case text, ok := <-lines:
				if !ok {
					return errSessionEnded
				}
				sendLine(gctx, store, view, text)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errSessionEnded) {
		return err
	}
	return nil
}

// errSessionEnded stops the chat loop when input ends or the server hangs up.
var errSessionEnded = errors.New("session ended")

// scanLines forwards non-empty input lines until in is exhausted. It is not
// tied to a context because a blocked read cannot be interrupted.
func scanLines(in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			lines <- text
		}
	}
}

func sendLine(ctx context.Context, store *peer.Store, view *chatView, text string) {
	_ = store.EmitTyping()

	if _, err := store.SendMessage(ctx, text, ""); err != nil {
		view.printf("! %v\n", err)
		return
	}
	view.flush(store)
}

// chatView writes the conversation to out. It is called from the socket read
// loop and the input loop, so every write holds mu.
type chatView struct {
	out  io.Writer
	me   user.User
	peer user.User

	mu sync.Mutex
	// printed counts the entries of the store's log already written.
	printed int
}

func (v *chatView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

// flush prints the log entries appended since the last flush. Messages the
// store drops (other peers, duplicate IDs) never reach the log and are not printed.
func (v *chatView) flush(store *peer.Store) {
	v.mu.Lock()
	defer v.mu.Unlock()

	msgs := store.Messages()
	if v.printed >= len(msgs) {
		return
	}
	for _, m := range msgs[v.printed:] {
		v.printMessageLocked(m)
	}
	v.printed = len(msgs)
}

func (v *chatView) printMessageLocked(m message.Message) {
	who := v.peer.FullName
	if m.SenderID == v.me.ID {
		who = "you"
	}

	body := m.Text
	if m.Image != "" {
		body = strings.TrimSpace(body + " [image " + m.Image + "]")
	}

	fmt.Fprintf(v.out, "%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, body)
}

func (v *chatView) render(store *peer.Store, ev presence.EventType) {
	switch ev {
	case presence.EventOnlineUsers:
		state := "offline"
		if store.IsOnline(v.peer.ID) {
			state = "online"
		}
		v.printf("* %s is %s\n", v.peer.FullName, state)
	case presence.EventNewMessage:
		v.flush(store)
	case presence.EventTyping:
		if store.IsTyping(v.peer.ID) {
			v.printf("* %s is typing...\n", v.peer.FullName)
		}
	}
}
