package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"

	"github.com/PabloGalante/lawless-ai/internal/app/conversation"
	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

const helpText = `Commands:
  /new [domain]    start a conversation (legal, business, coding)
  /list            list conversations
  /open N          switch to conversation N from /list
  /delete N        delete conversation N from /list
  /domain NAME     change the domain of the next message
  /help            show this help
  /quit            leave
Anything else is sent as a message.`

// Chat is a line based terminal client. It drives the conversation service
// through its operations and renders the state it publishes.
type Chat struct {
	svc     *conversation.Service
	in      io.Reader
	scanner *bufio.Scanner
	r       *renderer
}

// NewChat renders markdown replies with glamour when out is a terminal.
func NewChat(svc *conversation.Service, in io.Reader, out io.Writer) *Chat {
	pretty := false
	if f, ok := out.(*os.File); ok {
		pretty = isatty.IsTerminal(f.Fd())
	}
	return &Chat{
		svc: svc,
		in:  in,
		r: &renderer{
			out:    out,
			pretty: pretty,
			seen:   map[domain.MessageID]bool{},
		},
	}
}

// Run reads commands until /quit, EOF or ctx is done.
func (c *Chat) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.svc.Subscribe(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range events {
			switch e.Type {
			case conversation.EventStateChanged:
				c.r.state(c.svc.Snapshot())
			case conversation.EventNotification:
				// Completion failures are reported with the send result.
				if e.Notification != nil && e.Notification.Kind != conversation.NotifyCompletionFailed {
					c.r.notify(e.Notification)
				}
			}
		}
	}()
	defer wg.Wait()
	defer cancel()

	st := c.svc.Snapshot()
	c.r.printf("Lawless AI (%s, %s). Type /help for commands.\n", st.SelectedDomain, st.Sync)
	c.r.state(st)

	c.scanner = bufio.NewScanner(c.in)
	for {
		c.r.printf("%s> ", c.svc.Snapshot().SelectedDomain)
		if !c.scanner.Scan() {
			c.r.printf("\n")
			return c.scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		quit, err := c.handle(ctx, line)
		if err != nil {
			c.r.printf("! %s\n", err)
		}
		c.r.state(c.svc.Snapshot())
		if quit {
			return nil
		}
	}
}

func (c *Chat) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, c.send(ctx, line)
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		c.r.printf("%s\n", helpText)
	case "/new":
		d := c.svc.Snapshot().SelectedDomain
		if arg != "" {
			parsed, err := domain.ParseDomain(arg)
			if err != nil {
				return false, err
			}
			d = parsed
		}
		_, err := c.svc.CreateConversation(ctx, d)
		return false, err
	case "/list":
		c.list()
	case "/open":
		conv, err := c.pick(arg)
		if err != nil {
			return false, err
		}
		c.svc.SelectConversation(ctx, conv.ID)
	case "/delete":
		conv, err := c.pick(arg)
		if err != nil {
			return false, err
		}
		ok, err := c.confirm(fmt.Sprintf("Delete %q?", conv.Title))
		if err != nil || !ok {
			return false, err
		}
		c.svc.DeleteConversation(ctx, conv.ID)
		c.r.printf("deleted %q\n", conv.Title)
	case "/domain":
		d, err := domain.ParseDomain(arg)
		if err != nil {
			return false, err
		}
		return false, c.svc.SelectDomain(d)
	default:
		return false, errors.Errorf("unknown command %s, try /help", fields[0])
	}
	return false, nil
}

func (c *Chat) send(ctx context.Context, text string) error {
	out, err := c.svc.SendMessage(ctx, conversation.SendMessageInput{Text: text})
	if err != nil {
		return err
	}
	if out.Notification != nil {
		c.r.notify(out.Notification)
	}
	return nil
}

func (c *Chat) list() {
	st := c.svc.Snapshot()
	if len(st.Conversations) == 0 {
		c.r.printf("no conversations yet\n")
		return
	}
	for i, conv := range st.Conversations {
		marker := " "
		if conv.ID == st.ActiveID {
			marker = "*"
		}
		c.r.printf("%s %d. %s [%s] %s (%d messages)\n",
			marker, i+1, conv.Title, conv.Domain, conv.Timestamp, len(conv.Messages))
	}
}

func (c *Chat) pick(arg string) (*domain.Conversation, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, errors.New("expected a conversation number from /list")
	}
	convs := c.svc.Snapshot().Conversations
	if n < 1 || n > len(convs) {
		return nil, errors.Errorf("no conversation %d", n)
	}
	return convs[n-1], nil
}

func (c *Chat) confirm(query string) (bool, error) {
	ui := &input.UI{
		Writer: c.r,
		Reader: lineSource{c.scanner},
	}
	answer, err := ui.Ask(query+" [y/N]", &input.Options{
		Default:   "n",
		HideOrder: true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "n", "yes", "no", "":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "read confirmation")
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// lineSource hands out one scanned line per Read, so a prompt wrapping it in
// its own buffer never swallows the lines after its answer.
type lineSource struct {
	sc *bufio.Scanner
}

func (l lineSource) Read(p []byte) (int, error) {
	if !l.sc.Scan() {
		if err := l.sc.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	return copy(p, l.sc.Text()+"\n"), nil
}

// renderer serializes output from the prompt loop and the event stream.
type renderer struct {
	mu     sync.Mutex
	out    io.Writer
	pretty bool
	active domain.ConversationID
	seen   map[domain.MessageID]bool
}

func (r *renderer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Write(p)
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) notify(n *conversation.Notification) {
	r.printf("! %s: %s\n", n.Title, n.Message)
}

// state prints the messages of the active conversation not shown yet.
func (r *renderer) state(st conversation.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st.ActiveID != r.active {
		r.active = st.ActiveID
		r.seen = map[domain.MessageID]bool{}
		for _, conv := range st.Conversations {
			if conv.ID == st.ActiveID {
				fmt.Fprintf(r.out, "--- %s [%s] ---\n", conv.Title, conv.Domain)
				break
			}
		}
	}

	for _, m := range st.Messages {
		if r.seen[m.ID] {
			continue
		}
		r.seen[m.ID] = true
		if m.IsUser {
			fmt.Fprintf(r.out, "[%s] you: %s\n", m.Timestamp, m.Text)
			continue
		}
		fmt.Fprintf(r.out, "[%s] lawless:\n%s\n", m.Timestamp, r.markdown(m.Text))
	}
}

func (r *renderer) markdown(text string) string {
	if !r.pretty {
		return text
	}
	styled, err := glamour.Render(text, "dark")
	if err != nil {
		observability.Logger().Debug("markdown render failed", "error", err)
		return text
	}
	return strings.TrimRight(styled, "\n")
}
