package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"

	"github.com/PabloGalante/lawless-ai/internal/app/persistence"
	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// DefaultHistoryLimit bounds the history sent along with each prompt.
const DefaultHistoryLimit = 10

// Persister is the persistence policy the service writes through.
type Persister interface {
	Persist(ctx context.Context, c *domain.Conversation) persistence.Result
	LoadAll(ctx context.Context) persistence.Result
	Remove(ctx context.Context, id domain.ConversationID) persistence.Result
	CheckAvailability(ctx context.Context) bool
}

type SyncStatus string

const (
	SyncUnknown   SyncStatus = "unknown"
	SyncSynced    SyncStatus = "synced"
	SyncLocalOnly SyncStatus = "local-only"
)

// State is a deep copy of everything a renderer needs.
type State struct {
	Conversations  []*domain.Conversation `json:"conversations"`
	ActiveID       domain.ConversationID  `json:"activeId,omitempty"`
	Messages       []*domain.Message      `json:"messages"`
	SelectedDomain domain.Domain          `json:"selectedDomain"`
	Loading        bool                   `json:"loading"`
	Sync           SyncStatus             `json:"sync"`
}

// Service is the conversation store: the only owner of the conversation
// list, the active conversation and its visible messages. Every mutation goes
// through its methods and is announced on the event bus.
type Service struct {
	llm          domain.CompletionClient
	store        Persister
	bus          *Bus
	now          func() time.Time
	newID        func() string
	historyLimit int

	mu             sync.Mutex
	conversations  []*domain.Conversation
	activeID       domain.ConversationID
	messages       []*domain.Message
	selectedDomain domain.Domain
	pending        int
	sync           SyncStatus

	// persisting serializes writes per conversation id. Each write re-reads
	// the latest in-memory record, so the last one to run stores the newest.
	persisting map[domain.ConversationID]*sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithBus(b *Bus) Option {
	return func(s *Service) { s.bus = b }
}

func NewService(llm domain.CompletionClient, store Persister, opts ...Option) *Service {
	s := &Service{
		llm:            llm,
		store:          store,
		now:            time.Now,
		newID:          uuid.NewString,
		historyLimit:   DefaultHistoryLimit,
		conversations:  []*domain.Conversation{},
		messages:       []*domain.Message{},
		selectedDomain: domain.DomainLegal,
		sync:           SyncUnknown,
		persisting:     map[domain.ConversationID]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewBus()
	}
	return s
}

// Load reads every stored conversation and probes the remote store once.
// Failures leave the service usable in local-only mode.
func (s *Service) Load(ctx context.Context) persistence.Outcome {
	log := observability.LoggerFromContext(ctx)

	res := s.store.LoadAll(ctx)
	available := s.store.CheckAvailability(ctx)

	s.mu.Lock()
	s.conversations = res.Conversations
	if s.conversations == nil {
		s.conversations = []*domain.Conversation{}
	}
	if s.findLocked(s.activeID) == nil {
		s.activeID = ""
	}
	s.refreshVisibleLocked()
	s.sync = SyncLocalOnly
	if available {
		s.sync = SyncSynced
	}
	status, count := s.sync, len(s.conversations)
	s.mu.Unlock()

	log.Info("conversations loaded", "outcome", res.Outcome.String(), "count", count, "sync", status)

	s.publish(EventStateChanged, "")
	if res.Failed() {
		s.notifyPersistenceFailed("")
	}
	return res.Outcome
}

// CreateConversation starts an empty conversation, puts it first and makes it
// active. The returned copy carries the id, known before any message is sent.
func (s *Service) CreateConversation(ctx context.Context, d domain.Domain) (*domain.Conversation, error) {
	if !d.Valid() {
		return nil, domain.InvalidArgument("unknown domain %q", d)
	}

	s.mu.Lock()
	conv := s.createLocked(d)
	snapshot := clone.Clone(conv).(*domain.Conversation)
	s.mu.Unlock()

	observability.LoggerFromContext(ctx).Info("conversation created", "conversation_id", conv.ID, "domain", d)

	s.publish(EventStateChanged, snapshot.ID)
	s.persist(ctx, snapshot.ID)
	return snapshot, nil
}

// SelectConversation activates id and loads its messages and domain.
// Unknown ids are ignored; the result reports whether id was found.
func (s *Service) SelectConversation(ctx context.Context, id domain.ConversationID) bool {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	s.activeID = conv.ID
	s.selectedDomain = conv.Domain
	s.refreshVisibleLocked()
	s.mu.Unlock()

	observability.LoggerFromContext(ctx).Info("conversation selected", "conversation_id", id)
	s.publish(EventStateChanged, id)
	return true
}

// DeleteConversation removes id from persistence first, then from memory.
// When id was active, the most recently updated remaining conversation
// becomes active. Unknown ids are ignored. A write already in flight for id
// finishes before the remove; later writes find id gone and are skipped.
func (s *Service) DeleteConversation(ctx context.Context, id domain.ConversationID) bool {
	log := observability.LoggerFromContext(ctx).With("conversation_id", id)

	s.mu.Lock()
	known := s.findLocked(id) != nil
	s.mu.Unlock()
	if !known {
		return false
	}

	lock := s.persistLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	found := s.findLocked(id) != nil
	if !found {
		delete(s.persisting, id)
	}
	s.mu.Unlock()
	if !found {
		return false
	}

	res := s.store.Remove(context.WithoutCancel(ctx), id)

	s.mu.Lock()
	delete(s.persisting, id)
	kept := s.conversations[:0:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept

	if s.activeID == id {
		s.activeID = ""
		if next := s.mostRecentLocked(); next != nil {
			s.activeID = next.ID
			s.selectedDomain = next.Domain
		}
	}
	s.refreshVisibleLocked()
	s.applyOutcomeLocked(res.Outcome)
	s.mu.Unlock()

	log.Info("conversation deleted", "outcome", res.Outcome.String())

	s.publish(EventStateChanged, id)
	if res.Failed() {
		s.notifyPersistenceFailed(id)
	}
	return true
}

type SendMessageInput struct {
	Text   string
	// Domain defaults to the currently selected domain.
	Domain domain.Domain
}

type SendMessageOutput struct {
	ConversationID   domain.ConversationID
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
	// Notification is set when the completion failed and the apology was used.
	Notification     *Notification
	Persisted        persistence.Outcome
}

// SendMessage appends the user message, asks the completion client for a
// reply and appends either the reply or the apology text. The completion call
// is the only suspension point; it is not cancelled with ctx.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.InvalidArgument("text is required")
	}

	s.mu.Lock()
	d := in.Domain
	if d == "" {
		d = s.selectedDomain
	}
	if !d.Valid() {
		s.mu.Unlock()
		return nil, domain.InvalidArgument("unknown domain %q", d)
	}

	conv := s.findLocked(s.activeID)
	if conv == nil {
		conv = s.createLocked(d)
	}
	convID := conv.ID

	history := append([]*domain.Message(nil), conv.History(s.historyLimit)...)

	userMsg := s.newMessageLocked(in.Text, true, d)
	conv.Messages = append(conv.Messages, userMsg)
	conv.Retitle(in.Text)
	conv.Touch(s.now())

	s.selectedDomain = d
	s.pending++
	s.refreshVisibleLocked()
	s.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With(
		"conversation_id", convID,
		"domain", d,
	)
	log.Info("sending message", "history", len(history))
	s.publish(EventStateChanged, convID)

	out := &SendMessageOutput{
		ConversationID: convID,
		UserMessage:    clone.Clone(userMsg).(*domain.Message),
	}

	reply, err := s.llm.Complete(context.WithoutCancel(ctx), in.Text, d, history)
	if err != nil {
		ce := domain.ClassifyCompletionError(err)
		log.Error("completion failed", "kind", ce.Kind, "error", err)
		reply = domain.ApologyText
		out.Notification = &Notification{
			Kind:    NotifyCompletionFailed,
			Title:   "Error",
			Message: ce.Notice(),
			Reason:  ce.Kind,
		}
	}

	s.mu.Lock()
	s.pending--
	assistantMsg := s.newMessageLocked(reply, false, d)
	conv = s.findLocked(convID)
	if conv == nil {
		// Deleted while the completion was in flight.
		s.mu.Unlock()
		log.Warn("conversation deleted before reply arrived, dropping reply")
		s.publish(EventStateChanged, convID)
		out.AssistantMessage = assistantMsg
		out.Persisted = persistence.OK
		return out, nil
	}
	conv.Messages = append(conv.Messages, assistantMsg)
	conv.Touch(s.now())
	s.refreshVisibleLocked()
	s.mu.Unlock()

	out.AssistantMessage = clone.Clone(assistantMsg).(*domain.Message)

	s.publish(EventStateChanged, convID)
	if out.Notification != nil {
		s.bus.Publish(Event{Type: EventNotification, ConversationID: convID, Notification: out.Notification, At: s.now()})
	}

	out.Persisted = s.persist(ctx, convID)
	log.Info("send message completed", "persisted", out.Persisted.String())
	return out, nil
}

// SelectDomain changes the domain used by the next send.
func (s *Service) SelectDomain(d domain.Domain) error {
	if !d.Valid() {
		return domain.InvalidArgument("unknown domain %q", d)
	}
	s.mu.Lock()
	s.selectedDomain = d
	s.mu.Unlock()

	s.publish(EventStateChanged, "")
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone.Clone(State{
		Conversations:  s.conversations,
		ActiveID:       s.activeID,
		Messages:       s.messages,
		SelectedDomain: s.selectedDomain,
		Loading:        s.pending > 0,
		Sync:           s.sync,
	}).(State)
}

// Conversation returns a copy of one conversation.
func (s *Service) Conversation(id domain.ConversationID) (*domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return nil, false
	}
	return clone.Clone(conv).(*domain.Conversation), true
}

// Subscribe streams state and notification events until ctx is done.
func (s *Service) Subscribe(ctx context.Context) (<-chan Event, error) {
	return s.bus.Subscribe(ctx)
}

func (s *Service) Close() error {
	return s.bus.Close()
}

// ─────────────────────────────────────────
// Helpers (callers hold s.mu for *Locked)
// ─────────────────────────────────────────

func (s *Service) createLocked(d domain.Domain) *domain.Conversation {
	conv := &domain.Conversation{
		ID:       domain.ConversationID(s.newID()),
		Title:    domain.DefaultTitle,
		Preview:  domain.DefaultPreview,
		Domain:   d,
		Messages: []*domain.Message{},
	}
	conv.Touch(s.now())

	s.conversations = append([]*domain.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.selectedDomain = d
	s.messages = []*domain.Message{}
	return conv
}

func (s *Service) newMessageLocked(text string, isUser bool, d domain.Domain) *domain.Message {
	now := s.now()
	return &domain.Message{
		ID:        domain.MessageID(s.newID()),
		Text:      text,
		IsUser:    isUser,
		Domain:    d,
		Timestamp: domain.DisplayTime(now),
		CreatedAt: now,
	}
}

func (s *Service) findLocked(id domain.ConversationID) *domain.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Service) mostRecentLocked() *domain.Conversation {
	var best *domain.Conversation
	for _, c := range s.conversations {
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	return best
}

// refreshVisibleLocked copies the active conversation's messages into the
// visible buffer. Messages are never mutated after append, so sharing the
// pointers is safe.
func (s *Service) refreshVisibleLocked() {
	conv := s.findLocked(s.activeID)
	if conv == nil {
		s.messages = []*domain.Message{}
		return
	}
	s.messages = append([]*domain.Message{}, conv.Messages...)
}

func (s *Service) applyOutcomeLocked(o persistence.Outcome) {
	switch o {
	case persistence.OK:
		s.sync = SyncSynced
	case persistence.RemoteUnavailable:
		s.sync = SyncLocalOnly
	}
}

// persist writes the current record for id. A record deleted in the
// meantime is not written back.
func (s *Service) persist(ctx context.Context, id domain.ConversationID) persistence.Outcome {
	lock := s.persistLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		observability.LoggerFromContext(ctx).Debug("conversation gone, skipping save", "conversation_id", id)
		return persistence.OK
	}
	snapshot := clone.Clone(conv).(*domain.Conversation)
	s.mu.Unlock()

	res := s.store.Persist(context.WithoutCancel(ctx), snapshot)

	s.mu.Lock()
	s.applyOutcomeLocked(res.Outcome)
	s.mu.Unlock()

	if res.Failed() {
		s.notifyPersistenceFailed(id)
	}
	return res.Outcome
}

func (s *Service) persistLock(id domain.ConversationID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.persisting[id]
	if !ok {
		lock = &sync.Mutex{}
		s.persisting[id] = lock
	}
	return lock
}

func (s *Service) notifyPersistenceFailed(id domain.ConversationID) {
	s.bus.Publish(Event{
		Type:           EventNotification,
		ConversationID: id,
		Notification: &Notification{
			Kind:    NotifyPersistenceFailed,
			Title:   "Sync error",
			Message: "Your conversations could not be saved. They are kept for this session only.",
		},
		At: s.now(),
	})
}

func (s *Service) publish(t EventType, id domain.ConversationID) {
	s.bus.Publish(Event{Type: t, ConversationID: id, At: s.now()})
}
