package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

const collection = "conversations"

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (LAWLESS_STORAGE_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, errors.New("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) conversationsCol() *firestore.CollectionRef {
	return s.client.Collection(collection)
}

func (s *Store) conversationDoc(id domain.ConversationID) *firestore.DocumentRef {
	return s.conversationsCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type conversationDoc struct {
	Title     string       `firestore:"title"`
	Preview   string       `firestore:"preview"`
	Domain    string       `firestore:"domain"`
	Messages  []messageDoc `firestore:"messages"`
	UpdatedAt time.Time    `firestore:"updated_at"`
}

type messageDoc struct {
	ID        string    `firestore:"id"`
	Text      string    `firestore:"text"`
	IsUser    bool      `firestore:"is_user"`
	Domain    string    `firestore:"domain"`
	Timestamp string    `firestore:"timestamp"`
	CreatedAt time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// RemoteStore implementation
// ─────────────────────────────────────────

// UpsertConversation overwrites the whole document, message array included.
func (s *Store) UpsertConversation(ctx context.Context, c *domain.Conversation) error {
	doc := conversationDoc{
		Title:     c.Title,
		Preview:   c.Preview,
		Domain:    string(c.Domain),
		Messages:  make([]messageDoc, 0, len(c.Messages)),
		UpdatedAt: c.UpdatedAt,
	}
	for _, m := range c.Messages {
		doc.Messages = append(doc.Messages, messageDoc{
			ID:        string(m.ID),
			Text:      m.Text,
			IsUser:    m.IsUser,
			Domain:    string(m.Domain),
			Timestamp: m.Timestamp,
			CreatedAt: m.CreatedAt,
		})
	}

	if _, err := s.conversationDoc(c.ID).Set(ctx, doc); err != nil {
		return errors.Wrap(classify(err), "firestore UpsertConversation")
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	iter := s.conversationsCol().OrderBy("updated_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := []*domain.Conversation{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, errors.Wrap(classify(err), "firestore ListConversations")
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "decode conversationDoc")
		}

		c := &domain.Conversation{
			ID:       domain.ConversationID(snap.Ref.ID),
			Title:    doc.Title,
			Preview:  doc.Preview,
			Domain:   domain.Domain(doc.Domain),
			Messages: make([]*domain.Message, 0, len(doc.Messages)),
		}
		for _, m := range doc.Messages {
			c.Messages = append(c.Messages, &domain.Message{
				ID:        domain.MessageID(m.ID),
				Text:      m.Text,
				IsUser:    m.IsUser,
				Domain:    domain.Domain(m.Domain),
				Timestamp: m.Timestamp,
				CreatedAt: m.CreatedAt,
			})
		}
		c.Touch(doc.UpdatedAt)
		out = append(out, c)
	}
	return out, nil
}

// DeleteConversation succeeds for documents that do not exist.
func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) error {
	if _, err := s.conversationDoc(id).Delete(ctx); err != nil {
		return errors.Wrap(classify(err), "firestore DeleteConversation")
	}
	return nil
}

func (s *Store) CountConversations(ctx context.Context) (int64, error) {
	res, err := s.conversationsCol().NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, errors.Wrap(classify(err), "firestore CountConversations")
	}

	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.Errorf("firestore CountConversations: unexpected result %T", res["all"])
	}
	return v.GetIntegerValue(), nil
}

// classify tags transport failures so logs tell outages from bad requests.
func classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return &domain.AppError{Code: domain.CodeUnavailable, Message: "firestore unavailable", Cause: err}
	case codes.NotFound:
		return &domain.AppError{Code: domain.CodeNotFound, Message: "not found", Cause: err}
	default:
		return err
	}
}

var _ domain.RemoteStore = (*Store)(nil)
