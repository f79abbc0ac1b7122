package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// conversationRow mirrors the hosted "conversations" table.
type conversationRow struct {
	ID        string         `gorm:"primaryKey;type:text"`
	Title     string         `gorm:"type:text;not null;default:''"`
	Preview   string         `gorm:"type:text;not null;default:''"`
	Domain    string         `gorm:"type:text;not null"`
	Messages  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	UpdatedAt time.Time      `gorm:"column:updated_at;index;autoUpdateTime:false"`
}

func (conversationRow) TableName() string {
	return "conversations"
}

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres with the given DSN and migrates the table.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required for the postgres store")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm connection, any dialect gorm supports.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&conversationRow{}); err != nil {
		return nil, errors.Wrap(err, "migrating conversations table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) UpsertConversation(ctx context.Context, c *domain.Conversation) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "upsert conversation %s", c.ID)
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}

	out := make([]*domain.Conversation, 0, len(rows))
	for _, row := range rows {
		c, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) error {
	err := s.db.WithContext(ctx).Delete(&conversationRow{}, "id = ?", string(id)).Error
	if err != nil {
		return errors.Wrapf(err, "delete conversation %s", id)
	}
	return nil
}

func (s *Store) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&conversationRow{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count conversations")
	}
	return n, nil
}

func toRow(c *domain.Conversation) (conversationRow, error) {
	msgs := c.Messages
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return conversationRow{}, errors.Wrap(err, "encode messages")
	}

	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	return conversationRow{
		ID:        string(c.ID),
		Title:     c.Title,
		Preview:   c.Preview,
		Domain:    string(c.Domain),
		Messages:  datatypes.JSON(raw),
		UpdatedAt: updated.UTC(),
	}, nil
}

func fromRow(row conversationRow) (*domain.Conversation, error) {
	msgs := []*domain.Message{}
	if len(row.Messages) > 0 {
		if err := json.Unmarshal(row.Messages, &msgs); err != nil {
			return nil, errors.Wrapf(err, "decode messages of %s", row.ID)
		}
	}

	c := &domain.Conversation{
		ID:       domain.ConversationID(row.ID),
		Title:    row.Title,
		Preview:  row.Preview,
		Domain:   domain.Domain(row.Domain),
		Messages: msgs,
	}
	c.Touch(row.UpdatedAt.Local())
	return c, nil
}

var _ domain.RemoteStore = (*Store)(nil)
