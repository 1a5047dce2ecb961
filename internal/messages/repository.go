package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arclight-io/scrubber/pkg/repository"
)

// System is the message data access contract consumed by the pipeline.
type System interface {
	// All performs a full scan of the source table.
	All(ctx context.Context) ([]Message, error)
	// Get loads one source message by its composite identity. Returns
	// ErrNotFound when no such message exists.
	Get(ctx context.Context, conversationID, id string) (Message, error)
	// Count returns the total number of source messages.
	Count(ctx context.Context) (int, error)
	// SaveCleaned upserts processed messages into the output table.
	SaveCleaned(ctx context.Context, msgs []Message) error
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a message repository over the document store connection.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "messages"),
	}
}

func (r *repo) All(ctx context.Context) ([]Message, error) {
	const q = `
		SELECT id, conversation_id, user_id, content
		FROM messages
		ORDER BY conversation_id, id`

	msgs, err := repository.Many(ctx, r.db, q, nil, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}

func (r *repo) Get(ctx context.Context, conversationID, id string) (Message, error) {
	const q = `
		SELECT id, conversation_id, user_id, content
		FROM messages
		WHERE conversation_id = $1 AND id = $2`

	msg, err := repository.One(ctx, r.db, q, []any{conversationID, id}, scanMessage)
	if err != nil {
		return Message{}, fmt.Errorf(
			"load message %s_%s: %w",
			conversationID, id,
			repository.MapError(err, ErrNotFound, ErrWrite),
		)
	}
	return msg, nil
}

func (r *repo) Count(ctx context.Context) (int, error) {
	count, err := repository.Value[int](ctx, r.db, "SELECT COUNT(1) FROM messages")
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (r *repo) SaveCleaned(ctx context.Context, msgs []Message) error {
	const q = `
		INSERT INTO cleaned_messages (id, conversation_id, user_id, content, processed_content, entities, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			processed_content = EXCLUDED.processed_content,
			entities = EXCLUDED.entities,
			processed_at = EXCLUDED.processed_at`

	now := time.Now().UTC()

	_, err := repository.InTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		for i := range msgs {
			entities, err := json.Marshal(msgs[i].Entities)
			if err != nil {
				return struct{}{}, fmt.Errorf("encode entities for %s: %w", msgs[i].Key(), err)
			}

			processedAt := msgs[i].ProcessedAt
			if processedAt.IsZero() {
				processedAt = now
			}

			if _, err := tx.ExecContext(
				ctx, q,
				msgs[i].ID,
				msgs[i].ConversationID,
				msgs[i].UserID,
				msgs[i].Content,
				msgs[i].ProcessedContent,
				entities,
				processedAt,
			); err != nil {
				return struct{}{}, fmt.Errorf("upsert cleaned message %s: %w", msgs[i].Key(), err)
			}
		}
		return struct{}{}, nil
	})

	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	r.logger.Info("cleaned messages stored", "count", len(msgs))
	return nil
}

func scanMessage(s repository.Scanner) (Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Content); err != nil {
		return Message{}, err
	}
	return m, nil
}
