package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/arclight-io/scrubber/pkg/repository"
)

// System is the token store contract consumed by the obfuscation engine.
type System interface {
	// GetOrCreate returns the partition's token for a fuzzy-matched entity
	// value, minting and persisting a new one when no record scores above
	// the similarity threshold.
	GetOrCreate(ctx context.Context, userID, conversationID, category, value string) (string, error)
	// ForConversation loads every token record for (userId, conversationId)
	// across all categories, ordered by creation time.
	ForConversation(ctx context.Context, userID, conversationID string) ([]Record, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a token store over the document store connection.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "tokens"),
	}
}

func (r *repo) GetOrCreate(ctx context.Context, userID, conversationID, category, value string) (string, error) {
	normalized := Normalize(value)

	records, err := r.partition(ctx, r.db, userID, conversationID, category)
	if err != nil {
		return "", err
	}

	if token, ok := BestMatch(records, normalized); ok {
		return token, nil
	}

	return r.create(ctx, userID, conversationID, category, normalized, value)
}

func (r *repo) ForConversation(ctx context.Context, userID, conversationID string) ([]Record, error) {
	const q = `
		SELECT id, user_id, conversation_id, entity_category, normalized_value, original_value, token, created_at
		FROM token_mappings
		WHERE user_id = $1 AND conversation_id = $2
		ORDER BY created_at, id`

	records, err := repository.Many(ctx, r.db, q, []any{userID, conversationID}, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query token mappings: %w", err)
	}
	return records, nil
}

// create mints the next sequence number for the partition and persists the
// record. The count and insert run in one transaction holding an advisory
// lock on the partition key, so concurrent callers cannot mint colliding
// numbers.
func (r *repo) create(ctx context.Context, userID, conversationID, category, normalized, original string) (string, error) {
	partitionKey := fmt.Sprintf("%s_%s_%s", userID, conversationID, category)

	token, err := repository.InTx(ctx, r.db, func(tx *sql.Tx) (string, error) {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", partitionKey); err != nil {
			return "", fmt.Errorf("lock partition: %w", err)
		}

		count, err := repository.Value[int](
			ctx, tx,
			`SELECT COUNT(1) FROM token_mappings
			 WHERE user_id = $1 AND conversation_id = $2 AND entity_category = $3`,
			userID, conversationID, category,
		)
		if err != nil {
			return "", fmt.Errorf("count partition: %w", err)
		}

		rec := Record{
			ID:              RecordID(userID, conversationID, category, count+1),
			UserID:          userID,
			ConversationID:  conversationID,
			EntityCategory:  category,
			NormalizedValue: normalized,
			OriginalValue:   original,
			Token:           FormatToken(category, count+1),
			CreatedAt:       time.Now().UTC(),
		}

		const q = `
			INSERT INTO token_mappings (id, user_id, conversation_id, entity_category, normalized_value, original_value, token, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		if _, err := tx.ExecContext(
			ctx, q,
			rec.ID, rec.UserID, rec.ConversationID, rec.EntityCategory,
			rec.NormalizedValue, rec.OriginalValue, rec.Token, rec.CreatedAt,
		); err != nil {
			return "", err
		}

		return rec.Token, nil
	})

	if err != nil {
		return "", mapWriteError(err)
	}

	r.logger.Debug(
		"token minted",
		"partition", partitionKey,
		"token", token,
	)
	return token, nil
}

func (r *repo) partition(ctx context.Context, q repository.Querier, userID, conversationID, category string) ([]Record, error) {
	const query = `
		SELECT id, user_id, conversation_id, entity_category, normalized_value, original_value, token, created_at
		FROM token_mappings
		WHERE user_id = $1 AND conversation_id = $2 AND entity_category = $3
		ORDER BY created_at, id`

	records, err := repository.Many(ctx, q, query, []any{userID, conversationID, category}, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query token partition: %w", err)
	}
	return records, nil
}

func scanRecord(s repository.Scanner) (Record, error) {
	var rec Record
	if err := s.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ConversationID,
		&rec.EntityCategory,
		&rec.NormalizedValue,
		&rec.OriginalValue,
		&rec.Token,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	return rec, nil
}
