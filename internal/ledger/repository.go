package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/pkg/repository"
)

// ErrWrite indicates a ledger record could not be persisted. The affected
// message stays unrecorded, so the next run retries it.
var ErrWrite = errors.New("ledger write failed")

// System is the ledger data access contract consumed by the pipeline.
type System interface {
	// ProcessedKeys performs a full scan of the ledger and returns the set
	// of processed composite keys.
	ProcessedKeys(ctx context.Context) (KeySet, error)
	// RecordProcessed upserts one record per message, keyed by composite
	// key. Re-recording an already-present key is a no-op.
	RecordProcessed(ctx context.Context, msgs []messages.Message) error
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a ledger repository over the document store connection.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "ledger"),
	}
}

func (r *repo) ProcessedKeys(ctx context.Context) (KeySet, error) {
	const q = `SELECT conversation_id, message_id FROM processing_ledger`

	type key struct {
		conversationID string
		messageID      string
	}

	rows, err := repository.Many(ctx, r.db, q, nil, func(s repository.Scanner) (key, error) {
		var k key
		if err := s.Scan(&k.conversationID, &k.messageID); err != nil {
			return key{}, err
		}
		return k, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}

	keys := make(KeySet, len(rows))
	for _, k := range rows {
		keys[k.conversationID+"_"+k.messageID] = struct{}{}
	}
	return keys, nil
}

func (r *repo) RecordProcessed(ctx context.Context, msgs []messages.Message) error {
	const q = `
		INSERT INTO processing_ledger (id, conversation_id, message_id, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	processedAt := time.Now().UTC()

	_, err := repository.InTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		for i := range msgs {
			if _, err := tx.ExecContext(
				ctx, q,
				msgs[i].Key(),
				msgs[i].ConversationID,
				msgs[i].ID,
				processedAt,
			); err != nil {
				return struct{}{}, fmt.Errorf("record %s: %w", msgs[i].Key(), err)
			}
		}
		return struct{}{}, nil
	})

	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	r.logger.Info("ledger records written", "count", len(msgs))
	return nil
}
