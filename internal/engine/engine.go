// Package engine implements reversible message obfuscation: detected PII
// entities are substituted with stable tokens from the token store, and
// tokens are restored to their original values on the way back.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arclight-io/scrubber/internal/redact"
	"github.com/arclight-io/scrubber/internal/tokens"
	"github.com/arclight-io/scrubber/pkg/detection"
)

// Engine tokenizes and restores message content for one configured language.
type Engine struct {
	detector detection.Detector
	tokens   tokens.System
	logger   *slog.Logger
	language string
}

// New creates an obfuscation engine.
func New(detector detection.Detector, store tokens.System, language string, logger *slog.Logger) *Engine {
	return &Engine{
		detector: detector,
		tokens:   store,
		logger:   logger.With("system", "engine"),
		language: language,
	}
}

// Obfuscate detects PII in content and replaces each entity span with its
// partition token. A detector-reported document error fails the whole
// message with detection.ErrDetection in the chain.
func (e *Engine) Obfuscate(ctx context.Context, content, userID, conversationID string) (string, error) {
	results, err := e.detector.Detect(ctx, []string{content}, e.language)
	if err != nil {
		return "", fmt.Errorf("obfuscate: %w", err)
	}
	if len(results) != 1 {
		return "", fmt.Errorf("obfuscate: expected 1 document result, got %d", len(results))
	}
	if results[0].Err != nil {
		return "", fmt.Errorf("obfuscate: %w", results[0].Err)
	}

	entities := results[0].Entities
	replacements := make([]string, len(entities))
	for i, entity := range entities {
		token, err := e.tokens.GetOrCreate(ctx, userID, conversationID, entity.Category, entity.Text)
		if err != nil {
			return "", fmt.Errorf("obfuscate: %w", err)
		}
		replacements[i] = token
	}

	e.logger.Debug(
		"message obfuscated",
		"conversation", conversationID,
		"entities", len(entities),
	)
	return redact.ReplaceSpans(content, entities, replacements), nil
}

// Deobfuscate restores every token in content to its original value using
// the conversation's full token mapping; no category filter is applied.
// Longer tokens are replaced first so no token that is a substring of
// another can clobber it.
func (e *Engine) Deobfuscate(ctx context.Context, content, userID, conversationID string) (string, error) {
	records, err := e.tokens.ForConversation(ctx, userID, conversationID)
	if err != nil {
		return "", fmt.Errorf("deobfuscate: %w", err)
	}

	sort.SliceStable(records, func(a, b int) bool {
		if len(records[a].Token) != len(records[b].Token) {
			return len(records[a].Token) > len(records[b].Token)
		}
		return records[a].Token < records[b].Token
	})

	restored := content
	for i := range records {
		restored = strings.ReplaceAll(restored, records[i].Token, records[i].OriginalValue)
	}
	return restored, nil
}
