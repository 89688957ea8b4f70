package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatrewind/internal/model"
)

var ErrEmptyBatch = errors.New("batch is empty")

// RowSource is the durable log the store reads and appends. Implemented by
// repository.RowRepository.
type RowSource interface {
	Append(payload []byte) error
	List() ([]model.StoreRow, error)
	DeleteAll() error
}

// ConversationStore owns the append-only conversation log and the two read
// views derived from it: the full-fidelity browser view (AllMessages) and
// the truncated LLM transcript (HistoryUntil). Every operation runs through
// the gate, one at a time.
type ConversationStore struct {
	rows   RowSource
	gate   *Gate
	logger zerolog.Logger
}

func NewConversationStore(rows RowSource, gate *Gate, logger zerolog.Logger) *ConversationStore {
	return &ConversationStore{
		rows:   rows,
		gate:   gate,
		logger: logger.With().Str("component", "conversation_store").Logger(),
	}
}

// Append serializes the batch and appends it as one row. The batch is
// atomic: it is either fully committed or not at all.
func (s *ConversationStore) Append(ctx context.Context, batch model.Batch) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return s.gate.Submit(ctx, func() error {
		return s.rows.Append(payload)
	})
}

// AllMessages flattens every row's batch, in row order, into one ordered
// sequence. Rows whose payload fails to decode are skipped with a warning so
// a single corrupt row cannot take down the history view.
func (s *ConversationStore) AllMessages(ctx context.Context) ([]model.Message, error) {
	var rows []model.StoreRow
	err := s.gate.Submit(ctx, func() error {
		var listErr error
		rows, listErr = s.rows.List()
		return listErr
	})
	if err != nil {
		return nil, err
	}

	var messages []model.Message
	for _, row := range rows {
		batch, ok := s.decodeRow(row)
		if !ok {
			continue
		}
		messages = append(messages, batch...)
	}
	return messages, nil
}

// HistoryUntil returns the role/content transcript handed to the generation
// client. With a nil cut it is the full history. With a cut it stops
// accumulating after including the first message whose timestamp equals the
// cut, discarding everything later, including later rows.
func (s *ConversationStore) HistoryUntil(ctx context.Context, cut *time.Time) ([]model.PromptMessage, error) {
	var rows []model.StoreRow
	err := s.gate.Submit(ctx, func() error {
		var listErr error
		rows, listErr = s.rows.List()
		return listErr
	})
	if err != nil {
		return nil, err
	}

	var history []model.PromptMessage
	for _, row := range rows {
		batch, ok := s.decodeRow(row)
		if !ok {
			continue
		}
		for _, msg := range batch {
			history = append(history, model.PromptMessage{Role: msg.Role, Content: msg.Content})
			if cut != nil && msg.Timestamp.Equal(*cut) {
				return history, nil
			}
		}
	}
	return history, nil
}

// Clear deletes every row. Irreversible; there is no soft delete.
func (s *ConversationStore) Clear(ctx context.Context) error {
	return s.gate.Submit(ctx, func() error {
		return s.rows.DeleteAll()
	})
}

// Ping verifies the serialized worker is alive and accepting operations.
func (s *ConversationStore) Ping(ctx context.Context) error {
	return s.gate.Submit(ctx, func() error { return nil })
}

// Close shuts down the serialized worker. Subsequent operations fail with
// ErrStoreClosed.
func (s *ConversationStore) Close() {
	s.gate.Close()
}

func (s *ConversationStore) decodeRow(row model.StoreRow) (model.Batch, bool) {
	var batch model.Batch
	if err := json.Unmarshal(row.BatchJSON, &batch); err != nil {
		s.logger.Warn().Uint("row_id", row.ID).Err(err).Msg("skipping malformed row")
		return nil, false
	}
	kept := batch[:0]
	for _, msg := range batch {
		if !msg.Role.Valid() {
			s.logger.Warn().Uint("row_id", row.ID).Str("role", string(msg.Role)).Msg("skipping message with unknown role")
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) == 0 {
		return nil, false
	}
	return kept, true
}
