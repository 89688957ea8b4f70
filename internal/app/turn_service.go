package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatrewind/internal/model"
)

var (
	ErrPromptEmpty = errors.New("prompt is empty")
)

// Generator is the external generation capability. It may block on network
// I/O; it runs on the request goroutine so a slow call never occupies the
// store's serialized worker.
type Generator interface {
	Generate(ctx context.Context, modelID, prompt string, history []model.PromptMessage) (string, error)
}

// ConversationStore is the slice of the store the orchestrator needs.
type ConversationStore interface {
	Append(ctx context.Context, batch model.Batch) error
	AllMessages(ctx context.Context) ([]model.Message, error)
	HistoryUntil(ctx context.Context, cut *time.Time) ([]model.PromptMessage, error)
	Clear(ctx context.Context) error
}

type TurnInput struct {
	Prompt string
	Model  string
	// EditMarker, when set, is the timestamp of the message history should
	// be truncated at (inclusive) before generating.
	EditMarker *time.Time
}

// TurnService coordinates one user-submitted turn: reconstruct the effective
// history, call the generation capability, and commit the resulting exchange
// as one atomic batch.
type TurnService struct {
	store        ConversationStore
	generator    Generator
	defaultModel string
	genTimeout   time.Duration
	logger       zerolog.Logger
}

func NewTurnService(
	store ConversationStore,
	generator Generator,
	defaultModel string,
	genTimeout time.Duration,
	logger zerolog.Logger,
) *TurnService {
	return &TurnService{
		store:        store,
		generator:    generator,
		defaultModel: defaultModel,
		genTimeout:   genTimeout,
		logger:       logger.With().Str("component", "turn_service").Logger(),
	}
}

// StreamTurn runs one turn, handing each finished message to emit as it
// becomes available. A newly submitted prompt (no edit marker) is emitted
// before generation starts; on an edit the client already shows the edited
// prompt, so only the model message is streamed. A generation failure is
// converted into a synthetic model-role message and never persisted, so a
// retried turn does not accumulate failed attempts in history. Storage
// failures are returned to the caller.
func (s *TurnService) StreamTurn(ctx context.Context, input TurnInput, emit func(model.Message) error) error {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return ErrPromptEmpty
	}
	modelID := input.Model
	if modelID == "" {
		modelID = s.defaultModel
	}

	userMsg := model.Message{
		Role:      model.RoleUser,
		Timestamp: time.Now().UTC(),
		Content:   prompt,
	}
	if input.EditMarker == nil {
		if err := emit(userMsg); err != nil {
			return err
		}
	}

	history, err := s.store.HistoryUntil(ctx, input.EditMarker)
	if err != nil {
		return fmt.Errorf("load history failed: %w", err)
	}

	reply, err := s.generate(ctx, modelID, prompt, history)
	if err != nil {
		s.logger.Error().Err(err).Str("model", modelID).Msg("generation failed")
		return emit(model.Message{
			Role:      model.RoleModel,
			Timestamp: time.Now().UTC(),
			Content:   fmt.Sprintf("An error occurred: %v\n\nPlease check your API key and connection.", err),
		})
	}

	modelMsg := model.Message{
		Role:      model.RoleModel,
		Timestamp: time.Now().UTC(),
		Content:   reply,
	}
	if err := emit(modelMsg); err != nil {
		return err
	}

	if err := s.store.Append(ctx, model.Batch{userMsg, modelMsg}); err != nil {
		return fmt.Errorf("persist turn failed: %w", err)
	}
	return nil
}

func (s *TurnService) generate(ctx context.Context, modelID, prompt string, history []model.PromptMessage) (string, error) {
	if s.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.genTimeout)
		defer cancel()
	}
	return s.generator.Generate(ctx, modelID, prompt, history)
}

// History returns the full conversation for the browser view.
func (s *TurnService) History(ctx context.Context) ([]model.Message, error) {
	return s.store.AllMessages(ctx)
}

// Reset wipes the conversation log.
func (s *TurnService) Reset(ctx context.Context) error {
	return s.store.Clear(ctx)
}
