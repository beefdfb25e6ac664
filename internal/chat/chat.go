// Package chat orchestrates a conversation turn: intent short-circuits for
// contact details and social messages, retrieval-grounded generation for
// real questions, and best-effort persistence of both sides of the
// exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medifestructuras/asistente/internal/history"
	"github.com/medifestructuras/asistente/internal/intent"
	"github.com/medifestructuras/asistente/internal/prompt"
	"github.com/medifestructuras/asistente/internal/retrieval"
	"github.com/medifestructuras/asistente/internal/textutil"
)

// ContactPrompt is appended to answers to steer the user toward leaving
// their details. Appending is idempotent: an answer already carrying the
// prompt is returned unchanged.
const ContactPrompt = "También podés hacer clic en “Enviar mis datos” o escribir tus datos en el chat " +
	"para que coordinemos tu consulta, link de pago o llamada."

// ContactAck confirms receipt when the user shares contact details.
const ContactAck = "Gracias, hemos recibido tus datos y te contactaremos a la brevedad posible."

// Default pacing for short-circuit replies. Canned answers come back in
// microseconds; the pause keeps them from feeling robotic.
const (
	DefaultContactDelay = 1500 * time.Millisecond
	DefaultSocialDelay  = 7 * time.Second
)

// Sentinel errors for conversation handling.
var (
	// ErrEmptyMessage indicates the message had no content after trimming.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrRetrieval indicates the knowledge base could not be searched.
	ErrRetrieval = errors.New("knowledge base search failed")

	// ErrGeneration indicates the model failed to produce an answer.
	ErrGeneration = errors.New("answer generation failed")
)

// Retriever finds the context chunks grounding an answer.
type Retriever interface {
	Retrieve(ctx context.Context, message string, keywords []string) (retrieval.Result, error)
}

// HistoryStore persists and reads back conversation turns.
type HistoryStore interface {
	EnsureConversation(ctx context.Context, conversationID string) error
	SaveTurn(ctx context.Context, conversationID, role, content, clientIP string) error
	GetRecent(ctx context.Context, conversationID string, limit int) ([]history.Turn, error)
}

// Generator produces the model answer for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, promptText string) (string, error)
}

// Config tunes the orchestrator. The zero value uses the default delays.
type Config struct {
	// ContactDelay and SocialDelay pace the canned short-circuit replies.
	// Zero falls back to the defaults; negative disables the pause.
	ContactDelay time.Duration
	SocialDelay  time.Duration
}

func (c *Config) applyDefaults() {
	if c.ContactDelay == 0 {
		c.ContactDelay = DefaultContactDelay
	}
	if c.SocialDelay == 0 {
		c.SocialDelay = DefaultSocialDelay
	}
}

// Request is one inbound user message.
type Request struct {
	ConversationID string
	Message        string
	ClientIP       string
}

// Reply is the assistant's answer, tagged with the conversation it belongs
// to (freshly assigned when the request carried none).
type Reply struct {
	Answer         string
	ConversationID string
}

// Bot runs the conversation pipeline.
//
// Bot is stateless and uses dependency injection; it is safe for
// concurrent use.
type Bot struct {
	retriever Retriever
	history   HistoryStore
	generator Generator
	config    Config
	logger    *slog.Logger
}

// New creates a Bot. A nil logger falls back to slog.Default().
func New(retriever Retriever, store HistoryStore, generator Generator, config Config, logger *slog.Logger) (*Bot, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if store == nil {
		return nil, errors.New("history store is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()
	return &Bot{
		retriever: retriever,
		history:   store,
		generator: generator,
		config:    config,
		logger:    logger,
	}, nil
}

// Respond handles one user message end to end. Persistence failures are
// logged and swallowed: the user still gets their answer. Retrieval and
// generation failures surface as ErrRetrieval and ErrGeneration, and
// nothing is persisted for the failed turn.
func (b *Bot) Respond(ctx context.Context, req Request) (Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	logger := b.logger.With("conversation_id", conversationID)
	logger.Info("handling message", "preview", preview(message))

	if err := b.history.EnsureConversation(ctx, conversationID); err != nil {
		logger.Warn("failed to register conversation", "error", err)
	}

	normalized := textutil.Normalize(message)

	switch c := intent.Classify(message, normalized); c.Kind {
	case intent.ContactShare:
		logger.Info("contact details received")
		answer := appendContactPrompt(ContactAck)
		if err := b.pause(ctx, b.config.ContactDelay); err != nil {
			return Reply{}, err
		}
		b.saveExchange(ctx, logger, conversationID, message, answer, req.ClientIP)
		return Reply{Answer: answer, ConversationID: conversationID}, nil

	case intent.Greeting, intent.Courtesy:
		logger.Info("social short-circuit")
		if err := b.pause(ctx, b.config.SocialDelay); err != nil {
			return Reply{}, err
		}
		answer := c.Reply
		if c.Kind == intent.Courtesy {
			// Courtesy closers are a natural moment to ask for contact
			// details; greetings are answered plainly.
			answer = appendContactPrompt(c.Reply)
		}
		b.saveExchange(ctx, logger, conversationID, message, answer, req.ClientIP)
		return Reply{Answer: answer, ConversationID: conversationID}, nil
	}

	turns, err := b.history.GetRecent(ctx, conversationID, prompt.MaxHistoryTurns)
	if err != nil {
		logger.Warn("failed to load history, continuing without it", "error", err)
		turns = nil
	}
	historyText, lastAssistantReply := prompt.FormatHistory(turns)
	previousAnswerBlock := prompt.PreviousAnswerBlock(lastAssistantReply)

	keywords := intent.ExtractKeywords(message)
	result, err := b.retriever.Retrieve(ctx, message, keywords)
	if err != nil {
		logger.Error("retrieval failed", "error", err)
		return Reply{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	logger.Info("retrieval done",
		"filters", strings.Join(result.SourceFilters, ","),
		"chunks", len(result.ContextChunks),
		"best_similarity", result.BestSimilarity)

	var answer string
	if len(result.ContextChunks) == 0 {
		logger.Warn("no usable context, skipping generation")
		answer = prompt.FallbackResponse
	} else {
		courseInstruction := ""
		if intent.IsCourseRequest(normalized) {
			courseInstruction = prompt.CourseGuidelines
		}
		promptText := prompt.Build(
			previousAnswerBlock,
			historyText,
			prompt.JoinContext(result.ContextChunks),
			message,
			courseInstruction,
		)

		answer, err = b.generator.Generate(ctx, promptText)
		if err != nil {
			logger.Error("generation failed", "error", err)
			return Reply{}, fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		if strings.TrimSpace(answer) == "" {
			logger.Error("model returned an empty answer")
			return Reply{}, fmt.Errorf("%w: empty model output", ErrGeneration)
		}
	}

	finalAnswer := appendContactPrompt(answer)
	b.saveExchange(ctx, logger, conversationID, message, finalAnswer, req.ClientIP)
	return Reply{Answer: finalAnswer, ConversationID: conversationID}, nil
}

// saveExchange persists the user message and the assistant answer.
// Failures are logged, never surfaced; the reply has already been decided.
func (b *Bot) saveExchange(ctx context.Context, logger *slog.Logger, conversationID, userMessage, answer, clientIP string) {
	if err := b.history.SaveTurn(ctx, conversationID, history.RoleUser, userMessage, clientIP); err != nil {
		logger.Error("failed to save user turn", "error", err)
		return
	}
	if err := b.history.SaveTurn(ctx, conversationID, history.RoleAssistant, answer, clientIP); err != nil {
		logger.Error("failed to save assistant turn", "error", err)
	}
}

// pause waits for the given duration unless the context ends first.
func (b *Bot) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// appendContactPrompt adds the contact call-to-action to an answer, adding
// terminal punctuation when needed. An answer that already contains the
// prompt is returned unchanged.
func appendContactPrompt(answer string) string {
	stripped := strings.TrimSpace(answer)
	if stripped == "" {
		return ContactPrompt
	}
	if strings.Contains(stripped, ContactPrompt) {
		return stripped
	}
	punctuation := ""
	if !strings.ContainsAny(stripped[len(stripped)-1:], ".!?") {
		punctuation = "."
	}
	return stripped + punctuation + " " + ContactPrompt
}

// preview trims a message for log lines.
func preview(message string) string {
	const limit = 100
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit])
}
