// Package services – ChatService
//
// This file implements ChatService, which owns the conversation lifecycle.
// Sessions are implicit: a session is the set of stored turns sharing a
// session id, created on the first message and gone when its turns are
// deleted. The service persists the user turn before generation, builds the
// persona prompt from the character and prior turns, and stores the
// assistant turn only after the model reply completes.
//
// Observability: the main entry points are OpenTelemetry-instrumented; spans
// include session and user identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/llm"
	"github.com/persona-chat/go-persona-backend/internal/repo"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"

	defaultAssistantPrompt = "You are a helpful AI assistant."

	// sessionTitleRunes caps derived session titles.
	sessionTitleRunes = 50

	defaultSessionTitle = "New conversation"
)

// SessionSummary is the listing view of one conversation.
type SessionSummary struct {
	SessionID    string     `json:"chat_session"`
	Title        string     `json:"title"`
	Preview      string     `json:"preview"`
	CharacterID  *uint      `json:"character_id,omitempty"`
	MessageCount int        `json:"message_count"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ChatService coordinates turn persistence and reply generation.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// LLM produces assistant replies, sync or streamed.
	LLM llm.StreamProvider

	// MaxPromptRunes caps incoming messages by rune length. Zero disables it.
	MaxPromptRunes int
	// StreamDelay paces outgoing stream chunks. Zero disables pacing.
	StreamDelay time.Duration
	// IdempotencyTTL bounds how long a replayed Idempotency-Key stays valid.
	IdempotencyTTL time.Duration
}

// NewChatService constructs a ChatService with defaults matching the API.
func NewChatService(db *gorm.DB, provider llm.StreamProvider) *ChatService {
	return &ChatService{
		DB:             db,
		LLM:            provider,
		MaxPromptRunes: 4000,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Respond handles one synchronous chat turn: it persists the user message,
// generates a reply with the full session history, and persists the
// assistant turn. A blank session id, or one with no prior turns for this
// user, starts a new session; the resolved id is returned alongside the
// assistant turn.
//
// When idemKey is set and the same (user, session, key) tuple was already
// answered, the stored assistant turn is replayed without calling the model.
func (s *ChatService) Respond(ctx context.Context, userID uint, sessionID string, characterID *uint, message, idemKey string) (*domain.ChatMessage, bool, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.String("chat.session", sessionID),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, false, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(message) > s.MaxPromptRunes {
		return nil, false, ErrTooLong
	}

	if idemKey != "" && sessionID != "" {
		if rec, err := repo.GetIdempotency(ctx, s.DB, userID, sessionID, idemKey, time.Now().UTC()); err == nil {
			if turn, terr := repo.GetTurn(ctx, s.DB, rec.MessageID, userID); terr == nil {
				return turn, true, nil
			}
		}
	}

	sessionID, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, false, err
	}

	_, prompt, err := s.personaPrompt(ctx, characterID)
	if err != nil {
		return nil, false, err
	}
	history, err := repo.ListSessionTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return nil, false, err
	}

	userTurn := &domain.ChatMessage{
		UserID:      userID,
		ChatSession: sessionID,
		CharacterID: characterID,
		Message:     message,
		IsBot:       false,
	}
	if err := repo.CreateTurn(ctx, s.DB, userTurn); err != nil {
		return nil, false, err
	}

	reply, err := s.LLM.Chat(ctx, buildMessages(prompt, history, message))
	if err != nil {
		return nil, false, err
	}

	botTurn := &domain.ChatMessage{
		UserID:      userID,
		ChatSession: sessionID,
		CharacterID: characterID,
		Message:     reply,
		IsBot:       true,
	}
	if err := repo.CreateTurn(ctx, s.DB, botTurn); err != nil {
		return nil, false, err
	}
	if idemKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, userID, sessionID, idemKey, botTurn.ID, 200, s.idemTTL()); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("idempotency record not stored")
		}
	}
	return botTurn, false, nil
}

// RespondStream handles one streamed chat turn. The user message is
// persisted up front; reply chunks are forwarded on the returned channel as
// they arrive, and the complete assistant turn is persisted only after the
// stream finishes cleanly. Mid-stream failures surface on the error channel
// and leave no assistant turn behind.
func (s *ChatService) RespondStream(ctx context.Context, userID uint, sessionID string, characterID *uint, message string) (string, <-chan string, <-chan error, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "RespondStream",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.String("chat.session", sessionID),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil, nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(message) > s.MaxPromptRunes {
		return "", nil, nil, ErrTooLong
	}

	sessionID, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return "", nil, nil, err
	}

	_, prompt, err := s.personaPrompt(ctx, characterID)
	if err != nil {
		return "", nil, nil, err
	}
	history, err := repo.ListSessionTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return "", nil, nil, err
	}

	userTurn := &domain.ChatMessage{
		UserID:      userID,
		ChatSession: sessionID,
		CharacterID: characterID,
		Message:     message,
		IsBot:       false,
	}
	if err := repo.CreateTurn(ctx, s.DB, userTurn); err != nil {
		return "", nil, nil, err
	}

	upstream, upstreamErrs := s.LLM.StreamChat(ctx, buildMessages(prompt, history, message))

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)

		var full strings.Builder
		for chunk := range upstream {
			full.WriteString(chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
			if s.StreamDelay > 0 {
				select {
				case <-time.After(s.StreamDelay):
				case <-ctx.Done():
					return
				}
			}
		}
		if err := <-upstreamErrs; err != nil {
			errs <- err
			return
		}
		if full.Len() == 0 {
			return
		}

		// The client may disconnect between the final chunk and this write.
		saveCtx := context.WithoutCancel(ctx)
		botTurn := &domain.ChatMessage{
			UserID:      userID,
			ChatSession: sessionID,
			CharacterID: characterID,
			Message:     full.String(),
			IsBot:       true,
		}
		if err := repo.CreateTurn(saveCtx, s.DB, botTurn); err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("assistant turn not stored")
			errs <- err
		}
	}()

	return sessionID, out, errs, nil
}

// ListSessions groups the user's turns into conversations, newest first.
// Titles are derived from the first user message rather than stored.
func (s *ChatService) ListSessions(ctx context.Context, userID uint) ([]SessionSummary, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "ListSessions",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	turns, err := repo.ListUserTurns(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*SessionSummary)
	order := make([]string, 0)
	for i := range turns {
		t := &turns[i]
		sum, ok := byID[t.ChatSession]
		if !ok {
			sum = &SessionSummary{SessionID: t.ChatSession, Title: defaultSessionTitle}
			created := t.Timestamp
			sum.CreatedAt = &created
			byID[t.ChatSession] = sum
			order = append(order, t.ChatSession)
		}
		if sum.Title == defaultSessionTitle && !t.IsBot {
			sum.Title = clipRunes(t.Message, sessionTitleRunes)
		}
		if sum.CharacterID == nil && t.CharacterID != nil {
			sum.CharacterID = t.CharacterID
		}
		sum.Preview = t.Message
		sum.MessageCount++
		ts := t.Timestamp
		sum.UpdatedAt = &ts
	}

	out := make([]SessionSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].UpdatedAt, out[j].UpdatedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

// ListSessionMessages returns every turn of one session in order.
func (s *ChatService) ListSessionMessages(ctx context.Context, userID uint, sessionID string) ([]domain.ChatMessage, error) {
	turns, err := repo.ListSessionTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, ErrSessionNotFound
	}
	return turns, nil
}

// ListMessages returns a page of the user's turns across sessions, newest
// first, optionally scoped to one character.
func (s *ChatService) ListMessages(ctx context.Context, userID uint, characterID *uint, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountTurns(ctx, s.DB, userID, characterID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatMessage{}, 0, nil
	}
	items, err := repo.ListTurnsPage(ctx, s.DB, userID, characterID, offset, pageSize)
	return items, total, err
}

// DeleteSession removes a session by deleting all of its turns.
func (s *ChatService) DeleteSession(ctx context.Context, userID uint, sessionID string) error {
	n, err := repo.DeleteSessionTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RenameSession validates the session and echoes the cleaned title back.
// Titles are derived from message content on listing, so nothing is stored;
// the endpoint exists for client-side naming.
func (s *ChatService) RenameSession(ctx context.Context, userID uint, sessionID, title string) (string, error) {
	ok, err := repo.SessionHasTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSessionNotFound
	}
	title = normalizeTitle(title)
	if title == "" {
		title = defaultSessionTitle
	}
	return clipRunes(title, sessionTitleRunes), nil
}

// personaPrompt loads the character (when requested) and builds the system
// prompt for it.
func (s *ChatService) personaPrompt(ctx context.Context, characterID *uint) (*domain.Character, string, error) {
	if characterID == nil {
		return nil, defaultAssistantPrompt, nil
	}
	c, err := repo.GetCharacter(ctx, s.DB, *characterID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrCharacterNotFound
		}
		return nil, "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s from %s. Your chat style is %s.", c.Name, c.Movie, c.ChatStyle)
	if len(c.ExampleResponses) > 0 {
		b.WriteString(" Here are some example responses that show your personality:")
		for _, line := range c.ExampleResponses {
			b.WriteString("\n- ")
			b.WriteString(line)
		}
	}
	return c, b.String(), nil
}

func (s *ChatService) idemTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

// buildMessages assembles the model conversation: system prompt, prior
// turns, then the new user message.
func buildMessages(systemPrompt string, history []domain.ChatMessage, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: roleSystem, Content: systemPrompt})
	for _, t := range history {
		role := roleUser
		if t.IsBot {
			role = roleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Message})
	}
	return append(msgs, llm.Message{Role: roleUser, Content: message})
}

// resolveSession keeps a caller-provided session id only when the user
// already owns turns under it. Blank ids and ids with no history for this
// user both start a fresh session, so one user cannot write into a session
// id chosen by another.
func (s *ChatService) resolveSession(ctx context.Context, userID uint, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return uuid.NewString(), nil
	}
	ok, err := repo.SessionHasTurns(ctx, s.DB, userID, sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return uuid.NewString(), nil
	}
	return sessionID, nil
}

// clipRunes truncates s to max runes, marking the cut with an ellipsis.
func clipRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
