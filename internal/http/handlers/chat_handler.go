// Chat HTTP handlers.
//
// This file exposes the conversation endpoints:
//   - POST   /chat                          (blocking turn, Idempotency-Key support)
//   - GET    /chat                          (SSE streaming turn, token query auth)
//   - GET    /messages                      (history, paginated, character filter)
//   - GET    /messages/chat/{session}       (one session transcript)
//   - GET    /chat/sessions                 (session summaries, ETag support)
//   - DELETE /chat/sessions/{session}       (delete a session)
//   - PATCH  /chat/sessions/{session}/title (rename)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including SSE framing and
// conditional responses).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/http/middleware"
	"github.com/persona-chat/go-persona-backend/internal/repo"
	"github.com/persona-chat/go-persona-backend/internal/services"
)

//
// DTOs
//

// ChatRequest is the JSON payload for a blocking chat turn.
type ChatRequest struct {
	// Message is the user prompt.
	Message string `json:"message" binding:"required" example:"Tell me about the suit."`
	// ChatSession continues an existing conversation; blank starts a new one.
	ChatSession string `json:"chat_session" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// CharacterID selects the persona; nil falls back to the plain assistant.
	CharacterID *uint `json:"character_id" example:"3"`
}

// ChatResponse is the assistant turn returned by POST /chat.
type ChatResponse struct {
	Response    string `json:"response"`
	ChatSession string `json:"chat_session"`
	MessageID   uint   `json:"message_id"`
}

// streamFrame is one SSE data payload emitted by GET /chat.
type streamFrame struct {
	Text        string `json:"text"`
	Done        bool   `json:"done"`
	ChatSession string `json:"chat_session,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ListMessagesResponse wraps a page of chat turns and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

// ListSessionsResponse wraps the user's conversation summaries.
type ListSessionsResponse struct {
	Sessions []services.SessionSummary `json:"sessions"`
}

// RenameSessionRequest is the JSON payload for renaming a session.
type RenameSessionRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Suit talk"`
}

// RenameSessionResponse echoes the normalized title.
type RenameSessionResponse struct {
	Title string `json:"title"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Send a chat message
// @Description Appends a user turn and returns the assistant reply. Pass chat_session to continue a conversation and character_id to speak with a persona. Retries with the same Idempotency-Key replay the stored reply instead of calling the model again.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"  example(req-4711)
// @Param       body             body    handlers.ChatRequest  true  "Chat turn payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse "Empty or oversized message"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Failure     502  {object}  handlers.ErrorResponse "Model backend failed"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)

	turn, replayed, err := h.chat.Respond(c.Request.Context(), uid, req.ChatSession, req.CharacterID, req.Message, idemKey)
	switch {
	case err == nil:
		if replayed {
			c.Header("Idempotency-Replayed", "true")
		}
		ok(c, http.StatusOK, ChatResponse{
			Response:    turn.Message,
			ChatSession: turn.ChatSession,
			MessageID:   turn.ID,
		})
	case errors.Is(err, services.ErrEmptyPrompt), errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "assistant is unavailable, please try again")
	}
}

// StreamChat godoc
// @ID          streamChat
// @Summary     Stream a chat reply (SSE)
// @Description Streams the assistant reply as Server-Sent Events. Each event is a JSON frame {"text","done","chat_session"}; the terminal frame has done=true and an empty text. EventSource cannot set headers, so this endpoint authenticates via the token query parameter.
// @Tags        Chat
// @Produce     text/event-stream
//
// @Param       token         query  string  true   "Access token"
// @Param       message       query  string  true   "User prompt"
// @Param       chat_session  query  string  false  "Session UUID to continue"
// @Param       character_id  query  int     false  "Persona to speak with"
//
// @Success     200  {string}  string "SSE stream"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Router      /chat [get]
func (h *Handlers) StreamChat(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	message := strings.TrimSpace(c.Query("message"))
	if message == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message query parameter is required")
		return
	}
	var characterID *uint
	if raw := c.Query("character_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character_id must be a positive integer")
			return
		}
		v := uint(id)
		characterID = &v
	}

	session, chunks, errs, err := h.chat.RespondStream(c.Request.Context(), uid, c.Query("chat_session"), characterID, message)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrEmptyPrompt), errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Proxies must not buffer the stream.
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for chunk := range chunks {
		writeSSE(c, streamFrame{Text: chunk, Done: false, ChatSession: session})
	}
	if err := <-errs; err != nil {
		writeSSE(c, streamFrame{Done: true, ChatSession: session, Error: "stream failed"})
		return
	}
	writeSSE(c, streamFrame{Done: true, ChatSession: session})
}

// writeSSE writes one "data:" event and flushes it to the client.
func writeSSE(c *gin.Context, frame streamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List chat history (paginated)
// @Description Returns the user's turns across all sessions, newest first, optionally filtered by character.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       page          query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size     query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       character_id  query  int  false "Persona filter"
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}
	page, pageSize := clampPagination(c)

	var characterID *uint
	if raw := c.Query("character_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character_id must be a positive integer")
			return
		}
		v := uint(id)
		characterID = &v
	}

	items, total, err := h.chat.ListMessages(c.Request.Context(), uid, characterID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: paginationOf(page, pageSize, total),
	})
}

// ListSessionMessages godoc
// @ID          listSessionMessages
// @Summary     Fetch one session transcript
// @Description Returns every turn of one conversation in chronological order.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       session  path  string  true  "Session UUID"  format(uuid)
//
// @Success     200  {array}   domain.ChatMessage
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Router      /messages/chat/{session} [get]
func (h *Handlers) ListSessionMessages(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	items, err := h.chat.ListSessionMessages(c.Request.Context(), uid, c.Param("session"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, items)
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
	}
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List conversations
// @Description Returns the user's conversations newest first, with derived titles and previews. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object}  handlers.ListSessionsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /chat/sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if svc, okSvc := h.chat.(*services.ChatService); okSvc {
		count, maxTS, err := repo.SessionsStats(ctx, svc.DB, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"sessions:%d:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.chat.ListSessions(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: items})
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a conversation
// @Description Removes every turn of the session. Deleting an unknown session returns 404.
// @Tags        Chat
// @Security    BearerAuth
//
// @Param       session  path  string  true  "Session UUID"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Router      /chat/sessions/{session} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	err := h.chat.DeleteSession(c.Request.Context(), uid, c.Param("session"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// RenameSession godoc
// @ID          renameSession
// @Summary     Rename a conversation
// @Description Accepts a new display title for the session. Titles are derived from the transcript on listing, so the normalized title is echoed back without being stored.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       session  path  string                           true  "Session UUID"  format(uuid)
// @Param       body     body  handlers.RenameSessionRequest  true  "New title"
//
// @Success     200  {object}  handlers.RenameSessionResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Router      /chat/sessions/{session}/title [patch]
func (h *Handlers) RenameSession(c *gin.Context) {
	uid, authed := mustUserID(c)
	if !authed {
		return
	}

	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}

	title, err := h.chat.RenameSession(c.Request.Context(), uid, c.Param("session"), req.Title)
	switch {
	case err == nil:
		ok(c, http.StatusOK, RenameSessionResponse{Title: title})
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
