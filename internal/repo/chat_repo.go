// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model. A conversation "session" has no row of its own: it is the set of
// turns sharing one (user_id, chat_session) pair, ordered by
// (timestamp, id) ascending.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a turn is not found, functions return ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

// CreateTurn inserts a single conversation turn. Timestamp defaults to UTC
// now when unset. On success the row's generated ID is populated.
func CreateTurn(ctx context.Context, db *gorm.DB, turn *domain.ChatMessage) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(turn).Error
}

// GetTurn fetches a turn by ID scoped to its owner, or ErrNotFound.
func GetTurn(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SessionHasTurns reports whether the (user, session) pair has at least one
// persisted turn.
func SessionHasTurns(ctx context.Context, db *gorm.DB, userID uint, session string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("user_id = ? AND chat_session = ?", userID, session).
		Count(&n).Error
	return n > 0, err
}

// ListSessionTurns returns every turn of one session in conversation order
// ((timestamp, id) ascending). An empty slice means the session does not
// exist for this user.
func ListSessionTurns(ctx context.Context, db *gorm.DB, userID uint, session string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("user_id = ? AND chat_session = ?", userID, session).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListUserTurns returns all of a user's turns across every session in
// conversation order. Used by the service layer to derive session summaries
// by grouping on chat_session.
func ListUserTurns(ctx context.Context, db *gorm.DB, userID uint) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListTurnsPage returns a newest-first page of a user's turns, optionally
// narrowed to one character. Use CountTurns for pagination metadata.
func ListTurnsPage(ctx context.Context, db *gorm.DB, userID uint, characterID *uint, offset, limit int) ([]domain.ChatMessage, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if characterID != nil {
		q = q.Where("character_id = ?", *characterID)
	}
	q = q.Order("timestamp DESC, id DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.ChatMessage
	err := q.Find(&out).Error
	return out, err
}

// CountTurns returns the number of turns for a user, optionally narrowed to
// one character.
func CountTurns(ctx context.Context, db *gorm.DB, userID uint, characterID *uint) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ChatMessage{}).Where("user_id = ?", userID)
	if characterID != nil {
		q = q.Where("character_id = ?", *characterID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// DeleteSessionTurns removes every turn of one (user, session) pair inside a
// transaction and returns the number of deleted rows. Zero rows is not an
// error here; the service layer decides whether that means NotFound.
func DeleteSessionTurns(ctx context.Context, db *gorm.DB, userID uint, session string) (int64, error) {
	var deleted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND chat_session = ?", userID, session).
			Delete(&domain.ChatMessage{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
