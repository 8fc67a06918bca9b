// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

// SessionsStats returns aggregate metadata for a user's conversation turns:
// the total number of rows and the maximum Timestamp among those rows.
// Any new turn in any session moves the maximum, which makes the pair a
// cheap change detector for the session listing.
//
// Return values:
//   - count:   total turns for userID
//   - maxTime: pointer to the greatest Timestamp, or nil if no rows
//   - err:     database error, if any
func SessionsStats(ctx context.Context, db *gorm.DB, userID uint) (count int64, maxTime *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatMessage{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}

// CharactersStats returns aggregate metadata for the character catalog: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
// When the catalog is empty, the returned count is 0 and maxUpdatedAt is nil.
func CharactersStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Character{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
