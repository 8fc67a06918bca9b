// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Character
// and Favorite models.
//
// Error semantics:
//   - When a character or favorite is not found, functions return ErrNotFound.
//   - Unique-constraint failures ((name, movie) pair or duplicate favorite)
//     are returned as ErrDuplicate; the service layer maps them to Conflict.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

// CharacterFilter narrows ListCharacters results.
type CharacterFilter struct {
	Genre            string // empty means all genres
	Skip             int
	Limit            int  // <= 0 means no limit
	IncludeGenerated bool // include auto-generated placeholder rows
}

// CreateCharacter inserts a new character row. Returns ErrDuplicate when the
// (name, movie) pair already exists.
func CreateCharacter(ctx context.Context, db *gorm.DB, c *domain.Character) error {
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetCharacter fetches a character by primary key, or ErrNotFound.
func GetCharacter(ctx context.Context, db *gorm.DB, id uint) (*domain.Character, error) {
	var c domain.Character
	err := db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCharacters returns catalog rows ordered by primary key ascending.
// Unless IncludeGenerated is set, placeholder rows are filtered out: a row is
// a placeholder when its source is "generated" or its name matches
// Character_<digits> (case-insensitive). The filter applies at listing time
// only; placeholders remain addressable by id.
func ListCharacters(ctx context.Context, db *gorm.DB, f CharacterFilter) ([]domain.Character, error) {
	q := db.WithContext(ctx).Model(&domain.Character{})
	if f.Genre != "" {
		q = q.Where("genre = ?", f.Genre)
	}
	if !f.IncludeGenerated {
		q = q.Where("source <> ?", domain.SourceGenerated).
			Where("lower(name) NOT GLOB 'character_[0-9]*'")
	}
	q = q.Order("id asc").Offset(f.Skip)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []domain.Character
	err := q.Find(&out).Error
	return out, err
}

// FindCharacterByExternal fetches a character imported from the given source
// with the given external id, or ErrNotFound.
func FindCharacterByExternal(ctx context.Context, db *gorm.DB, source, externalID string) (*domain.Character, error) {
	var c domain.Character
	err := db.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCharacterByNameMovie fetches a character by its unique (name, movie)
// pair, or ErrNotFound.
func FindCharacterByNameMovie(ctx context.Context, db *gorm.DB, name, movie string) (*domain.Character, error) {
	var c domain.Character
	err := db.WithContext(ctx).
		Where("name = ? AND movie = ?", name, movie).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCharacter replaces all mutable columns of an existing character.
// Returns ErrNotFound when the row is missing and ErrDuplicate when the new
// (name, movie) pair collides with another row.
func UpdateCharacter(ctx context.Context, db *gorm.DB, c *domain.Character) error {
	res := db.WithContext(ctx).
		Model(&domain.Character{}).
		Where("id = ?", c.ID).
		Select("name", "movie", "chat_style", "example_responses", "genre", "source", "image_url", "external_id").
		Updates(c)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCharacter removes a character row; favorites cascade via FK.
// Returns ErrNotFound when no row was deleted.
func DeleteCharacter(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Character{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateFavorite links a user to a character. Returns ErrDuplicate when the
// favorite already exists.
func CreateFavorite(ctx context.Context, db *gorm.DB, userID, characterID uint) (*domain.Favorite, error) {
	fav := &domain.Favorite{UserID: userID, CharacterID: characterID}
	if err := db.WithContext(ctx).Create(fav).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fav, nil
}

// DeleteFavorite removes the (user, character) link. Returns ErrNotFound
// when there was nothing to remove.
func DeleteFavorite(ctx context.Context, db *gorm.DB, userID, characterID uint) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Delete(&domain.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFavoriteCharacters returns the characters a user has favorited, most
// recently favorited first.
func ListFavoriteCharacters(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Character, error) {
	var out []domain.Character
	err := db.WithContext(ctx).
		Model(&domain.Character{}).
		Joins("JOIN user_character_favorites f ON f.character_id = characters.id").
		Where("f.user_id = ?", userID).
		Order("f.created_at desc, f.id desc").
		Find(&out).Error
	return out, err
}
