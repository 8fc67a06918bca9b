// Package services – CharacterService
//
// This file implements CharacterService, which owns the persona catalog:
// CRUD over characters, the favorites list, and the import path that turns
// an external search result into a local catalog entry with a synthesized
// chat style and example lines.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/llm"
	"github.com/persona-chat/go-persona-backend/internal/repo"
)

// CharacterInput carries the caller-editable character fields.
type CharacterInput struct {
	Name             string
	Movie            string
	ChatStyle        string
	ExampleResponses []string
	Genre            *string
	ImageURL         string
}

// ExternalCharacter is a search hit selected for import into the catalog.
type ExternalCharacter struct {
	Name        string
	Title       string
	Description string
	ImageURL    string
	Genre       string
	Source      string
	ExternalID  string
}

// CharacterService provides catalog and favorites operations.
type CharacterService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// LLM generates the favorite-confirmation greeting. Optional; a canned
	// greeting is used when it is nil or fails.
	LLM llm.Provider
}

// NewCharacterService constructs a CharacterService.
func NewCharacterService(db *gorm.DB, provider llm.Provider) *CharacterService {
	return &CharacterService{DB: db, LLM: provider}
}

// List returns catalog characters, optionally filtered by genre, with
// skip/limit paging. Placeholder rows are hidden.
func (s *CharacterService) List(ctx context.Context, genre *string, skip, limit int) ([]domain.Character, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var genreFilter string
	if genre != nil {
		genreFilter = strings.TrimSpace(*genre)
	}
	return repo.ListCharacters(ctx, s.DB, repo.CharacterFilter{
		Genre: genreFilter,
		Skip:  skip,
		Limit: limit,
	})
}

// Get fetches a single character by id.
func (s *CharacterService) Get(ctx context.Context, id uint) (*domain.Character, error) {
	c, err := repo.GetCharacter(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return c, nil
}

// Create inserts a manually-defined character into the catalog.
func (s *CharacterService) Create(ctx context.Context, in CharacterInput) (*domain.Character, error) {
	name := strings.TrimSpace(in.Name)
	movie := strings.TrimSpace(in.Movie)
	if name == "" || movie == "" {
		return nil, errors.New("name and movie are required")
	}

	c := &domain.Character{
		Name:             name,
		Movie:            movie,
		ChatStyle:        strings.TrimSpace(in.ChatStyle),
		ExampleResponses: in.ExampleResponses,
		Genre:            in.Genre,
		Source:           domain.SourceLocal,
		ImageURL:         strOrNil(in.ImageURL),
	}
	if c.ChatStyle == "" {
		c.ChatStyle = "Character from " + movie
	}
	if err := repo.CreateCharacter(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateCharacter
		}
		return nil, err
	}
	return c, nil
}

// Update replaces the editable fields of an existing character.
func (s *CharacterService) Update(ctx context.Context, id uint, in CharacterInput) (*domain.Character, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		c.Name = v
	}
	if v := strings.TrimSpace(in.Movie); v != "" {
		c.Movie = v
	}
	if v := strings.TrimSpace(in.ChatStyle); v != "" {
		c.ChatStyle = v
	}
	if in.ExampleResponses != nil {
		c.ExampleResponses = in.ExampleResponses
	}
	if in.Genre != nil {
		c.Genre = in.Genre
	}
	if in.ImageURL != "" {
		c.ImageURL = strOrNil(in.ImageURL)
	}
	if err := repo.UpdateCharacter(ctx, s.DB, c); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrCharacterNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateCharacter
		}
		return nil, err
	}
	return c, nil
}

// Delete removes a character. Favorites referencing it cascade away.
func (s *CharacterService) Delete(ctx context.Context, id uint) error {
	if err := repo.DeleteCharacter(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCharacterNotFound
		}
		return err
	}
	return nil
}

// Favorites returns the user's favorite characters, most recent first.
func (s *CharacterService) Favorites(ctx context.Context, userID uint) ([]domain.Character, error) {
	return repo.ListFavoriteCharacters(ctx, s.DB, userID)
}

// Favorite marks a character as a favorite and returns an in-character
// greeting. The greeting is generated best-effort; generation failures fall
// back to a canned line and never fail the favorite itself.
func (s *CharacterService) Favorite(ctx context.Context, userID, characterID uint) (string, error) {
	tr := otel.Tracer("services/CharacterService")
	ctx, span := tr.Start(ctx, "Favorite",
		trace.WithAttributes(attribute.Int64("character.id", int64(characterID))))
	defer span.End()

	c, err := s.Get(ctx, characterID)
	if err != nil {
		return "", err
	}
	if _, err := repo.CreateFavorite(ctx, s.DB, userID, characterID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return "", ErrDuplicateFavorite
		}
		return "", err
	}
	return s.greeting(ctx, c), nil
}

// Unfavorite removes a character from the user's favorites.
func (s *CharacterService) Unfavorite(ctx context.Context, userID, characterID uint) error {
	if err := repo.DeleteFavorite(ctx, s.DB, userID, characterID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrFavoriteNotFound
		}
		return err
	}
	return nil
}

// CreateFromExternal imports a search result into the catalog. Existing
// entries are reused: first by (source, external id), then by (name, movie).
// New entries get a chat style and example lines synthesized from the
// result's description.
func (s *CharacterService) CreateFromExternal(ctx context.Context, ext ExternalCharacter) (*domain.Character, error) {
	tr := otel.Tracer("services/CharacterService")
	ctx, span := tr.Start(ctx, "CreateFromExternal",
		trace.WithAttributes(
			attribute.String("character.source", ext.Source),
			attribute.String("character.external_id", ext.ExternalID),
		),
	)
	defer span.End()

	name := titleCaser.String(strings.TrimSpace(ext.Name))
	if name == "" {
		return nil, errors.New("name is required")
	}
	movie := strings.TrimSpace(ext.Title)
	if movie == "" {
		movie = "Unknown"
	}

	if ext.Source != "" && ext.ExternalID != "" {
		if c, err := repo.FindCharacterByExternal(ctx, s.DB, ext.Source, ext.ExternalID); err == nil {
			return c, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	if c, err := repo.FindCharacterByNameMovie(ctx, s.DB, name, movie); err == nil {
		return c, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	style := synthesizeChatStyle(ext.Description, movie)
	c := &domain.Character{
		Name:             name,
		Movie:            movie,
		ChatStyle:        style,
		ExampleResponses: synthesizeExamples(style, name, movie),
		Source:           ext.Source,
		ImageURL:         strOrNil(ext.ImageURL),
		ExternalID:       strOrNil(ext.ExternalID),
	}
	if g := strings.TrimSpace(ext.Genre); g != "" {
		c.Genre = &g
	}
	if c.Source == "" {
		c.Source = domain.SourceLocal
	}

	if err := repo.CreateCharacter(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a race with a concurrent import of the same character.
			return repo.FindCharacterByNameMovie(ctx, s.DB, name, movie)
		}
		return nil, err
	}
	return c, nil
}

var titleCaser = cases.Title(language.English)

// greeting asks the model for a short in-character hello. Any failure is
// logged and replaced with a canned line.
func (s *CharacterService) greeting(ctx context.Context, c *domain.Character) string {
	fallback := fmt.Sprintf("Hi, I'm %s! Great to have you here. What do you want to talk about?", c.Name)
	if s.LLM == nil {
		return fallback
	}
	msgs := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(
			"You are %s from %s. Your chat style is %s. Greet the user in one or two short sentences, in character.",
			c.Name, c.Movie, c.ChatStyle)},
		{Role: "user", Content: "Say hello!"},
	}
	out, err := s.LLM.Chat(ctx, msgs)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			log.Warn().Err(err).Str("character", c.Name).Msg("favorite greeting generation failed")
		}
		return fallback
	}
	return strings.TrimSpace(out)
}

// synthesizeChatStyle derives a coarse style tag from descriptive text.
func synthesizeChatStyle(description, movie string) string {
	d := strings.ToLower(description)
	switch {
	case containsAnyWord(d, "witty", "sarcastic", "funny"):
		return "witty and sarcastic"
	case containsAnyWord(d, "wise", "mentor"):
		return "wise and thoughtful"
	case containsAnyWord(d, "dark", "brooding", "serious"):
		return "serious and intense"
	case containsAnyWord(d, "cheerful", "optimistic", "energetic"):
		return "cheerful and energetic"
	default:
		return "Character from " + movie
	}
}

// synthesizeExamples produces a few lines matching the style so the persona
// prompt has something to imitate from the first message.
func synthesizeExamples(style, name, movie string) []string {
	switch style {
	case "witty and sarcastic":
		return []string{
			"Oh, you're back. I was beginning to think you'd found someone funnier.",
			"Sure, I could give you a straight answer. But where's the fun in that?",
		}
	case "wise and thoughtful":
		return []string{
			"Every question carries its answer within it, if you look closely.",
			"Patience. The things worth knowing take time to understand.",
		}
	case "serious and intense":
		return []string{
			"Say what you mean. I don't have patience for games.",
			"There are things you don't understand yet. Listen carefully.",
		}
	case "cheerful and energetic":
		return []string{
			"Hey hey! So glad you're here, this is going to be great!",
			"Ooh, good question! Let's figure it out together!",
		}
	default:
		return []string{
			fmt.Sprintf("Hello, I'm %s.", name),
			fmt.Sprintf("Ask me anything about %s.", movie),
		}
	}
}

func containsAnyWord(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
