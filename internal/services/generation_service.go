// Package services – GenerationService
//
// This file implements GenerationService, which builds ready-made persona
// prompts from external reference data: D&D 5e races, anime characters, or a
// hybrid of both. Generated personas are returned to the client as prompt
// material; importing one into the catalog goes through the regular
// from-external path.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/persona-chat/go-persona-backend/internal/search"
)

// GeneratedPersona is a persona sketch produced from reference data.
type GeneratedPersona struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image,omitempty"`
	Source      string `json:"source"`
}

// GenerationService turns reference lookups into persona sketches.
type GenerationService struct {
	// DnD reads race data from the D&D 5e reference API.
	DnD *search.DnDClient
	// Anime resolves anime characters, normally the AniList adapter.
	Anime search.Source
}

// NewGenerationService constructs a GenerationService.
func NewGenerationService(dnd *search.DnDClient, anime search.Source) *GenerationService {
	return &GenerationService{DnD: dnd, Anime: anime}
}

// Races returns the D&D race index.
func (s *GenerationService) Races(ctx context.Context) ([]search.RaceRef, error) {
	return s.DnD.Races(ctx)
}

// RaceDetails returns the full record for one race.
func (s *GenerationService) RaceDetails(ctx context.Context, race string) (*search.RaceDetail, error) {
	d, err := s.DnD.Race(ctx, race)
	if err != nil {
		if errors.Is(err, search.ErrRaceNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	return d, nil
}

// Generate builds a persona of the given type. For "dnd" the name selects a
// race, defaulting to the first indexed race; for "anime" it is the required
// character to look up.
func (s *GenerationService) Generate(ctx context.Context, characterType, name string) (*GeneratedPersona, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("persona.type", characterType)))
	defer span.End()

	switch strings.ToLower(strings.TrimSpace(characterType)) {
	case "dnd":
		return s.fromRace(ctx, name)
	case "anime":
		return s.fromAnime(ctx, name)
	default:
		return nil, ErrUnknownPersonaType
	}
}

// Hybrid builds a persona mixing a D&D race with an anime character. Either
// half may be omitted, but not both.
func (s *GenerationService) Hybrid(ctx context.Context, dndRace, animeCharacter string) (*GeneratedPersona, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Hybrid")
	defer span.End()

	dndRace = strings.TrimSpace(dndRace)
	animeCharacter = strings.TrimSpace(animeCharacter)
	if dndRace == "" && animeCharacter == "" {
		return nil, ErrHybridInputRequired
	}

	var race *search.RaceDetail
	if dndRace != "" {
		var err error
		race, err = s.RaceDetails(ctx, dndRace)
		if err != nil {
			return nil, err
		}
	}
	var anime *GeneratedPersona
	if animeCharacter != "" {
		var err error
		anime, err = s.fromAnime(ctx, animeCharacter)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case race == nil:
		anime.Type = "hybrid"
		return anime, nil
	case anime == nil:
		p := personaFromRace(race)
		p.Type = "hybrid"
		return p, nil
	}
	return &GeneratedPersona{
		Type:        "hybrid",
		Name:        fmt.Sprintf("%s the %s", anime.Name, race.Name),
		Description: anime.Description + " Reimagined as a " + race.Name + ". " + raceDescription(race),
		ImageURL:    anime.ImageURL,
		Source:      anime.Source + " / D&D 5e",
	}, nil
}

func (s *GenerationService) fromRace(ctx context.Context, name string) (*GeneratedPersona, error) {
	index := strings.TrimSpace(name)
	if index == "" {
		races, err := s.DnD.Races(ctx)
		if err != nil {
			return nil, err
		}
		if len(races) == 0 {
			return nil, ErrRaceNotFound
		}
		index = races[0].Index
	}
	race, err := s.RaceDetails(ctx, index)
	if err != nil {
		return nil, err
	}
	return personaFromRace(race), nil
}

func (s *GenerationService) fromAnime(ctx context.Context, name string) (*GeneratedPersona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPersonaNameRequired
	}
	results, err := s.Anime.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrCharacterNotFound
	}

	r := results[0]
	description := r.Description
	if description == "" {
		description = "No description available."
	}
	source := r.Title
	if source == "" {
		source = "Unknown"
	}
	return &GeneratedPersona{
		Type:        "anime",
		Name:        r.Name,
		Description: description,
		ImageURL:    r.ImageURL,
		Source:      source,
	}, nil
}

func personaFromRace(race *search.RaceDetail) *GeneratedPersona {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s character.", race.Name)
	if race.Age != "" {
		b.WriteString(" " + race.Age)
	}
	if race.Alignment != "" {
		b.WriteString(" " + race.Alignment)
	}
	b.WriteString(" " + raceDescription(race))
	return &GeneratedPersona{
		Type:        "dnd",
		Name:        race.Name,
		Description: b.String(),
		Source:      "D&D 5e",
	}
}

// raceDescription summarizes the racial traits for prompt text.
func raceDescription(race *search.RaceDetail) string {
	if len(race.Traits) == 0 {
		return "Typical traits: none recorded."
	}
	names := make([]string, 0, len(race.Traits))
	for _, t := range race.Traits {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return "Typical traits: " + strings.Join(names, ", ") + "."
}
