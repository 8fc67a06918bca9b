// Persona generation HTTP handlers.
//
// This file exposes the character generator backed by external reference
// data:
//   - GET /api/characters/dnd/races         (D&D race index)
//   - GET /api/characters/dnd/races/{race}  (one race in full)
//   - GET /api/characters/generate          (dnd or anime persona sketch)
//   - GET /api/characters/hybrid            (race and anime character combined)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/services"
)

// ListDnDRaces godoc
// @ID          listDnDRaces
// @Summary     List D&D races
// @Description Returns the D&D 5e race index used by the character generator.
// @Tags        Generation
// @Produce     json
//
// @Success     200  {array}   search.RaceRef
// @Failure     502  {object}  handlers.ErrorResponse  "Reference API unreachable"
// @Router      /api/characters/dnd/races [get]
func (h *Handlers) ListDnDRaces(c *gin.Context) {
	races, err := h.generator.Races(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "failed to fetch races")
		return
	}
	ok(c, http.StatusOK, races)
}

// GetDnDRace godoc
// @ID          getDnDRace
// @Summary     Get one D&D race
// @Description Returns the full record for a race, matched case-insensitively by index (e.g. "elf", "half-orc").
// @Tags        Generation
// @Produce     json
//
// @Param       race  path  string  true  "Race index"
//
// @Success     200  {object}  search.RaceDetail
// @Failure     404  {object}  handlers.ErrorResponse  "Race not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Reference API unreachable"
// @Router      /api/characters/dnd/races/{race} [get]
func (h *Handlers) GetDnDRace(c *gin.Context) {
	race, err := h.generator.RaceDetails(c.Request.Context(), c.Param("race"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, race)
	case errors.Is(err, services.ErrRaceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "failed to fetch race details")
	}
}

// GenerateCharacter godoc
// @ID          generateCharacter
// @Summary     Generate a persona sketch
// @Description Builds a persona prompt from reference data. character_type selects the source: "dnd" turns a race into a persona (first race when name is empty), "anime" looks up the named character.
// @Tags        Generation
// @Produce     json
//
// @Param       character_type  query  string  true   "dnd or anime"
// @Param       name            query  string  false  "Race or character name"
//
// @Success     200  {object}  services.GeneratedPersona
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown type or missing name"
// @Failure     404  {object}  handlers.ErrorResponse  "Race or character not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Reference API unreachable"
// @Router      /api/characters/generate [get]
func (h *Handlers) GenerateCharacter(c *gin.Context) {
	characterType := c.Query("character_type")
	if characterType == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character_type query parameter is required")
		return
	}

	persona, err := h.generator.Generate(c.Request.Context(), characterType, c.Query("name"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, persona)
	case errors.Is(err, services.ErrUnknownPersonaType), errors.Is(err, services.ErrPersonaNameRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrRaceNotFound), errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "character generation failed")
	}
}

// HybridCharacter godoc
// @ID          hybridCharacter
// @Summary     Generate a hybrid persona
// @Description Combines a D&D race with an anime character into one persona sketch. At least one of dnd_race and anime_character is required.
// @Tags        Generation
// @Produce     json
//
// @Param       dnd_race         query  string  false  "Race index (e.g. elf)"
// @Param       anime_character  query  string  false  "Anime character name"
//
// @Success     200  {object}  services.GeneratedPersona
// @Failure     400  {object}  handlers.ErrorResponse  "Both inputs missing"
// @Failure     404  {object}  handlers.ErrorResponse  "Race or character not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Reference API unreachable"
// @Router      /api/characters/hybrid [get]
func (h *Handlers) HybridCharacter(c *gin.Context) {
	persona, err := h.generator.Hybrid(c.Request.Context(), c.Query("dnd_race"), c.Query("anime_character"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, persona)
	case errors.Is(err, services.ErrHybridInputRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrRaceNotFound), errors.Is(err, services.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, "character generation failed")
	}
}
