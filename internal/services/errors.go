// Package services defines the business logic for accounts, the character
// catalog, and chat sessions. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Account-related errors.
var (
	// ErrEmailTaken indicates that an account with the given email already exists.
	ErrEmailTaken = errors.New("an account with this email already exists")

	// ErrNoAccount is returned on login when no account matches the email.
	ErrNoAccount = errors.New("No account found with this email address. Please check your email or sign up.")

	// ErrGoogleOnlyAccount is returned on password login against an account
	// that was created through Google and has no password set yet.
	ErrGoogleOnlyAccount = errors.New("This account was created with Google. Please sign in with Google first, then you can set a password.")

	// ErrWrongPassword is returned when the password does not match.
	ErrWrongPassword = errors.New("Incorrect password, Please try again.")

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned for malformed or revoked tokens.
	ErrInvalidCredentials = errors.New("invalid or expired credentials")

	// ErrWeakPassword is returned when a password fails the minimum length rule.
	ErrWeakPassword = errors.New("password must be at least 8 characters")

	// ErrInvalidEmail is returned when an email address fails basic validation.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Catalog-related errors.
var (
	// ErrCharacterNotFound indicates that the requested character does not exist.
	ErrCharacterNotFound = errors.New("character not found")

	// ErrDuplicateCharacter is returned when a character with the same
	// name and movie already exists.
	ErrDuplicateCharacter = errors.New("character already exists")

	// ErrDuplicateFavorite is returned when the character is already in the
	// user's favorites.
	ErrDuplicateFavorite = errors.New("character already in favorites")

	// ErrFavoriteNotFound is returned when removing a favorite that is not set.
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// Generation-related errors.
var (
	// ErrRaceNotFound indicates that the reference API has no such race.
	ErrRaceNotFound = errors.New("race not found")

	// ErrUnknownPersonaType is returned for generator types other than
	// dnd and anime.
	ErrUnknownPersonaType = errors.New("invalid character type, use 'dnd' or 'anime'")

	// ErrPersonaNameRequired is returned when an anime persona is requested
	// without a character name.
	ErrPersonaNameRequired = errors.New("name is required for anime character generation")

	// ErrHybridInputRequired is returned when a hybrid persona is requested
	// with neither a race nor an anime character.
	ErrHybridInputRequired = errors.New("at least one of dnd_race or anime_character must be provided")
)

// Chat-related errors.
var (
	// ErrSessionNotFound indicates that the requested chat session has no
	// messages or does not belong to the current user.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrEmptyPrompt is returned when a chat request carries an empty message.
	ErrEmptyPrompt = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message too long")
)
