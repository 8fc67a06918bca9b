// Package domain defines the persistence models for users, characters,
// favorites, and chat turns. These types are mapped with GORM and form the
// core data layer of the application.
package domain

import "time"

// AuthProvider values recorded on User.AuthProvider.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Character source tags recorded on Character.Source.
const (
	SourceLocal       = "local"
	SourceTMDB        = "tmdb"
	SourceAniList     = "anilist"
	SourceOpenLibrary = "openlibrary"
	SourceWikipedia   = "wikipedia"
	SourceGenerated   = "generated"
)

// User represents an account. Accounts are created either with an email and
// password or through Google sign-in; a Google-only account has a nil
// HashedPassword until the user sets one, and keeps its GoogleID afterwards
// so both login paths stay valid.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Email: unique login identifier; token subject.
//   - Username: unique display name, derived from the email local part at
//     registration and possibly promoted to the Google profile name later.
//   - HashedPassword: bcrypt hash, nil for password-less Google accounts.
//   - GoogleID: unique Google subject identifier, nil for local accounts.
//   - AuthProvider: "email" or "google" (provider of the original signup).
//   - ProfilePicture: optional avatar URL from the Google profile.
//   - RefreshToken: last issued refresh token, stored for revocation checks.
type User struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	Email          string    `json:"email"           gorm:"type:varchar(255);not null;uniqueIndex"`
	Username       string    `json:"username"        gorm:"type:varchar(128);not null;uniqueIndex"`
	HashedPassword *string   `json:"-"               gorm:"type:varchar(128)"`
	GoogleID       *string   `json:"-"               gorm:"type:varchar(64);uniqueIndex"`
	AuthProvider   string    `json:"auth_provider"   gorm:"type:varchar(16);not null;default:'email';check:auth_provider IN ('email','google')"`
	ProfilePicture *string   `json:"profile_picture,omitempty" gorm:"type:varchar(512)"`
	IsActive       bool      `json:"is_active"       gorm:"not null;default:true"`
	IsSuperuser    bool      `json:"-"               gorm:"not null;default:false"`
	RefreshToken   *string   `json:"-"               gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// HasPassword reports whether a password login is possible for the account.
func (u *User) HasPassword() bool {
	return u.HashedPassword != nil && *u.HashedPassword != ""
}

// Character represents a persona the assistant can roleplay. Characters come
// from the local catalog or are imported from an external metadata source,
// in which case Source and ExternalID record their origin.
//
// Fields:
//   - Name / Movie: persona name and its origin work; unique together.
//   - ChatStyle: free-text description of how the persona speaks.
//   - ExampleResponses: 1..10 sample lines, stored as a JSON array.
//   - Genre: optional coarse genre tag (scifi, fantasy, comedy, drama, action).
//   - Source: catalog origin tag; "local" for hand-entered characters.
//   - ImageURL / ExternalID: optional metadata carried from the source.
type Character struct {
	ID               uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name             string    `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex:ux_character_name_movie,priority:1"`
	Movie            string    `json:"movie"      gorm:"type:varchar(255);not null;uniqueIndex:ux_character_name_movie,priority:2"`
	ChatStyle        string    `json:"chat_style" gorm:"type:text;not null"`
	ExampleResponses []string  `json:"example_responses" gorm:"serializer:json;type:text;not null"`
	Genre            *string   `json:"genre,omitempty"       gorm:"type:varchar(32);index"`
	Source           string    `json:"source"     gorm:"type:varchar(24);not null;default:'local'"`
	ImageURL         *string   `json:"image_url,omitempty"   gorm:"type:varchar(512)"`
	ExternalID       *string   `json:"external_id,omitempty" gorm:"type:varchar(128);index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Character.
func (Character) TableName() string { return "characters" }

// Favorite links a user to a character they have marked. A user can favorite
// a character at most once; both parents cascade on delete.
type Favorite struct {
	ID          uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      uint      `json:"user_id"      gorm:"not null;uniqueIndex:ux_favorite_user_character,priority:1"`
	CharacterID uint      `json:"character_id" gorm:"not null;uniqueIndex:ux_favorite_user_character,priority:2"`
	CreatedAt   time.Time `json:"created_at"`

	User      User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Character Character `json:"-" gorm:"foreignKey:CharacterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "user_character_favorites" }

// ChatMessage represents one turn in a conversation. Turns belong to a user
// and are grouped into sessions by the ChatSession UUID; there is no separate
// session row. Ordering within a session is (Timestamp, ID) ascending.
//
// Fields:
//   - ChatSession: opaque UUID string grouping turns into one conversation.
//   - CharacterID: persona the turn was addressed to, nil for plain chat.
//   - Message: the turn text, authored by the user or the assistant.
//   - IsBot: true for assistant turns.
type ChatMessage struct {
	ID          uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      uint      `json:"user_id"      gorm:"not null;index:idx_user_session,priority:1"`
	ChatSession string    `json:"chat_session" gorm:"type:char(36);not null;index:idx_user_session,priority:2"`
	CharacterID *uint     `json:"character_id,omitempty" gorm:"index"`
	Message     string    `json:"message"      gorm:"type:text;not null"`
	IsBot       bool      `json:"is_bot"       gorm:"not null;default:false"`
	Timestamp   time.Time `json:"timestamp"    gorm:"not null;index;autoCreateTime"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chats" }
