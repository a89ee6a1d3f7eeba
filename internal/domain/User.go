package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"               json:"id"`
	Email            string             `bson:"email"                       json:"email"`
	PasswordHash     string             `bson:"password_hash,omitempty"     json:"-"`
	Name             string             `bson:"name"                        json:"name"`
	GoogleID         string             `bson:"google_id,omitempty"         json:"-"` // Google sub
	ProfilePicture   string             `bson:"profile_picture,omitempty"   json:"profilePicture,omitempty"`
	TwoFactorSecret  string             `bson:"two_factor_secret,omitempty" json:"-"` // base32
	TwoFactorEnabled bool               `bson:"two_factor_enabled"          json:"twoFactorEnabled"`
	CreatedAt        time.Time          `bson:"created_at"                  json:"created_at"`
}

// HasPassword is false for OAuth-only accounts.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// PublicUser is the part of a user record that may leave the server.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID.Hex(), Email: u.Email, Name: u.Name}
}

// Profile is the authenticated user's own view of the account.
type Profile struct {
	PublicUser
	ProfilePicture   string `json:"profilePicture,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func (u *User) Profile() Profile {
	return Profile{PublicUser: u.Public(), ProfilePicture: u.ProfilePicture, TwoFactorEnabled: u.TwoFactorEnabled}
}

// UserPatch is a partial update. Nil fields are left untouched; a pointer to
// an empty string removes the field.
type UserPatch struct {
	Name             *string
	GoogleID         *string
	ProfilePicture   *string
	TwoFactorSecret  *string
	TwoFactorEnabled *bool
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.GoogleID == nil && p.ProfilePicture == nil &&
		p.TwoFactorSecret == nil && p.TwoFactorEnabled == nil
}

// Apply mutates u the same way the store applies p.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.GoogleID != nil {
		u.GoogleID = *p.GoogleID
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = *p.ProfilePicture
	}
	if p.TwoFactorSecret != nil {
		u.TwoFactorSecret = *p.TwoFactorSecret
	}
	if p.TwoFactorEnabled != nil {
		u.TwoFactorEnabled = *p.TwoFactorEnabled
	}
}
