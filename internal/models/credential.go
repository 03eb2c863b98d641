package models

import (
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformGoogleAds   Platform = "google_ads"
	PlatformLeadProsper Platform = "leadprosper"
	PlatformHyros       Platform = "hyros"
	PlatformClickMagick Platform = "clickmagick"
)

// OAuthCredential stores one platform connection per user. The refresh token
// is encrypted at rest; the access token is short-lived and stored as-is.
type OAuthCredential struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_platform" json:"user_id"`

	Platform Platform `gorm:"size:30;not null;uniqueIndex:idx_user_platform" json:"platform"`

	AccessToken     string    `gorm:"type:text" json:"-"`
	RefreshTokenEnc string    `gorm:"type:text" json:"-"`
	RefreshTokenIV  string    `gorm:"size:32" json:"-"`
	ExpiresAt       time.Time `json:"expires_at"`
	Scope           string    `gorm:"size:500" json:"scope"`
	Email           string    `gorm:"size:255" json:"email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName matches the SQL migrations; GORM's default naming would derive
// o_auth_credentials from OAuthCredential.
func (OAuthCredential) TableName() string { return "oauth_credentials" }

// Expired reports whether the access token needs a refresh before use.
// A small skew window avoids handing out tokens that die mid-request.
func (c *OAuthCredential) Expired(now time.Time) bool {
	return !now.Add(60 * time.Second).Before(c.ExpiresAt)
}
