package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProviderEmail  = "Email"
	ProviderGoogle = "Google"

	ProviderTypeEmail  = "Email"
	ProviderTypeSocial = "Social"
)

// User mirrors a profile registered with the external identity provider.
// Credentials and sessions live with the provider; this row only carries the
// profile fields the API returns to clients.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UID          string    `gorm:"type:varchar(64);uniqueIndex" json:"uid" validate:"required"`
	Email        string    `gorm:"type:varchar(200);uniqueIndex" json:"email" validate:"required,email,min=5,max=200"`
	DisplayName  string    `gorm:"type:varchar(150)" json:"display_name" validate:"max=150"`
	Providers    string    `gorm:"type:varchar(50);default:'Email'" json:"providers"`
	ProviderType string    `gorm:"type:varchar(50);default:'Email'" json:"provider_type"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a profile row for a freshly signed-up identity. The display
// name falls back to the email local part, matching the client expectation.
func NewUser(uid, email, displayName, provider, providerType string) *User {
	name := strings.TrimSpace(displayName)
	if name == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			name = email[:at]
		} else {
			name = email
		}
	}
	return &User{
		UID:          uid,
		Email:        email,
		DisplayName:  name,
		Providers:    provider,
		ProviderType: providerType,
	}
}
