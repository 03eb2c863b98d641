package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Buyer is a case purchaser in the resale waterfall. The waterfall is the
// priority-ordered list of active buyers; lower Priority is offered first.
type Buyer struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	ContactEmail string    `gorm:"size:255" json:"contact_email"`
	TortType     string    `gorm:"size:100;index" json:"tort_type"`

	PayoutPerCase float64 `json:"payout_per_case"`
	Priority      int     `gorm:"default:0;index" json:"priority"`
	Active        bool    `gorm:"default:true" json:"active"`

	Notes string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
