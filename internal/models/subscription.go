package models

import (
	"time"

	"soko/internal/domain"

	"gorm.io/gorm"
)

// Subscription is the paid entitlement that gates call admission. Rows are
// written by the billing side of the platform; this service only reads them.
type Subscription struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Plan      string         `gorm:"size:50" json:"plan"`
	Status    string         `gorm:"size:20;not null;index" json:"status"` // ACTIVE, CANCELED, EXPIRED
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// ActiveAt reports whether the entitlement grants access at t: the status
// flag must be set and the expiry strictly in the future.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s.Status == domain.SubscriptionStatusActive && s.ExpiresAt.After(t)
}
