package repository

import (
	"errors"
	"time"

	"soko/internal/models"

	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID returns (nil, nil) when the user has no subscription row.
func (r *SubscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// IsActive queries the entitlement fresh every time; results are never
// cached so an expired grant cannot admit another call.
func (r *SubscriptionRepository) IsActive(userID uint, at time.Time) (bool, error) {
	sub, err := r.GetByUserID(userID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.ActiveAt(at), nil
}
