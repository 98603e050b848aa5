package repository

import (
	"time"

	"soko/internal/domain"
	"soko/internal/models"

	"gorm.io/gorm"
)

// CallRepository is the durable call ledger. Status updates refuse to touch
// rows already in a terminal state (ended, declined, missed).
type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

func (r *CallRepository) Create(rec *models.CallRecord) error {
	return r.db.Create(rec).Error
}

func (r *CallRepository) GetByID(id uint) (*models.CallRecord, error) {
	var rec models.CallRecord
	if err := r.db.First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *CallRepository) SetStatus(id uint, status string) error {
	return r.nonTerminal(id).Update("status", status).Error
}

func (r *CallRepository) MarkAnswered(id uint, at time.Time) error {
	return r.nonTerminal(id).
		Updates(map[string]interface{}{"status": domain.CallStatusAnswered, "started_at": at}).Error
}

func (r *CallRepository) MarkDeclined(id uint, at time.Time) error {
	return r.nonTerminal(id).
		Updates(map[string]interface{}{"status": domain.CallStatusDeclined, "ended_at": at}).Error
}

// MarkEnded records the end of the call. durationSec is nil for calls that
// were never answered; the column stays NULL in that case.
func (r *CallRepository) MarkEnded(id uint, at time.Time, durationSec *int) error {
	updates := map[string]interface{}{"status": domain.CallStatusEnded, "ended_at": at}
	if durationSec != nil {
		updates["duration_sec"] = *durationSec
	}
	return r.nonTerminal(id).Updates(updates).Error
}

func (r *CallRepository) ListByUser(userID uint, limit, offset int) ([]models.CallRecord, error) {
	var list []models.CallRecord
	err := r.db.Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *CallRepository) nonTerminal(id uint) *gorm.DB {
	return r.db.Model(&models.CallRecord{}).
		Where("id = ? AND status NOT IN ?", id, domain.TerminalCallStatuses)
}
