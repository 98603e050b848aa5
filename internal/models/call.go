package models

import (
	"time"

	"gorm.io/gorm"
)

// CallRecord is the durable ledger row for one call attempt. StartedAt is
// set when the call is answered; DurationSec stays NULL for calls that ended
// without ever being answered.
type CallRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CallerID    uint           `gorm:"not null;index" json:"caller_id"`
	ReceiverID  uint           `gorm:"not null;index" json:"receiver_id"`
	CallType    string         `gorm:"size:10;not null" json:"call_type"` // audio | video
	Status      string         `gorm:"size:20;not null;index" json:"status"`
	StartedAt   *time.Time     `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at"`
	DurationSec *int           `json:"duration_sec"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Caller   User `gorm:"foreignKey:CallerID" json:"-"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"-"`
}

func (CallRecord) TableName() string {
	return "call_records"
}
