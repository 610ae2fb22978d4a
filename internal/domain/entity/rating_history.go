package entity

import (
	"time"
)

// Виды действий в истории оценок
const (
	RatingActionCreate = "create"
	RatingActionUpdate = "update"
)

// RatingHistory — append-only запись об изменении оценки.
// Текущая оценка пары (voter, participant) всегда выводима как new_value
// самой свежей записи; две репрезентации не должны расходиться.
type RatingHistory struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	VoterID       uint `gorm:"not null;index" json:"voter_id"`
	ParticipantID uint `gorm:"not null;index" json:"participant_id"`

	// OwnerUserID — fallback-ссылка на владельца анкеты для старых записей,
	// где participant_id отсутствовал.
	OwnerUserID uint `gorm:"not null;default:0;index" json:"owner_user_id"`

	OldValue  *int      `gorm:"default:null" json:"old_value,omitempty"`
	NewValue  int       `gorm:"not null" json:"new_value"`
	Action    string    `gorm:"size:20;not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (RatingHistory) TableName() string {
	return "rating_history"
}
