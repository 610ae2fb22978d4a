package entity

import (
	"time"
)

// Rating представляет текущую оценку одной голосующей по одной участнице.
// Уникальный индекс по паре (voter_id, participant_id) — единственная гарантия
// "один голос на пользователя": повторная запись обновляет строку, а не дублирует ее.
type Rating struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	VoterID       uint      `gorm:"not null;index;uniqueIndex:idx_voter_participant" json:"voter_id"`
	ParticipantID uint      `gorm:"not null;index;uniqueIndex:idx_voter_participant" json:"participant_id"`
	Value         int       `gorm:"not null;check:value >= 1 AND value <= 10" json:"value"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Rating) TableName() string {
	return "ratings"
}
