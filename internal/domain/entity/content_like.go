package entity

import (
	"strconv"
	"strings"
	"time"
)

// ContentLike — отметка "нравится" на фотографии участницы.
// Привязка к участнице идет через соглашение об идентификаторе контента:
// "participant_<id>_photo_<n>". Агрегатор активности голосующих разбирает
// идентификатор обратно в id участницы.
type ContentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VoterID   uint      `gorm:"not null;index" json:"voter_id"`
	ContentID string    `gorm:"size:100;not null;index" json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (ContentLike) TableName() string {
	return "content_likes"
}

// ParticipantID разбирает id участницы из идентификатора контента.
// Возвращает 0, если идентификатор не следует соглашению.
func (l *ContentLike) ParticipantID() uint {
	parts := strings.Split(l.ContentID, "_")
	if len(parts) < 2 || parts[0] != "participant" {
		return 0
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}
