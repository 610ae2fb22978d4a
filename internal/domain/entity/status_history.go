package entity

import (
	"time"

	"github.com/lib/pq"
)

// Метки актора в истории статусов
const (
	// ActorUser — литеральный маркер "user" в старых записях: действие совершила сама участница
	ActorUser = "user"
	// ActorSystem — событие синтезировано системой (создание, переподача)
	ActorSystem = "system"
)

// Статусные метки синтезированных событий
const (
	StatusCreated     = "created"
	StatusResubmitted = "pending (re-submitted)"
)

// StatusHistoryEntry — одно событие жизненного цикла участницы в нормализованном виде.
// Физически события хранятся внутри status_history blob участницы; это логическая
// форма, в которую пакет history приводит все унаследованные кодировки.
type StatusHistoryEntry struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	ActorID    uint      `json:"actor_id,omitempty"`
	ActorLabel string    `json:"actor_label,omitempty"`
	WeekLabel  string    `json:"week_label,omitempty"`
	Reason     string    `json:"reason,omitempty"`

	// ReasonCodes заполняются только для отклонений
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// RejectionPayload — структурированная причина отклонения анкеты.
// Отклонение без кодов и без заметки неполно и блокируется менеджером статусов.
type RejectionPayload struct {
	Codes []string `json:"codes"`
	Note  string   `json:"note"`
}

// IsEmpty возвращает true, если в причине нет ни кода, ни текста
func (p *RejectionPayload) IsEmpty() bool {
	return p == nil || (len(p.Codes) == 0 && p.Note == "")
}

// ReasonConfig — иммутабельный снимок словаря причин отклонения.
// Редактирование словаря создает новую версию, существующие снимки не мутируются.
type ReasonConfig struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Version   int            `gorm:"not null;uniqueIndex" json:"version"`
	Codes     pq.StringArray `gorm:"type:text[];not null" json:"codes"`
	CreatedBy uint           `gorm:"not null;default:0" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (ReasonConfig) TableName() string {
	return "reason_configs"
}

// HasCode проверяет, что код присутствует в снимке словаря
func (c *ReasonConfig) HasCode(code string) bool {
	for _, known := range c.Codes {
		if known == code {
			return true
		}
	}
	return false
}
