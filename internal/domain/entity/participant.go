package entity

import (
	"encoding/json"
	"time"
)

// Административные статусы участницы конкурса.
// Порядок соответствует обычному пути анкеты, но жесткого графа переходов нет:
// админ может выставить любой статус из списка.
const (
	StatusPending        = "pending"
	StatusRejected       = "rejected"
	StatusPreNextWeek    = "pre next week"
	StatusNextWeek       = "next week"
	StatusNextWeekOnSite = "next week on site"
	StatusThisWeek       = "this week"
	StatusPast           = "past"
)

// adminStatuses содержит множество допустимых статусов
var adminStatuses = map[string]struct{}{
	StatusPending:        {},
	StatusRejected:       {},
	StatusPreNextWeek:    {},
	StatusNextWeek:       {},
	StatusNextWeekOnSite: {},
	StatusThisWeek:       {},
	StatusPast:           {},
}

// IsValidAdminStatus проверяет, что статус входит в перечень допустимых
func IsValidAdminStatus(status string) bool {
	_, ok := adminStatuses[status]
	return ok
}

// Participant представляет участницу конкурса в рамках одного цикла подачи заявок
type Participant struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Location string `gorm:"size:100;not null;default:''" json:"location"`
	PhotoURL string `gorm:"size:255;not null;default:''" json:"photo_url"`

	AdminStatus string `gorm:"size:30;not null;default:'pending';index" json:"admin_status"`
	WeekLabel   string `gorm:"size:50;not null;default:''" json:"week_label"`

	// Агрегат оценок. average_rating всегда равен среднему активных оценок,
	// total_votes равен числу голосующих с активной оценкой. Поля пересчитываются
	// только в транзакции записи оценки, смена статуса их не трогает.
	AverageRating float64 `gorm:"not null;default:0" json:"average_rating"`
	TotalVotes    int     `gorm:"not null;default:0" json:"total_votes"`
	FinalRank     *int    `gorm:"default:null" json:"final_rank,omitempty"`

	// IsSample помечает демонстрационную карточку. Такие участницы
	// исключены из голосования и всегда отображаются read-only.
	IsSample bool `gorm:"not null;default:false" json:"is_sample"`

	// StatusHistory хранит накопленную историю статусов. Формат неоднородный
	// (накопился за время жизни продукта), разбор делает пакет history.
	StatusHistory json.RawMessage `gorm:"type:jsonb" json:"-"`

	SubmittedAt time.Time  `gorm:"not null" json:"submitted_at"`
	DeletedAt   *time.Time `gorm:"type:timestamp;index" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "participants"
}

// IsVotingOpen возвращает true, если по участнице можно голосовать:
// она в когорте текущей недели, не демо и не удалена
func (p *Participant) IsVotingOpen() bool {
	return p.AdminStatus == StatusThisWeek && !p.IsSample && p.DeletedAt == nil
}

// IsDeleted возвращает true, если участница помечена как удаленная
func (p *Participant) IsDeleted() bool {
	return p.DeletedAt != nil
}
