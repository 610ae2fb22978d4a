package repository

import (
	"encoding/json"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ParticipantRepository определяет методы для работы с участницами
type ParticipantRepository interface {
	Create(participant *entity.Participant) error
	GetByID(id uint) (*entity.Participant, error)
	GetByStatus(status string) ([]entity.Participant, error)
	GetByWeek(weekLabel string) ([]entity.Participant, error)

	// UpdateStatus меняет admin_status и перезаписывает status_history blob одной
	// операцией. Поля агрегата оценок не затрагиваются.
	UpdateStatus(id uint, status string, history json.RawMessage) error

	// AssignFinalRanks проставляет final_rank участницам недели по убыванию
	// среднего, при равенстве — по числу голосов.
	AssignFinalRanks(weekLabel string) error

	SoftDelete(id uint) error
	Restore(id uint) error
}
