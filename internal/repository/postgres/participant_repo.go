package postgres

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий участниц
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// Create сохраняет новую участницу
func (r *ParticipantRepo) Create(participant *entity.Participant) error {
	return r.db.Create(participant).Error
}

// GetByID возвращает участницу по id, включая мягко удаленных
func (r *ParticipantRepo) GetByID(id uint) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.Where("id = ?", id).First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// GetByStatus возвращает неудаленных участниц в заданном статусе
func (r *ParticipantRepo) GetByStatus(status string) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.Where("admin_status = ? AND deleted_at IS NULL", status).
		Order("average_rating DESC, total_votes DESC, id ASC").
		Find(&participants).Error
	return participants, err
}

// GetByWeek возвращает неудаленных участниц недели
func (r *ParticipantRepo) GetByWeek(weekLabel string) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.Where("week_label = ? AND deleted_at IS NULL", weekLabel).
		Order("average_rating DESC, total_votes DESC, id ASC").
		Find(&participants).Error
	return participants, err
}

// UpdateStatus меняет admin_status и перезаписывает status_history одной операцией.
// ВНИМАНИЕ: поля average_rating/total_votes здесь не перечислены намеренно —
// смена статуса никогда не сбрасывает агрегат оценок.
func (r *ParticipantRepo) UpdateStatus(id uint, status string, history json.RawMessage) error {
	res := r.db.Model(&entity.Participant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"admin_status":   status,
			"status_history": history,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AssignFinalRanks вычисляет и сохраняет финальные места участниц недели, используя SQL.
// Ранжирование по среднему рейтингу, при равенстве — по числу голосов.
func (r *ParticipantRepo) AssignFinalRanks(weekLabel string) error {
	sql := `
	WITH RankedParticipants AS (
	    SELECT
	        id,
	        RANK() OVER (ORDER BY average_rating DESC, total_votes DESC) as calculated_rank
	    FROM participants
	    WHERE week_label = ? AND deleted_at IS NULL
	)
	UPDATE participants p
	SET final_rank = rp.calculated_rank
	FROM RankedParticipants rp
	WHERE p.id = rp.id;`

	if err := r.db.Exec(sql, weekLabel).Error; err != nil {
		log.Printf("Error executing final rank SQL for week %s: %v", weekLabel, err)
		return err
	}

	log.Printf("[ParticipantRepo] Final ranks assigned for week %s", weekLabel)
	return nil
}

// SoftDelete помечает участницу удаленной. Запись физически не удаляется.
func (r *ParticipantRepo) SoftDelete(id uint) error {
	now := time.Now()
	res := r.db.Model(&entity.Participant{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Restore снимает пометку удаления. admin_status при восстановлении не меняется.
func (r *ParticipantRepo) Restore(id uint) error {
	res := r.db.Model(&entity.Participant{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
