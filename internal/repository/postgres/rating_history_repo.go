package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// RatingHistoryRepo реализует repository.RatingHistoryRepository
type RatingHistoryRepo struct {
	db *gorm.DB
}

// NewRatingHistoryRepo создает новый репозиторий истории оценок
func NewRatingHistoryRepo(db *gorm.DB) *RatingHistoryRepo {
	return &RatingHistoryRepo{db: db}
}

// GetByParticipant возвращает историю оценок участницы в хронологическом порядке
func (r *RatingHistoryRepo) GetByParticipant(participantID uint) ([]entity.RatingHistory, error) {
	var entries []entity.RatingHistory
	err := r.db.Where("participant_id = ?", participantID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// GetByOwnerUser возвращает историю по владельцу анкеты.
// Fallback для старых записей, где participant_id не заполнялся.
func (r *RatingHistoryRepo) GetByOwnerUser(ownerUserID uint) ([]entity.RatingHistory, error) {
	var entries []entity.RatingHistory
	err := r.db.Where("owner_user_id = ?", ownerUserID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// GetByVoter возвращает все изменения оценок, сделанные голосующей
func (r *RatingHistoryRepo) GetByVoter(voterID uint) ([]entity.RatingHistory, error) {
	var entries []entity.RatingHistory
	err := r.db.Where("voter_id = ?", voterID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
