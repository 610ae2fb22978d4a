package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// LikeRepo реализует repository.LikeRepository
type LikeRepo struct {
	db *gorm.DB
}

// NewLikeRepo создает новый репозиторий отметок "нравится"
func NewLikeRepo(db *gorm.DB) *LikeRepo {
	return &LikeRepo{db: db}
}

// GetByVoter возвращает все отметки голосующей
func (r *LikeRepo) GetByVoter(voterID uint) ([]entity.ContentLike, error) {
	var likes []entity.ContentLike
	err := r.db.Where("voter_id = ?", voterID).
		Order("created_at DESC").
		Find(&likes).Error
	return likes, err
}
