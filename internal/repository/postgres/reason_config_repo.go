package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ReasonConfigRepo реализует repository.ReasonConfigRepository
type ReasonConfigRepo struct {
	db *gorm.DB
}

// NewReasonConfigRepo создает новый репозиторий снимков словаря причин
func NewReasonConfigRepo(db *gorm.DB) *ReasonConfigRepo {
	return &ReasonConfigRepo{db: db}
}

// GetLatest возвращает снимок словаря с максимальной версией
func (r *ReasonConfigRepo) GetLatest() (*entity.ReasonConfig, error) {
	var config entity.ReasonConfig
	err := r.db.Order("version DESC").First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &config, nil
}

// Create сохраняет новый снимок словаря. Снимки никогда не обновляются:
// правка словаря — это всегда новая версия.
func (r *ReasonConfigRepo) Create(config *entity.ReasonConfig) error {
	return r.db.Create(config).Error
}
