package repository

import (
	"github.com/yourusername/contest-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)

	// GetByIDs возвращает пользователей по списку id одним запросом.
	// Используется для резолва акторов в истории статусов и имен голосующих.
	GetByIDs(ids []uint) ([]entity.User, error)
}

// LikeRepository определяет методы для работы с отметками "нравится"
type LikeRepository interface {
	GetByVoter(voterID uint) ([]entity.ContentLike, error)
}

// ReasonConfigRepository определяет методы для работы со снимками словаря причин
type ReasonConfigRepository interface {
	GetLatest() (*entity.ReasonConfig, error)
	Create(config *entity.ReasonConfig) error
}
