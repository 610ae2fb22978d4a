package repository

import (
	"github.com/yourusername/contest-api/internal/domain/entity"
)

// VoteResult — итог подтвержденной записи оценки: сама строка, признак первого
// голоса, прежнее значение и авторитетный агрегат, пересчитанный в той же транзакции
type VoteResult struct {
	Rating        *entity.Rating
	Created       bool
	OldValue      *int
	AverageRating float64
	TotalVotes    int
}

// RatingRepository определяет методы для работы с оценками.
// ApplyVote — единственная точка записи: upsert по ключу (voter, participant),
// append в историю и пересчет агрегата выполняются одной транзакцией.
type RatingRepository interface {
	GetUserRating(voterID, participantID uint) (*entity.Rating, error)
	GetByParticipant(participantID uint) ([]entity.Rating, error)
	ApplyVote(voterID, participantID uint, value int, ownerUserID uint) (*VoteResult, error)
}

// RatingHistoryRepository определяет методы чтения истории оценок.
// Журнал пополняется только внутри транзакции RatingRepository.ApplyVote,
// поэтому отдельной операции записи здесь нет.
type RatingHistoryRepository interface {
	GetByParticipant(participantID uint) ([]entity.RatingHistory, error)
	GetByOwnerUser(ownerUserID uint) ([]entity.RatingHistory, error)
	GetByVoter(voterID uint) ([]entity.RatingHistory, error)
}
