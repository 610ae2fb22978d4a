package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service/votingview"
)

// RatingBroadcaster рассылает событие всем подключенным клиентам.
// Реализуется менеджером WebSocket.
type RatingBroadcaster interface {
	BroadcastEvent(eventType string, data interface{}) error
}

// RatingConfig — границы шкалы оценок
type RatingConfig struct {
	MinValue int
	MaxValue int
	CacheTTL time.Duration
}

// DefaultRatingConfig возвращает шкалу 1..10 с часовым кэшем
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{MinValue: 1, MaxValue: 10, CacheTTL: time.Hour}
}

// VotingSurface — все, что нужно карточке участницы для отрисовки голосования
type VotingSurface struct {
	ParticipantID     uint    `json:"participant_id"`
	AverageRating     float64 `json:"average_rating"`
	TotalVotes        int     `json:"total_votes"`
	CurrentUserRating int     `json:"current_user_rating"`
	VotingOpen        bool    `json:"voting_open"`

	// VoteState — стартовое состояние карточки для этого зрителя
	VoteState string `json:"vote_state"`
}

// RatingService — движок оценок: единственная точка записи голосов.
// Валидирует голос, выполняет идемпотентную запись и пересчет агрегата в
// одной транзакции и рассылает обновленный агрегат подписчикам.
type RatingService struct {
	ratingRepo      repository.RatingRepository
	participantRepo repository.ParticipantRepository
	cacheRepo       repository.CacheRepository
	broadcaster     RatingBroadcaster
	config          RatingConfig
}

// NewRatingService создает новый сервис оценок
func NewRatingService(
	ratingRepo repository.RatingRepository,
	participantRepo repository.ParticipantRepository,
	cacheRepo repository.CacheRepository,
	broadcaster RatingBroadcaster,
	config RatingConfig,
) *RatingService {
	if config.MinValue == 0 && config.MaxValue == 0 {
		config = DefaultRatingConfig()
	}
	return &RatingService{
		ratingRepo:      ratingRepo,
		participantRepo: participantRepo,
		cacheRepo:       cacheRepo,
		broadcaster:     broadcaster,
		config:          config,
	}
}

// Rate записывает голос зрителя за участницу и возвращает подтвержденный
// агрегат. Повторный голос той же пары (зритель, участница) замещает прежнюю
// оценку, а не добавляет новую, поэтому повтор после ошибки безопасен.
func (s *RatingService) Rate(voterID, participantID uint, value int) (entity.Aggregate, error) {
	// Шаг 1: проверяем аутентификацию
	if voterID == 0 {
		return entity.Aggregate{}, apperrors.ErrUnauthenticated
	}

	// Шаг 2: участница должна существовать и быть открыта для голосования
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return entity.Aggregate{}, err
	}
	if !participant.IsVotingOpen() {
		return entity.Aggregate{}, apperrors.ErrVotingClosed
	}

	// Шаг 3: значение в границах шкалы
	if value < s.config.MinValue || value > s.config.MaxValue {
		return entity.Aggregate{}, fmt.Errorf("%w: value %d is outside [%d, %d]",
			apperrors.ErrInvalidRating, value, s.config.MinValue, s.config.MaxValue)
	}

	// Шаг 4: идемпотичная запись голоса, журнала и пересчет агрегата
	// выполняются в одной транзакции репозитория
	result, err := s.ratingRepo.ApplyVote(voterID, participantID, value, participant.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidRating) || errors.Is(err, apperrors.ErrNotFound) {
			return entity.Aggregate{}, err
		}
		log.Printf("[RatingService] Vote write failed: voter=%d participant=%d: %v",
			voterID, participantID, err)
		return entity.Aggregate{}, fmt.Errorf("%w: %v", apperrors.ErrWriteFailed, err)
	}

	aggregate := entity.Aggregate{
		AverageRating: result.AverageRating,
		TotalVotes:    result.TotalVotes,
	}

	// Шаг 5: обновляем кэш и рассылаем подписчикам. Запись уже подтверждена,
	// сбои здесь не откатывают голос.
	s.storeAggregateInCache(participantID, aggregate)
	if s.broadcaster != nil {
		payload := map[string]interface{}{
			"participant_id": participantID,
			"average_rating": aggregate.AverageRating,
			"total_votes":    aggregate.TotalVotes,
		}
		if err := s.broadcaster.BroadcastEvent("participant:rating_updated", payload); err != nil {
			log.Printf("[RatingService] Broadcast failed for participant %d: %v", participantID, err)
		}
	}

	return aggregate, nil
}

// CurrentUserRating возвращает активную оценку зрителя, 0 если ее нет
func (s *RatingService) CurrentUserRating(voterID, participantID uint) (int, error) {
	if voterID == 0 {
		return 0, nil
	}
	rating, err := s.ratingRepo.GetUserRating(voterID, participantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rating.Value, nil
}

// Aggregate возвращает агрегат участницы, сначала из кэша
func (s *RatingService) Aggregate(participantID uint) (entity.Aggregate, error) {
	var cached entity.Aggregate
	if s.cacheRepo != nil {
		if err := s.cacheRepo.GetJSON(aggregateCacheKey(participantID), &cached); err == nil {
			return cached, nil
		}
	}

	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return entity.Aggregate{}, err
	}
	aggregate := entity.Aggregate{
		AverageRating: participant.AverageRating,
		TotalVotes:    participant.TotalVotes,
	}
	s.storeAggregateInCache(participantID, aggregate)
	return aggregate, nil
}

// GetVotingSurface собирает данные карточки голосования для зрителя.
// При voterID == 0 возвращает поверхность без персональной оценки.
func (s *RatingService) GetVotingSurface(voterID, participantID uint) (*VotingSurface, error) {
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return nil, err
	}

	aggregate, err := s.Aggregate(participantID)
	if err != nil {
		return nil, err
	}

	current, err := s.CurrentUserRating(voterID, participantID)
	if err != nil {
		return nil, err
	}

	return &VotingSurface{
		ParticipantID:     participantID,
		AverageRating:     aggregate.AverageRating,
		TotalVotes:        aggregate.TotalVotes,
		CurrentUserRating: current,
		VotingOpen:        participant.IsVotingOpen(),
		VoteState:         string(votingview.InitialState(current)),
	}, nil
}

// ParticipantRatings возвращает все голоса по участнице (админский экран)
func (s *RatingService) ParticipantRatings(participantID uint) ([]entity.Rating, error) {
	return s.ratingRepo.GetByParticipant(participantID)
}

func (s *RatingService) storeAggregateInCache(participantID uint, aggregate entity.Aggregate) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.SetJSON(aggregateCacheKey(participantID), aggregate, s.config.CacheTTL); err != nil {
		log.Printf("[RatingService] Failed to cache aggregate for participant %d: %v", participantID, err)
	}
}

func aggregateCacheKey(participantID uint) string {
	return fmt.Sprintf("participant:%d:aggregate", participantID)
}
