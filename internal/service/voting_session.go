package service

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service/votingview"
)

// SessionNotifier доставляет событие всем соединениям пользователя.
// Реализуется менеджером WebSocket.
type SessionNotifier interface {
	SendEventToUser(userID string, eventType string, data interface{}) error
}

// CardState — снимок карточки голосования, уходящий зрителю по WebSocket
type CardState struct {
	ParticipantID uint    `json:"participant_id"`
	State         string  `json:"state"`
	AverageRating float64 `json:"average_rating"`
	TotalVotes    int     `json:"total_votes"`
	MyRating      int     `json:"my_rating,omitempty"`
}

// VotingSessionService держит карточки голосования живых WebSocket-сессий:
// по карточке на пару (соединение, участница). Карточка ведет зрителя по пути
// unvoted -> voting -> thank_you -> settled и показывает оптимистичный агрегат,
// а подтвержденная запись идет через движок оценок.
type VotingSessionService struct {
	ratingService *RatingService
	notifier      SessionNotifier
	thankYouDelay time.Duration

	mu    sync.Mutex
	cards map[string]map[uint]*votingview.Card
}

// NewVotingSessionService создает реестр карточек голосования
func NewVotingSessionService(ratingService *RatingService, notifier SessionNotifier, thankYouDelay time.Duration) *VotingSessionService {
	return &VotingSessionService{
		ratingService: ratingService,
		notifier:      notifier,
		thankYouDelay: thankYouDelay,
		cards:         make(map[string]map[uint]*votingview.Card),
	}
}

// BeginVoting открывает контрол оценки на карточке сессии. Для зрителя с
// активной оценкой это повторный вход через editing, для нового — unvoted ->
// voting. Неаутентифицированная сессия получает ErrUnauthenticated — сигнал
// показать вход.
func (s *VotingSessionService) BeginVoting(sessionID string, voterID, participantID uint) (*CardState, error) {
	card, err := s.cardFor(sessionID, voterID, participantID)
	if err != nil {
		return nil, err
	}

	if card.State() == votingview.StateSettled {
		err = card.BeginEditing()
	} else {
		err = card.BeginVoting()
	}
	if err != nil {
		return nil, err
	}
	return s.snapshot(participantID, card), nil
}

// Rate выполняет голос на открытой карточке сессии. Без предшествующего
// BeginVoting возвращает ErrConflict: контрол оценки не был открыт.
func (s *VotingSessionService) Rate(ctx context.Context, sessionID string, participantID uint, value int) (*CardState, error) {
	s.mu.Lock()
	card := s.cards[sessionID][participantID]
	s.mu.Unlock()
	if card == nil {
		return nil, apperrors.ErrConflict
	}

	if err := card.Rate(ctx, value); err != nil {
		return s.snapshot(participantID, card), err
	}
	return s.snapshot(participantID, card), nil
}

// CloseSession закрывает все карточки сессии. Вызывается при разрыве
// соединения: таймеры карточек должны быть остановлены.
func (s *VotingSessionService) CloseSession(sessionID string) {
	s.mu.Lock()
	cards := s.cards[sessionID]
	delete(s.cards, sessionID)
	s.mu.Unlock()

	for _, card := range cards {
		card.Close()
	}
	if len(cards) > 0 {
		log.Printf("[VotingSession] Session %s closed, cards released: %d", sessionID, len(cards))
	}
}

// cardFor возвращает карточку сессии, создавая ее из текущей поверхности
// голосования при первом обращении
func (s *VotingSessionService) cardFor(sessionID string, voterID, participantID uint) (*votingview.Card, error) {
	s.mu.Lock()
	if card, ok := s.cards[sessionID][participantID]; ok {
		s.mu.Unlock()
		return card, nil
	}
	s.mu.Unlock()

	surface, err := s.ratingService.GetVotingSurface(voterID, participantID)
	if err != nil {
		return nil, err
	}

	var card *votingview.Card
	card = votingview.NewCard(votingview.Config{
		Authenticated: voterID > 0,
		Open:          surface.VotingOpen,
		CurrentRating: surface.CurrentUserRating,
		Aggregate: entity.Aggregate{
			AverageRating: surface.AverageRating,
			TotalVotes:    surface.TotalVotes,
		},
		ThankYouDelay: s.thankYouDelay,
		Rate: func(ctx context.Context, value int) (entity.Aggregate, error) {
			return s.ratingService.Rate(voterID, participantID, value)
		},
		OnSettled: func() {
			s.pushState(voterID, participantID, card)
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cards[sessionID][participantID]; ok {
		// Параллельное сообщение той же сессии успело создать карточку
		card.Close()
		return existing, nil
	}
	if s.cards[sessionID] == nil {
		s.cards[sessionID] = make(map[uint]*votingview.Card)
	}
	s.cards[sessionID][participantID] = card
	return card, nil
}

// pushState отправляет снимок карточки всем соединениям зрителя
func (s *VotingSessionService) pushState(voterID, participantID uint, card *votingview.Card) {
	if s.notifier == nil || voterID == 0 {
		return
	}
	userID := strconv.FormatUint(uint64(voterID), 10)
	if err := s.notifier.SendEventToUser(userID, "voting:state", s.snapshot(participantID, card)); err != nil {
		log.Printf("[VotingSession] Failed to push card state to user %s: %v", userID, err)
	}
}

func (s *VotingSessionService) snapshot(participantID uint, card *votingview.Card) *CardState {
	displayed := card.Displayed()
	return &CardState{
		ParticipantID: participantID,
		State:         string(card.State()),
		AverageRating: displayed.AverageRating,
		TotalVotes:    displayed.TotalVotes,
		MyRating:      card.MyRating(),
	}
}
