package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// ============================================================================
// Моки для тестирования RatingService
// ============================================================================

type MockRatingRepoForRating struct {
	mock.Mock
}

func (m *MockRatingRepoForRating) GetUserRating(voterID, participantID uint) (*entity.Rating, error) {
	args := m.Called(voterID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Rating), args.Error(1)
}

func (m *MockRatingRepoForRating) GetByParticipant(participantID uint) ([]entity.Rating, error) {
	args := m.Called(participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Rating), args.Error(1)
}

func (m *MockRatingRepoForRating) ApplyVote(voterID, participantID uint, value int, ownerUserID uint) (*repository.VoteResult, error) {
	args := m.Called(voterID, participantID, value, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.VoteResult), args.Error(1)
}

type MockParticipantRepoForRating struct {
	mock.Mock
}

func (m *MockParticipantRepoForRating) Create(participant *entity.Participant) error {
	return m.Called(participant).Error(0)
}

func (m *MockParticipantRepoForRating) GetByID(id uint) (*entity.Participant, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Participant), args.Error(1)
}

func (m *MockParticipantRepoForRating) GetByStatus(status string) ([]entity.Participant, error) {
	args := m.Called(status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockParticipantRepoForRating) GetByWeek(weekLabel string) ([]entity.Participant, error) {
	args := m.Called(weekLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockParticipantRepoForRating) UpdateStatus(id uint, status string, history json.RawMessage) error {
	return m.Called(id, status, history).Error(0)
}

func (m *MockParticipantRepoForRating) AssignFinalRanks(weekLabel string) error {
	return m.Called(weekLabel).Error(0)
}

func (m *MockParticipantRepoForRating) SoftDelete(id uint) error {
	return m.Called(id).Error(0)
}

func (m *MockParticipantRepoForRating) Restore(id uint) error {
	return m.Called(id).Error(0)
}

type MockBroadcasterForRating struct {
	mock.Mock
}

func (m *MockBroadcasterForRating) BroadcastEvent(eventType string, data interface{}) error {
	return m.Called(eventType, data).Error(0)
}

func openParticipant(id uint) *entity.Participant {
	return &entity.Participant{
		ID:          id,
		UserID:      100 + id,
		Name:        "Алия",
		AdminStatus: entity.StatusThisWeek,
		WeekLabel:   "2026-W35",
	}
}

// ============================================================================
// Тесты валидации голоса
// ============================================================================

func TestRatingService_Rate_Unauthenticated(t *testing.T) {
	svc := NewRatingService(new(MockRatingRepoForRating), new(MockParticipantRepoForRating), nil, nil, DefaultRatingConfig())

	_, err := svc.Rate(0, 1, 8)

	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestRatingService_Rate_ParticipantNotFound(t *testing.T) {
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(42)).Return(nil, apperrors.ErrNotFound)
	svc := NewRatingService(new(MockRatingRepoForRating), participantRepo, nil, nil, DefaultRatingConfig())

	_, err := svc.Rate(1, 42, 8)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRatingService_Rate_VotingClosed(t *testing.T) {
	closed := openParticipant(1)
	closed.AdminStatus = entity.StatusPast

	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(closed, nil)
	svc := NewRatingService(new(MockRatingRepoForRating), participantRepo, nil, nil, DefaultRatingConfig())

	_, err := svc.Rate(1, 1, 8)

	assert.ErrorIs(t, err, apperrors.ErrVotingClosed)
}

func TestRatingService_Rate_SampleParticipantClosed(t *testing.T) {
	sample := openParticipant(2)
	sample.IsSample = true

	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(2)).Return(sample, nil)
	svc := NewRatingService(new(MockRatingRepoForRating), participantRepo, nil, nil, DefaultRatingConfig())

	_, err := svc.Rate(1, 2, 8)

	assert.ErrorIs(t, err, apperrors.ErrVotingClosed)
}

func TestRatingService_Rate_ValueOutOfBounds(t *testing.T) {
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(openParticipant(1), nil)
	ratingRepo := new(MockRatingRepoForRating)
	svc := NewRatingService(ratingRepo, participantRepo, nil, nil, DefaultRatingConfig())

	_, errLow := svc.Rate(1, 1, 0)
	_, errHigh := svc.Rate(1, 1, 11)

	assert.ErrorIs(t, errLow, apperrors.ErrInvalidRating)
	assert.ErrorIs(t, errHigh, apperrors.ErrInvalidRating)
	// Невалидное значение не доходит до записи
	ratingRepo.AssertNotCalled(t, "ApplyVote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// Тесты записи и рассылки
// ============================================================================

func TestRatingService_Rate_Success(t *testing.T) {
	participant := openParticipant(1)
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(participant, nil)

	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("ApplyVote", uint(5), uint(1), 8, participant.UserID).Return(&repository.VoteResult{
		Rating:        &entity.Rating{VoterID: 5, ParticipantID: 1, Value: 8},
		Created:       true,
		AverageRating: 8.0,
		TotalVotes:    1,
	}, nil)

	broadcaster := new(MockBroadcasterForRating)
	broadcaster.On("BroadcastEvent", "participant:rating_updated", mock.Anything).Return(nil)

	svc := NewRatingService(ratingRepo, participantRepo, nil, broadcaster, DefaultRatingConfig())

	aggregate, err := svc.Rate(5, 1, 8)

	require.NoError(t, err)
	assert.InDelta(t, 8.0, aggregate.AverageRating, 1e-9)
	assert.Equal(t, 1, aggregate.TotalVotes)
	broadcaster.AssertExpectations(t)
}

func TestRatingService_Rate_WriteFailureIsRetryable(t *testing.T) {
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(openParticipant(1), nil)

	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("ApplyVote", uint(5), uint(1), 8, mock.Anything).Return(nil, errors.New("connection reset"))

	svc := NewRatingService(ratingRepo, participantRepo, nil, nil, DefaultRatingConfig())

	_, err := svc.Rate(5, 1, 8)

	// Ошибка записи помечена как безопасная для повтора
	assert.ErrorIs(t, err, apperrors.ErrWriteFailed)
}

func TestRatingService_CurrentUserRating(t *testing.T) {
	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("GetUserRating", uint(5), uint(1)).Return(&entity.Rating{Value: 7}, nil)
	ratingRepo.On("GetUserRating", uint(5), uint(2)).Return(nil, apperrors.ErrNotFound)

	svc := NewRatingService(ratingRepo, new(MockParticipantRepoForRating), nil, nil, DefaultRatingConfig())

	value, err := svc.CurrentUserRating(5, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	// Отсутствие оценки — не ошибка
	value, err = svc.CurrentUserRating(5, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, value)

	// Аноним всегда без оценки
	value, err = svc.CurrentUserRating(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, value)
}

func TestRatingService_GetVotingSurface_Anonymous(t *testing.T) {
	participant := openParticipant(1)
	participant.AverageRating = 7.4
	participant.TotalVotes = 12

	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(participant, nil)

	svc := NewRatingService(new(MockRatingRepoForRating), participantRepo, nil, nil, DefaultRatingConfig())

	surface, err := svc.GetVotingSurface(0, 1)

	require.NoError(t, err)
	assert.InDelta(t, 7.4, surface.AverageRating, 1e-9)
	assert.Equal(t, 12, surface.TotalVotes)
	assert.Equal(t, 0, surface.CurrentUserRating)
	assert.True(t, surface.VotingOpen)
	assert.Equal(t, "unvoted", surface.VoteState)
}

// ============================================================================
// Сквозные тесты на fake-хранилище: идемпотентность и среднее
// ============================================================================

// fakeRatingStore — хранилище в памяти с семантикой ApplyVote:
// upsert по (voter, participant) и пересчет агрегата
type fakeRatingStore struct {
	votes map[[2]uint]int
}

func newFakeRatingStore() *fakeRatingStore {
	return &fakeRatingStore{votes: make(map[[2]uint]int)}
}

func (f *fakeRatingStore) GetUserRating(voterID, participantID uint) (*entity.Rating, error) {
	value, ok := f.votes[[2]uint{voterID, participantID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &entity.Rating{VoterID: voterID, ParticipantID: participantID, Value: value}, nil
}

func (f *fakeRatingStore) GetByParticipant(participantID uint) ([]entity.Rating, error) {
	var out []entity.Rating
	for key, value := range f.votes {
		if key[1] == participantID {
			out = append(out, entity.Rating{VoterID: key[0], ParticipantID: participantID, Value: value})
		}
	}
	return out, nil
}

func (f *fakeRatingStore) ApplyVote(voterID, participantID uint, value int, ownerUserID uint) (*repository.VoteResult, error) {
	key := [2]uint{voterID, participantID}
	old, existed := f.votes[key]
	f.votes[key] = value

	sum, count := 0, 0
	for k, v := range f.votes {
		if k[1] == participantID {
			sum += v
			count++
		}
	}
	result := &repository.VoteResult{
		Rating:        &entity.Rating{VoterID: voterID, ParticipantID: participantID, Value: value},
		Created:       !existed,
		AverageRating: float64(sum) / float64(count),
		TotalVotes:    count,
	}
	if existed {
		result.OldValue = &old
	}
	return result, nil
}

func TestRatingService_EndToEnd_RevisionReplacesVote(t *testing.T) {
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(openParticipant(1), nil)

	store := newFakeRatingStore()
	svc := NewRatingService(store, participantRepo, nil, nil, RatingConfig{MinValue: 1, MaxValue: 10, CacheTTL: time.Minute})

	// Первый зритель ставит 8: среднее 8.0, один голос
	agg, err := svc.Rate(1, 1, 8)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, agg.AverageRating, 1e-9)
	assert.Equal(t, 1, agg.TotalVotes)

	// Второй зритель ставит 6: среднее 7.0, два голоса
	agg, err = svc.Rate(2, 1, 6)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, agg.AverageRating, 1e-9)
	assert.Equal(t, 2, agg.TotalVotes)

	// Первый зритель меняет 8 на 10: среднее 8.0, голосов по-прежнему два
	agg, err = svc.Rate(1, 1, 10)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, agg.AverageRating, 1e-9)
	assert.Equal(t, 2, agg.TotalVotes)

	current, err := svc.CurrentUserRating(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, current)
}

func TestRatingService_EndToEnd_RepeatAfterFailureIsSafe(t *testing.T) {
	participantRepo := new(MockParticipantRepoForRating)
	participantRepo.On("GetByID", uint(1)).Return(openParticipant(1), nil)

	store := newFakeRatingStore()
	svc := NewRatingService(store, participantRepo, nil, nil, DefaultRatingConfig())

	// Повтор того же голоса не меняет агрегат
	first, err := svc.Rate(1, 1, 9)
	require.NoError(t, err)
	second, err := svc.Rate(1, 1, 9)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.TotalVotes)
}
