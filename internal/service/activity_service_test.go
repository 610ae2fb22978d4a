package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ============================================================================
// Моки для тестирования ActivityService
// ============================================================================

type MockRatingHistoryRepoForActivity struct {
	mock.Mock
}

func (m *MockRatingHistoryRepoForActivity) GetByParticipant(participantID uint) ([]entity.RatingHistory, error) {
	args := m.Called(participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RatingHistory), args.Error(1)
}

func (m *MockRatingHistoryRepoForActivity) GetByOwnerUser(ownerUserID uint) ([]entity.RatingHistory, error) {
	args := m.Called(ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RatingHistory), args.Error(1)
}

func (m *MockRatingHistoryRepoForActivity) GetByVoter(voterID uint) ([]entity.RatingHistory, error) {
	args := m.Called(voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RatingHistory), args.Error(1)
}

type MockLikeRepoForActivity struct {
	mock.Mock
}

func (m *MockLikeRepoForActivity) GetByVoter(voterID uint) ([]entity.ContentLike, error) {
	args := m.Called(voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ContentLike), args.Error(1)
}

func intPtr(v int) *int { return &v }

func at(hour int) time.Time {
	return time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
}

func participantRepoFor(id, ownerID uint) *MockParticipantRepoForRating {
	repo := new(MockParticipantRepoForRating)
	repo.On("GetByID", id).Return(&entity.Participant{ID: id, UserID: ownerID}, nil)
	return repo
}

// ============================================================================
// Тесты сводки голосующих по участнице
// ============================================================================

func TestActivityService_ParticipantVoters_GroupsByVoter(t *testing.T) {
	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("GetByParticipant", uint(1)).Return([]entity.Rating{
		{VoterID: 5, ParticipantID: 1, Value: 10},
		{VoterID: 7, ParticipantID: 1, Value: 6},
	}, nil)

	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByParticipant", uint(1)).Return([]entity.RatingHistory{
		// Журнал приходит вперемешку; сервис восстанавливает хронологию
		{VoterID: 5, ParticipantID: 1, OldValue: intPtr(8), NewValue: 10, Action: entity.RatingActionUpdate, CreatedAt: at(12)},
		{VoterID: 7, ParticipantID: 1, NewValue: 6, Action: entity.RatingActionCreate, CreatedAt: at(11)},
		{VoterID: 5, ParticipantID: 1, NewValue: 8, Action: entity.RatingActionCreate, CreatedAt: at(10)},
	}, nil)
	historyRepo.On("GetByOwnerUser", uint(101)).Return([]entity.RatingHistory{}, nil)

	userRepo := new(MockUserRepoForStatus)
	userRepo.On("GetByIDs", mock.Anything).Return([]entity.User{
		{ID: 5, Email: "first@example.com"},
		{ID: 7, Email: "second@example.com"},
	}, nil)

	svc := NewActivityService(historyRepo, ratingRepo, participantRepoFor(1, 101), userRepo, new(MockLikeRepoForActivity))

	histories, err := svc.ParticipantVoters(1)

	require.NoError(t, err)
	require.Len(t, histories, 2)

	first := histories[0]
	assert.Equal(t, uint(5), first.VoterID)
	assert.Equal(t, "first@example.com", first.VoterName)
	assert.Equal(t, 10, first.LatestValue)
	assert.False(t, first.Degraded)
	// Хронология от старых к новым: create 8, затем update 8 -> 10
	require.Len(t, first.Changes, 2)
	assert.Equal(t, entity.RatingActionCreate, first.Changes[0].Action)
	assert.Equal(t, 8, first.Changes[0].NewValue)
	assert.Equal(t, 10, first.Changes[1].NewValue)
	require.NotNil(t, first.Changes[1].OldValue)
	assert.Equal(t, 8, *first.Changes[1].OldValue)

	second := histories[1]
	assert.Equal(t, uint(7), second.VoterID)
	require.Len(t, second.Changes, 1)
}

func TestActivityService_ParticipantVoters_DegradesWithoutHistory(t *testing.T) {
	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("GetByParticipant", uint(1)).Return([]entity.Rating{
		{VoterID: 5, ParticipantID: 1, Value: 9, UpdatedAt: at(14)},
	}, nil)

	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByParticipant", uint(1)).Return(nil, errors.New("table missing"))

	userRepo := new(MockUserRepoForStatus)
	userRepo.On("GetByIDs", mock.Anything).Return([]entity.User{{ID: 5, Email: "v@example.com"}}, nil)

	svc := NewActivityService(historyRepo, ratingRepo, participantRepoFor(1, 101), userRepo, new(MockLikeRepoForActivity))

	histories, err := svc.ParticipantVoters(1)

	// Отказ журнала деградирует сводку до текущих оценок, не роняя ее
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.True(t, histories[0].Degraded)
	require.Len(t, histories[0].Changes, 1)
	assert.Equal(t, 9, histories[0].Changes[0].NewValue)
	assert.Equal(t, at(14), histories[0].Changes[0].CreatedAt)
}

func TestActivityService_ParticipantVoters_MergesLegacyOwnerRecords(t *testing.T) {
	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("GetByParticipant", uint(1)).Return([]entity.Rating{
		{VoterID: 5, ParticipantID: 1, Value: 9},
	}, nil)

	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByParticipant", uint(1)).Return([]entity.RatingHistory{
		{VoterID: 5, ParticipantID: 1, OldValue: intPtr(6), NewValue: 9, Action: entity.RatingActionUpdate, CreatedAt: at(12)},
	}, nil)
	// Старые записи ключевались владельцем анкеты, participant_id в них пуст
	historyRepo.On("GetByOwnerUser", uint(101)).Return([]entity.RatingHistory{
		{VoterID: 5, OwnerUserID: 101, NewValue: 6, Action: entity.RatingActionCreate, CreatedAt: at(9)},
		{VoterID: 5, OwnerUserID: 101, ParticipantID: 1, NewValue: 9, Action: entity.RatingActionUpdate, CreatedAt: at(12)},
	}, nil)

	userRepo := new(MockUserRepoForStatus)
	userRepo.On("GetByIDs", mock.Anything).Return([]entity.User{{ID: 5, Email: "v@example.com"}}, nil)

	svc := NewActivityService(historyRepo, ratingRepo, participantRepoFor(1, 101), userRepo, new(MockLikeRepoForActivity))

	histories, err := svc.ParticipantVoters(1)

	require.NoError(t, err)
	require.Len(t, histories, 1)
	// Унаследованная запись влилась в хронологию; дубликат с participant_id отброшен
	require.Len(t, histories[0].Changes, 2)
	assert.Equal(t, 6, histories[0].Changes[0].NewValue)
	assert.Equal(t, 9, histories[0].Changes[1].NewValue)
	assert.False(t, histories[0].Degraded)
}

// ============================================================================
// Тесты активности голосующего
// ============================================================================

func TestActivityService_GetVoterActivity(t *testing.T) {
	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByVoter", uint(5)).Return([]entity.RatingHistory{
		// Участница 2: create 4, затем update 7 — актуально 7
		{VoterID: 5, ParticipantID: 2, NewValue: 4, CreatedAt: at(9)},
		{VoterID: 5, ParticipantID: 2, OldValue: intPtr(4), NewValue: 7, CreatedAt: at(10)},
		// Просматриваемая участница исключается
		{VoterID: 5, ParticipantID: 1, NewValue: 10, CreatedAt: at(11)},
		{VoterID: 5, ParticipantID: 3, NewValue: 5, CreatedAt: at(8)},
	}, nil)

	likeRepo := new(MockLikeRepoForActivity)
	likeRepo.On("GetByVoter", uint(5)).Return([]entity.ContentLike{
		{VoterID: 5, ContentID: "participant_3_photo_1"},
		{VoterID: 5, ContentID: "participant_3_photo_2"},
		{VoterID: 5, ContentID: "participant_1_photo_1"},
		{VoterID: 5, ContentID: "banner_main"},
	}, nil)

	svc := NewActivityService(historyRepo, new(MockRatingRepoForRating), new(MockParticipantRepoForRating), new(MockUserRepoForStatus), likeRepo)

	activity, err := svc.GetVoterActivity(5, 1)

	require.NoError(t, err)
	assert.Equal(t, map[uint]int{2: 7, 3: 5}, activity.OtherRatings)
	// Дубликаты, чужой контент и просматриваемая участница отфильтрованы
	assert.Equal(t, []uint{3}, activity.LikedParticipants)
}

func TestActivityService_GetVoterActivity_SourcesUnavailable(t *testing.T) {
	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByVoter", uint(5)).Return(nil, errors.New("db down"))
	likeRepo := new(MockLikeRepoForActivity)
	likeRepo.On("GetByVoter", uint(5)).Return(nil, errors.New("db down"))

	svc := NewActivityService(historyRepo, new(MockRatingRepoForRating), new(MockParticipantRepoForRating), new(MockUserRepoForStatus), likeRepo)

	activity, err := svc.GetVoterActivity(5, 1)

	// Обе части сводки пусты, но запрос не падает
	require.NoError(t, err)
	assert.Empty(t, activity.OtherRatings)
	assert.Empty(t, activity.LikedParticipants)
}

func TestActivityService_ExportParticipantVoters(t *testing.T) {
	ratingRepo := new(MockRatingRepoForRating)
	ratingRepo.On("GetByParticipant", uint(1)).Return([]entity.Rating{
		{VoterID: 5, ParticipantID: 1, Value: 8, UpdatedAt: at(12)},
	}, nil)

	historyRepo := new(MockRatingHistoryRepoForActivity)
	historyRepo.On("GetByParticipant", uint(1)).Return([]entity.RatingHistory{
		{VoterID: 5, ParticipantID: 1, NewValue: 8, Action: entity.RatingActionCreate, CreatedAt: at(12)},
	}, nil)
	historyRepo.On("GetByOwnerUser", uint(101)).Return([]entity.RatingHistory{}, nil)

	userRepo := new(MockUserRepoForStatus)
	userRepo.On("GetByIDs", mock.Anything).Return([]entity.User{{ID: 5, Email: "v@example.com"}}, nil)

	svc := NewActivityService(historyRepo, ratingRepo, participantRepoFor(1, 101), userRepo, new(MockLikeRepoForActivity))

	data, err := svc.ExportParticipantVoters(1)

	require.NoError(t, err)
	// XLSX — это zip-архив, файл начинается с сигнатуры PK
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte{'P', 'K'}, data[:2])
}
