package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_Recompute_FirstVote(t *testing.T) {
	agg := Aggregate{AverageRating: 7.5, TotalVotes: 4}

	next := agg.Recompute(nil, 10)

	assert.Equal(t, 5, next.TotalVotes)
	assert.InDelta(t, 8.0, next.AverageRating, 1e-9)
	// Исходный агрегат не мутируется
	assert.Equal(t, 4, agg.TotalVotes)
}

func TestAggregate_Recompute_Revision(t *testing.T) {
	agg := Aggregate{AverageRating: 7.0, TotalVotes: 2}

	// Смена 8 -> 10 не меняет число голосов
	old := 8
	next := agg.Recompute(&old, 10)

	assert.Equal(t, 2, next.TotalVotes)
	assert.InDelta(t, 8.0, next.AverageRating, 1e-9)
}

func TestAggregate_Recompute_FromEmpty(t *testing.T) {
	next := Aggregate{}.Recompute(nil, 6)

	assert.Equal(t, 1, next.TotalVotes)
	assert.InDelta(t, 6.0, next.AverageRating, 1e-9)
}

func TestParticipant_IsVotingOpen(t *testing.T) {
	open := Participant{AdminStatus: StatusThisWeek}
	assert.True(t, open.IsVotingOpen())

	// Закрытая когорта
	past := Participant{AdminStatus: StatusPast}
	assert.False(t, past.IsVotingOpen())

	// Демо-карточка всегда read-only
	sample := Participant{AdminStatus: StatusThisWeek, IsSample: true}
	assert.False(t, sample.IsVotingOpen())

	// Мягко удаленная участница закрыта для голосования
	now := time.Now()
	deleted := Participant{AdminStatus: StatusThisWeek, DeletedAt: &now}
	assert.False(t, deleted.IsVotingOpen())
}

func TestIsValidAdminStatus(t *testing.T) {
	for _, status := range []string{
		StatusPending, StatusRejected, StatusPreNextWeek, StatusNextWeek,
		StatusNextWeekOnSite, StatusThisWeek, StatusPast,
	} {
		assert.True(t, IsValidAdminStatus(status), status)
	}
	assert.False(t, IsValidAdminStatus("approved"))
	assert.False(t, IsValidAdminStatus(""))
}

func TestContentLike_ParticipantID(t *testing.T) {
	like := ContentLike{ContentID: "participant_17_photo_2"}
	assert.Equal(t, uint(17), like.ParticipantID())

	// Идентификаторы вне соглашения дают 0
	assert.Equal(t, uint(0), (&ContentLike{ContentID: "banner_main"}).ParticipantID())
	assert.Equal(t, uint(0), (&ContentLike{ContentID: "participant_x_photo_1"}).ParticipantID())
}
