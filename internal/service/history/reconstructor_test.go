package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ============================================================================
// Вспомогательные данные
// ============================================================================

func baseSupport() Support {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return Support{
		CreatedAt:         created,
		SubmittedAt:       created,
		ResubmitThreshold: 5 * time.Minute,
		Location:          time.UTC,
		ActorNames: map[uint]string{
			7: "admin@example.com",
		},
	}
}

// ============================================================================
// Тесты разбора кодировок
// ============================================================================

func TestReconstruct_ArrayEncoding(t *testing.T) {
	// Arrange: современная кодировка-массив
	blob := json.RawMessage(`[
		{"status": "pending", "timestamp": "2026-03-10T12:01:00Z", "actor_label": "system"},
		{"status": "this week", "timestamp": "2026-03-12T09:00:00Z", "actor_id": 7, "week_label": "2026-03-09 - 2026-03-15"}
	]`)

	// Act
	entries := Reconstruct(blob, baseSupport())

	// Assert: две записи из blob-а плюс синтезированное "created", новые первыми
	require.Len(t, entries, 3)
	assert.Equal(t, "this week", entries[0].Status)
	assert.Equal(t, "2026-03-09 - 2026-03-15", entries[0].WeekLabel)
	assert.Equal(t, "pending", entries[1].Status)
	assert.Equal(t, entity.StatusCreated, entries[2].Status)
	assert.Equal(t, entity.ActorSystem, entries[2].ActorLabel)
}

func TestReconstruct_DatetimeKeyedObject(t *testing.T) {
	// Arrange: вторая кодировка — ключи-даты
	blob := json.RawMessage(`{
		"2026-03-11T10:30:00": {"old_status": "pending", "new_status": "next week", "changed_by": 7},
		"2026-03-13T08:00:00": {"old_status": "next week", "new_status": "", "changed_by": "user"}
	}`)

	// Act
	entries := Reconstruct(blob, baseSupport())

	// Assert
	require.Len(t, entries, 3)

	// Статус без new_status падает обратно на old_status
	assert.Equal(t, "next week", entries[0].Status)
	assert.Equal(t, "participant", entries[0].ActorLabel)

	assert.Equal(t, "next week", entries[1].Status)
	assert.Equal(t, "Changed from pending to next week", entries[1].Reason)
	assert.Equal(t, uint(7), entries[1].ActorID)
	assert.Equal(t, "admin@example.com", entries[1].ActorLabel)
}

func TestReconstruct_StatusFallsBackToUnknown(t *testing.T) {
	blob := json.RawMessage(`{
		"2026-03-11T10:30:00": {"changed_by": 99}
	}`)

	entries := Reconstruct(blob, baseSupport())

	require.Len(t, entries, 2)
	assert.Equal(t, "unknown", entries[0].Status)
	assert.Equal(t, "Changed from unknown to unknown", entries[0].Reason)
	// Неизвестный id актора падает на системную метку
	assert.Equal(t, entity.ActorSystem, entries[0].ActorLabel)
}

func TestReconstruct_ResubmitMarkerKey(t *testing.T) {
	blob := json.RawMessage(`{
		"resubmit_1": {"timestamp": "2026-03-14T11:00:00", "reason": "photo replaced"}
	}`)

	entries := Reconstruct(blob, baseSupport())

	require.Len(t, entries, 2)
	assert.Equal(t, entity.StatusResubmitted, entries[0].Status)
	assert.Equal(t, "photo replaced", entries[0].Reason)
}

func TestReconstruct_PlainStatusKeyWithEmbeddedTimestamp(t *testing.T) {
	blob := json.RawMessage(`{
		"rejected": {"changed_at": "2026-03-15 14:00:00", "reason": "blurry photos", "reason_codes": ["photo_quality"]}
	}`)

	entries := Reconstruct(blob, baseSupport())

	require.Len(t, entries, 2)
	assert.Equal(t, "rejected", entries[0].Status)
	assert.Equal(t, "blurry photos", entries[0].Reason)
	assert.Equal(t, []string{"photo_quality"}, entries[0].ReasonCodes)
}

func TestReconstruct_MalformedFragmentSkippedIndividually(t *testing.T) {
	// Arrange: один битый фрагмент среди нормальных
	blob := json.RawMessage(`{
		"2026-03-11T10:30:00": {"new_status": "next week"},
		"2026-03-12T10:30:00": "not an object",
		"garbage-key": {"reason": "no timestamp inside"}
	}`)

	// Act
	entries := Reconstruct(blob, baseSupport())

	// Assert: битая запись и запись без времени пропущены, остальное живо
	require.Len(t, entries, 2)
	assert.Equal(t, "next week", entries[0].Status)
	assert.Equal(t, entity.StatusCreated, entries[1].Status)
}

// ============================================================================
// Тесты синтеза событий
// ============================================================================

func TestReconstruct_SynthesizesResubmissionBeyondThreshold(t *testing.T) {
	sup := baseSupport()
	sup.SubmittedAt = sup.CreatedAt.Add(10 * time.Minute)

	entries := Reconstruct(json.RawMessage(`[]`), sup)

	require.Len(t, entries, 2)
	assert.Equal(t, entity.StatusResubmitted, entries[0].Status)
	assert.True(t, entries[0].Timestamp.Equal(sup.SubmittedAt))
	assert.Equal(t, entity.StatusCreated, entries[1].Status)
}

func TestReconstruct_NoResubmissionWithinThreshold(t *testing.T) {
	sup := baseSupport()
	sup.SubmittedAt = sup.CreatedAt.Add(2 * time.Minute)

	entries := Reconstruct(json.RawMessage(`[]`), sup)

	require.Len(t, entries, 1)
	assert.Equal(t, entity.StatusCreated, entries[0].Status)
}

func TestReconstruct_ExistingResubmissionSuppressesSynthesis(t *testing.T) {
	sup := baseSupport()
	sup.SubmittedAt = sup.CreatedAt.Add(30 * time.Minute)

	blob := json.RawMessage(`{
		"resubmit_1": {"timestamp": "2026-03-10T12:30:00"}
	}`)

	entries := Reconstruct(blob, sup)

	// Ровно одно событие переподачи — из blob-а, без дубля от синтеза
	resubmits := 0
	for _, e := range entries {
		if e.Status == entity.StatusResubmitted {
			resubmits++
		}
	}
	assert.Equal(t, 1, resubmits)
}

func TestReconstruct_CreatedEntryUsesDisplayTimezone(t *testing.T) {
	sup := baseSupport()
	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)
	sup.Location = loc

	entries := Reconstruct(json.RawMessage(`[]`), sup)

	require.Len(t, entries, 1)
	assert.Equal(t, loc.String(), entries[0].Timestamp.Location().String())
	assert.True(t, entries[0].Timestamp.Equal(sup.CreatedAt))
}

// ============================================================================
// Детерминированность
// ============================================================================

func TestReconstruct_Deterministic(t *testing.T) {
	blob := json.RawMessage(`{
		"2026-03-11T10:30:00": {"new_status": "next week", "changed_by": 7},
		"2026-03-11T10:30:01": {"new_status": "next week on site"},
		"resubmit_1": {"timestamp": "2026-03-14T11:00:00"},
		"rejected": {"changed_at": "2026-03-15 14:00:00", "reason": "x"}
	}`)
	sup := baseSupport()
	sup.SubmittedAt = sup.CreatedAt.Add(time.Hour)

	first := Reconstruct(blob, sup)
	second := Reconstruct(blob, sup)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

// ============================================================================
// Тесты дозаписи
// ============================================================================

func TestAppend_ToEmptyBlobStartsArray(t *testing.T) {
	entry := entity.StatusHistoryEntry{
		Status:    entity.StatusThisWeek,
		Timestamp: time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		ActorID:   7,
	}

	blob, err := Append(nil, entry)
	require.NoError(t, err)

	entries := Reconstruct(blob, Support{Location: time.UTC})
	require.Len(t, entries, 1)
	assert.Equal(t, entity.StatusThisWeek, entries[0].Status)
}

func TestAppend_ToArrayBlob(t *testing.T) {
	blob := json.RawMessage(`[{"status": "pending", "timestamp": "2026-03-10T12:01:00Z"}]`)
	entry := entity.StatusHistoryEntry{
		Status:    entity.StatusRejected,
		Timestamp: time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		Reason:    "incomplete application",
	}

	updated, err := Append(blob, entry)
	require.NoError(t, err)

	entries := Reconstruct(updated, Support{Location: time.UTC})
	require.Len(t, entries, 2)
	assert.Equal(t, entity.StatusRejected, entries[0].Status)
	assert.Equal(t, "pending", entries[1].Status)
}

func TestAppend_ToLegacyObjectKeepsShape(t *testing.T) {
	// Дозапись в унаследованный объект не переписывает его в массив
	blob := json.RawMessage(`{"2026-03-11T10:30:00": {"new_status": "next week"}}`)
	entry := entity.StatusHistoryEntry{
		Status:    entity.StatusThisWeek,
		Timestamp: time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		ActorID:   7,
	}

	updated, err := Append(blob, entry)
	require.NoError(t, err)

	var object map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(updated, &object))
	assert.Len(t, object, 2)

	entries := Reconstruct(updated, Support{Location: time.UTC, ActorNames: map[uint]string{7: "admin@example.com"}})
	require.Len(t, entries, 2)
	assert.Equal(t, entity.StatusThisWeek, entries[0].Status)
	assert.Equal(t, "admin@example.com", entries[0].ActorLabel)
}

func TestAppend_ToLegacyObjectSameSecondKeepsBothEvents(t *testing.T) {
	// Две смены статуса в одну секунду не должны затирать друг друга:
	// аудит хранит каждый переход, включая повтор того же статуса
	blob := json.RawMessage(`{"2026-03-11T10:30:00": {"new_status": "next week"}}`)
	base := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)

	first := entity.StatusHistoryEntry{Status: entity.StatusRejected, Timestamp: base, ActorID: 7}
	second := entity.StatusHistoryEntry{Status: entity.StatusPending, Timestamp: base.Add(300 * time.Millisecond), ActorID: 7}
	third := entity.StatusHistoryEntry{Status: entity.StatusPending, Timestamp: base.Add(600 * time.Millisecond), ActorID: 7}

	updated, err := Append(blob, first)
	require.NoError(t, err)
	updated, err = Append(updated, second)
	require.NoError(t, err)
	updated, err = Append(updated, third)
	require.NoError(t, err)

	var object map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(updated, &object))
	assert.Len(t, object, 4)

	entries := Reconstruct(updated, Support{Location: time.UTC})
	require.Len(t, entries, 4)
	// Промежуточное событие rejected сохранилось и стоит на своем месте
	assert.Equal(t, entity.StatusPending, entries[0].Status)
	assert.Equal(t, entity.StatusPending, entries[1].Status)
	assert.Equal(t, entity.StatusRejected, entries[2].Status)
}
