// Package history восстанавливает хронологию статусов участницы из накопленного
// status_history blob. Формат blob-а менялся за время жизни продукта, поэтому
// разбор устроен как классификация каждого сырого фрагмента в один из закрытого
// набора вариантов с последующей нормализацией. Восстановление чистое и
// детерминированное: при одинаковом blob-е и одинаковых опорных данных результат
// всегда байт-в-байт одинаков.
package history

import (
	"encoding/json"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
)

// ResubmitKeyPrefix — префикс ключа-маркера переподачи анкеты во второй кодировке
const ResubmitKeyPrefix = "resubmit_"

// userDisplayLabel — фиксированная подпись для литерального маркера "user"
const userDisplayLabel = "participant"

// Поддерживаемые форматы времени в унаследованных записях
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// datetimeKeyPattern распознает ключи-даты во второй кодировке blob-а
var datetimeKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`)

// Support — опорные данные восстановления: они, вместе с blob-ом, полностью
// определяют результат.
type Support struct {
	// CreatedAt — время создания анкеты; из него синтезируется событие "created"
	CreatedAt time.Time

	// SubmittedAt — время подачи анкеты. Если оно отстоит от CreatedAt больше
	// чем на ResubmitThreshold и в blob-е нет записи о переподаче, синтезируется
	// событие "pending (re-submitted)".
	SubmittedAt time.Time

	// ResubmitThreshold — порог распознавания переподачи (эвристика, наблюдаемое
	// значение 5 минут; вынесено в конфигурацию)
	ResubmitThreshold time.Duration

	// Location — часовой пояс региона запрашивающего админа
	Location *time.Location

	// ActorNames — карта id актора -> отображаемое имя/email
	ActorNames map[uint]string
}

// Варианты сырых фрагментов второй кодировки
type keyKind int

const (
	kindDatetime keyKind = iota // ключ — дата/время события смены статуса
	kindResubmit                // ключ — маркер переподачи
	kindPlain                   // ключ — имя статуса, время внутри значения
)

// classifyKey относит ключ объекта к одному из вариантов
func classifyKey(key string) keyKind {
	switch {
	case strings.HasPrefix(key, ResubmitKeyPrefix):
		return kindResubmit
	case datetimeKeyPattern.MatchString(key):
		return kindDatetime
	default:
		return kindPlain
	}
}

// rawEvent — сырое значение фрагмента. Поля избыточны, потому что разные
// кодировки называли одно и то же по-разному.
type rawEvent struct {
	Status      string          `json:"status"`
	OldStatus   string          `json:"old_status"`
	NewStatus   string          `json:"new_status"`
	Timestamp   string          `json:"timestamp"`
	ChangedAt   string          `json:"changed_at"`
	ChangedBy   json.RawMessage `json:"changed_by"`
	Actor       json.RawMessage `json:"actor"`
	WeekLabel   string          `json:"week_label"`
	Reason      string          `json:"reason"`
	ReasonCodes []string        `json:"reason_codes"`
}

// Reconstruct приводит blob к единой хронологии, новые события первыми.
// Некорректные фрагменты пропускаются поодиночке: одна битая запись не должна
// обнулять весь журнал.
func Reconstruct(blob json.RawMessage, sup Support) []entity.StatusHistoryEntry {
	loc := sup.Location
	if loc == nil {
		loc = time.UTC
	}

	entries := parseBlob(blob, sup, loc)

	// Синтезируем событие создания анкеты
	if !sup.CreatedAt.IsZero() {
		entries = append(entries, entity.StatusHistoryEntry{
			Status:     entity.StatusCreated,
			Timestamp:  sup.CreatedAt.In(loc),
			ActorLabel: entity.ActorSystem,
		})
	}

	// Синтезируем переподачу по разрыву между created_at и submitted_at,
	// если blob сам о ней не рассказал
	if needsResubmitSynthesis(entries, sup) {
		entries = append(entries, entity.StatusHistoryEntry{
			Status:     entity.StatusResubmitted,
			Timestamp:  sup.SubmittedAt.In(loc),
			ActorLabel: entity.ActorSystem,
		})
	}

	// Новые события первыми. Стабильная сортировка поверх детерминированного
	// порядка разбора дает воспроизводимый результат.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries
}

// parseBlob разбирает одну из трех унаследованных кодировок
func parseBlob(blob json.RawMessage, sup Support, loc *time.Location) []entity.StatusHistoryEntry {
	trimmed := strings.TrimSpace(string(blob))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	// Кодировка (а): массив уже нормализованных записей
	if strings.HasPrefix(trimmed, "[") {
		return parseArrayBlob(blob, loc)
	}

	// Кодировки (б) и (в): объект с разнородными ключами
	if strings.HasPrefix(trimmed, "{") {
		return parseObjectBlob(blob, sup, loc)
	}

	log.Printf("[History] Неожиданная форма status_history blob, фрагмент пропущен")
	return nil
}

// parseArrayBlob разбирает современную кодировку-массив
func parseArrayBlob(blob json.RawMessage, loc *time.Location) []entity.StatusHistoryEntry {
	var raw []json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		log.Printf("[History] Не удалось разобрать массив истории: %v", err)
		return nil
	}

	entries := make([]entity.StatusHistoryEntry, 0, len(raw))
	for _, fragment := range raw {
		var entry entity.StatusHistoryEntry
		if err := json.Unmarshal(fragment, &entry); err != nil {
			log.Printf("[History] Битая запись истории пропущена: %v", err)
			continue
		}
		if entry.Status == "" || entry.Timestamp.IsZero() {
			log.Printf("[History] Запись истории без статуса или времени пропущена")
			continue
		}
		entry.Timestamp = entry.Timestamp.In(loc)
		entries = append(entries, entry)
	}
	return entries
}

// parseObjectBlob разбирает унаследованные объектные кодировки.
// Ключи обходятся в отсортированном порядке: результат не зависит от
// случайного порядка итерации по map.
func parseObjectBlob(blob json.RawMessage, sup Support, loc *time.Location) []entity.StatusHistoryEntry {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(blob, &object); err != nil {
		log.Printf("[History] Не удалось разобрать объект истории: %v", err)
		return nil
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]entity.StatusHistoryEntry, 0, len(keys))
	for _, key := range keys {
		var event rawEvent
		if err := json.Unmarshal(object[key], &event); err != nil {
			log.Printf("[History] Битый фрагмент истории под ключом %q пропущен: %v", key, err)
			continue
		}

		var entry entity.StatusHistoryEntry
		var ok bool
		switch classifyKey(key) {
		case kindDatetime:
			entry, ok = datetimeEntry(key, event, loc)
		case kindResubmit:
			entry, ok = resubmitEntry(event, loc)
		case kindPlain:
			entry, ok = plainEntry(key, event, loc)
		}
		if !ok {
			continue
		}

		entry.ActorID, entry.ActorLabel = resolveActor(event, sup)
		entries = append(entries, entry)
	}
	return entries
}

// datetimeEntry строит событие смены статуса из фрагмента с ключом-датой.
// Статус берется из new_status, затем old_status, затем "unknown";
// причина синтезируется как "Changed from <old> to <new>".
func datetimeEntry(key string, event rawEvent, loc *time.Location) (entity.StatusHistoryEntry, bool) {
	ts, ok := parseTime(key)
	if !ok {
		log.Printf("[History] Ключ-дата %q не разобран, фрагмент пропущен", key)
		return entity.StatusHistoryEntry{}, false
	}

	status := event.NewStatus
	if status == "" {
		status = event.OldStatus
	}
	if status == "" {
		status = "unknown"
	}

	reason := event.Reason
	if reason == "" {
		reason = "Changed from " + orUnknown(event.OldStatus) + " to " + orUnknown(event.NewStatus)
	}

	return entity.StatusHistoryEntry{
		Status:      status,
		Timestamp:   ts.In(loc),
		WeekLabel:   event.WeekLabel,
		Reason:      reason,
		ReasonCodes: event.ReasonCodes,
	}, true
}

// resubmitEntry строит событие переподачи из фрагмента с маркерным ключом
func resubmitEntry(event rawEvent, loc *time.Location) (entity.StatusHistoryEntry, bool) {
	ts, ok := eventTime(event)
	if !ok {
		log.Printf("[History] Маркер переподачи без времени, фрагмент пропущен")
		return entity.StatusHistoryEntry{}, false
	}
	return entity.StatusHistoryEntry{
		Status:    entity.StatusResubmitted,
		Timestamp: ts.In(loc),
		Reason:    event.Reason,
	}, true
}

// plainEntry строит событие из фрагмента, у которого ключ — имя статуса,
// а время вложено в значение
func plainEntry(key string, event rawEvent, loc *time.Location) (entity.StatusHistoryEntry, bool) {
	ts, ok := eventTime(event)
	if !ok {
		log.Printf("[History] Фрагмент %q без встроенного времени пропущен", key)
		return entity.StatusHistoryEntry{}, false
	}
	return entity.StatusHistoryEntry{
		Status:      key,
		Timestamp:   ts.In(loc),
		WeekLabel:   event.WeekLabel,
		Reason:      event.Reason,
		ReasonCodes: event.ReasonCodes,
	}, true
}

// eventTime достает время события из самого фрагмента
func eventTime(event rawEvent) (time.Time, bool) {
	if event.Timestamp != "" {
		return parseTime(event.Timestamp)
	}
	if event.ChangedAt != "" {
		return parseTime(event.ChangedAt)
	}
	return time.Time{}, false
}

// resolveActor приводит сырое поле актора к подписи для отображения:
// число — поиск имени по id, литерал "user" — фиксированная подпись,
// все остальное — системная метка.
func resolveActor(event rawEvent, sup Support) (uint, string) {
	raw := event.ChangedBy
	if len(raw) == 0 {
		raw = event.Actor
	}
	if len(raw) == 0 {
		return 0, entity.ActorSystem
	}

	var id uint
	if err := json.Unmarshal(raw, &id); err == nil && id > 0 {
		if name, ok := sup.ActorNames[id]; ok && name != "" {
			return id, name
		}
		return id, entity.ActorSystem
	}

	var marker string
	if err := json.Unmarshal(raw, &marker); err == nil && marker == entity.ActorUser {
		return 0, userDisplayLabel
	}
	return 0, entity.ActorSystem
}

// needsResubmitSynthesis решает, нужно ли синтезировать событие переподачи
func needsResubmitSynthesis(entries []entity.StatusHistoryEntry, sup Support) bool {
	if sup.CreatedAt.IsZero() || sup.SubmittedAt.IsZero() {
		return false
	}
	threshold := sup.ResubmitThreshold
	if threshold <= 0 {
		threshold = 5 * time.Minute
	}
	if sup.SubmittedAt.Sub(sup.CreatedAt) <= threshold {
		return false
	}
	for _, entry := range entries {
		if entry.Status == entity.StatusResubmitted {
			return false
		}
	}
	return true
}

// parseTime пробует все поддерживаемые форматы времени
func parseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func orUnknown(status string) string {
	if status == "" {
		return "unknown"
	}
	return status
}

// Append добавляет событие в blob, сохраняя его текущую форму: к массиву
// дописывается элемент, к унаследованному объекту — ключ-дата (кодировка (б)),
// пустой blob начинает современный массив. Reconstruct обязан понимать
// результат любой ветки.
func Append(blob json.RawMessage, entry entity.StatusHistoryEntry) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(blob))

	if trimmed == "" || trimmed == "null" {
		return json.Marshal([]entity.StatusHistoryEntry{entry})
	}

	if strings.HasPrefix(trimmed, "[") {
		var raw []json.RawMessage
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, err
		}
		fragment, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		raw = append(raw, fragment)
		return json.Marshal(raw)
	}

	// Унаследованный объект: дописываем ключ-дату, не переписывая историю
	var object map[string]json.RawMessage
	if err := json.Unmarshal(blob, &object); err != nil {
		return nil, err
	}
	fragment, err := json.Marshal(rawEvent{
		NewStatus:   entry.Status,
		ChangedBy:   marshalActor(entry),
		WeekLabel:   entry.WeekLabel,
		Reason:      entry.Reason,
		ReasonCodes: entry.ReasonCodes,
	})
	if err != nil {
		return nil, err
	}
	object[objectKeyFor(object, entry.Timestamp)] = fragment
	return json.Marshal(object)
}

// objectKeyFor выбирает свободный ключ-дату для события. Две смены статуса
// в одну секунду уточняются до миллисекунд, чтобы не затереть друг друга:
// каждый переход, включая повтор того же статуса, остается в аудите.
func objectKeyFor(object map[string]json.RawMessage, ts time.Time) string {
	ts = ts.UTC()
	key := ts.Format("2006-01-02T15:04:05")
	if _, taken := object[key]; !taken {
		return key
	}
	key = ts.Format("2006-01-02T15:04:05.000")
	for _, taken := object[key]; taken; _, taken = object[key] {
		ts = ts.Add(time.Millisecond)
		key = ts.Format("2006-01-02T15:04:05.000")
	}
	return key
}

func marshalActor(entry entity.StatusHistoryEntry) json.RawMessage {
	if entry.ActorID > 0 {
		raw, _ := json.Marshal(entry.ActorID)
		return raw
	}
	if entry.ActorLabel != "" {
		raw, _ := json.Marshal(entry.ActorLabel)
		return raw
	}
	return nil
}

// ActorIDs собирает уникальные числовые id акторов из blob-а. Используется
// сервисом статусов, чтобы одним запросом загрузить имена перед Reconstruct.
func ActorIDs(blob json.RawMessage) []uint {
	entries := parseBlob(blob, Support{}, time.UTC)
	seen := make(map[uint]bool)
	var ids []uint
	for _, entry := range entries {
		if entry.ActorID > 0 && !seen[entry.ActorID] {
			seen[entry.ActorID] = true
			ids = append(ids, entry.ActorID)
		}
	}
	return ids
}
