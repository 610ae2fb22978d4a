package service

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service/history"
)

// RejectionNotifier отправляет участнице письмо об отклонении анкеты.
// Реализуется почтовым сервисом.
type RejectionNotifier interface {
	SendRejectionNotice(email, name string, codes []string, note string) error
}

// StatusConfig — настройки менеджера статусов
type StatusConfig struct {
	// ResubmitThreshold — порог синтеза события переподачи при восстановлении истории
	ResubmitThreshold time.Duration

	// DisplayTimezone — часовой пояс по умолчанию для отображения истории,
	// если у админа не задан свой
	DisplayTimezone string
}

// StatusService — менеджер жизненного цикла анкеты участницы.
// Любая смена статуса, включая повторное назначение текущего, дописывает
// событие в журнал: админы полагаются на журнал как на свидетельство того,
// что действие было совершено.
type StatusService struct {
	participantRepo repository.ParticipantRepository
	userRepo        repository.UserRepository
	reasonRepo      repository.ReasonConfigRepository
	notifier        RejectionNotifier
	config          StatusConfig
}

// NewStatusService создает новый менеджер статусов
func NewStatusService(
	participantRepo repository.ParticipantRepository,
	userRepo repository.UserRepository,
	reasonRepo repository.ReasonConfigRepository,
	notifier RejectionNotifier,
	config StatusConfig,
) *StatusService {
	if config.ResubmitThreshold <= 0 {
		config.ResubmitThreshold = 5 * time.Minute
	}
	if config.DisplayTimezone == "" {
		config.DisplayTimezone = "UTC"
	}
	return &StatusService{
		participantRepo: participantRepo,
		userRepo:        userRepo,
		reasonRepo:      reasonRepo,
		notifier:        notifier,
		config:          config,
	}
}

// SetStatus назначает участнице новый статус от имени админа.
// Переходы разрешены между любыми статусами, в том числе в текущий: модель
// доверяет админам, а журнал фиксирует каждое действие. Отклонение требует
// заполненной причины.
func (s *StatusService) SetStatus(participantID, adminID uint, status string, rejection *entity.RejectionPayload) error {
	// Шаг 1: статус должен быть известен словарю
	if !entity.IsValidAdminStatus(status) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, status)
	}

	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return err
	}

	// Шаг 2: отклонение без причины блокируется до записи
	if status == entity.StatusRejected {
		if rejection.IsEmpty() {
			return apperrors.ErrIncompleteRejection
		}
		if err := s.validateReasonCodes(rejection.Codes); err != nil {
			return err
		}
	}

	// Шаг 3: дописываем событие в журнал. Событие пишется всегда, даже при
	// повторном назначении текущего статуса.
	entry := entity.StatusHistoryEntry{
		Status:    status,
		Timestamp: time.Now().UTC(),
		ActorID:   adminID,
		WeekLabel: participant.WeekLabel,
	}
	if rejection != nil {
		entry.ReasonCodes = rejection.Codes
		entry.Reason = rejection.Note
	}

	blob, err := history.Append(participant.StatusHistory, entry)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	// Шаг 4: статус и журнал сохраняются одной операцией
	if err := s.participantRepo.UpdateStatus(participantID, status, blob); err != nil {
		return err
	}

	// Шаг 5: уведомление об отклонении. Письмо не должно блокировать или
	// откатывать уже записанный переход.
	if status == entity.StatusRejected && s.notifier != nil {
		s.sendRejectionNotice(participant, rejection)
	}

	return nil
}

// validateReasonCodes сверяет коды с последним снимком словаря причин
func (s *StatusService) validateReasonCodes(codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	config, err := s.reasonRepo.GetLatest()
	if err != nil {
		return fmt.Errorf("failed to load reason config: %w", err)
	}
	for _, code := range codes {
		if !config.HasCode(code) {
			return fmt.Errorf("%w: unknown reason code %q", apperrors.ErrValidation, code)
		}
	}
	return nil
}

func (s *StatusService) sendRejectionNotice(participant *entity.Participant, rejection *entity.RejectionPayload) {
	owner, err := s.userRepo.GetByID(participant.UserID)
	if err != nil {
		log.Printf("[StatusService] Rejection notice skipped: owner %d not found: %v", participant.UserID, err)
		return
	}
	go func() {
		if err := s.notifier.SendRejectionNotice(owner.Email, participant.Name, rejection.Codes, rejection.Note); err != nil {
			log.Printf("[StatusService] Failed to send rejection notice to %s: %v", owner.Email, err)
		}
	}()
}

// GetStatusHistory восстанавливает журнал статусов участницы в нормализованном
// виде, новые события первыми. Времена приводятся к часовому поясу админа.
func (s *StatusService) GetStatusHistory(participantID, adminID uint) ([]entity.StatusHistoryEntry, error) {
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return nil, err
	}

	entries := history.Reconstruct(participant.StatusHistory, history.Support{
		CreatedAt:         participant.CreatedAt,
		SubmittedAt:       participant.SubmittedAt,
		ResubmitThreshold: s.config.ResubmitThreshold,
		Location:          s.displayLocation(adminID),
		ActorNames:        s.collectActorNames(participant.StatusHistory),
	})
	return entries, nil
}

// displayLocation возвращает часовой пояс админа, иначе пояс по умолчанию
func (s *StatusService) displayLocation(adminID uint) *time.Location {
	tz := s.config.DisplayTimezone
	if adminID != 0 {
		if admin, err := s.userRepo.GetByID(adminID); err == nil && admin.Timezone != "" {
			tz = admin.Timezone
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("[StatusService] Unknown timezone %q, falling back to UTC", tz)
		return time.UTC
	}
	return loc
}

// collectActorNames резолвит id акторов из blob-а в отображаемые имена
func (s *StatusService) collectActorNames(blob []byte) map[uint]string {
	ids := history.ActorIDs(blob)
	if len(ids) == 0 {
		return nil
	}
	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		log.Printf("[StatusService] Failed to resolve actor names: %v", err)
		return nil
	}
	names := make(map[uint]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}
	return names
}

// CurrentReasonConfig возвращает действующий снимок словаря причин
func (s *StatusService) CurrentReasonConfig() (*entity.ReasonConfig, error) {
	return s.reasonRepo.GetLatest()
}

// UpdateReasonConfig создает новую версию словаря причин. Прежние снимки не
// изменяются: исторические отклонения продолжают ссылаться на коды своего времени.
func (s *StatusService) UpdateReasonConfig(adminID uint, codes []string) (*entity.ReasonConfig, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: reason config must contain at least one code", apperrors.ErrValidation)
	}

	version := 1
	if current, err := s.reasonRepo.GetLatest(); err == nil {
		version = current.Version + 1
	}

	config := &entity.ReasonConfig{
		Version:   version,
		Codes:     codes,
		CreatedBy: adminID,
	}
	if err := s.reasonRepo.Create(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ConcludeWeek завершает неделю: переводит ее участниц в "past" и фиксирует
// итоговые места по убыванию среднего рейтинга
func (s *StatusService) ConcludeWeek(weekLabel string, adminID uint) error {
	participants, err := s.participantRepo.GetByWeek(weekLabel)
	if err != nil {
		return err
	}

	for i := range participants {
		p := &participants[i]
		if p.AdminStatus != entity.StatusThisWeek {
			continue
		}
		if err := s.SetStatus(p.ID, adminID, entity.StatusPast, nil); err != nil {
			return fmt.Errorf("failed to conclude participant %d: %w", p.ID, err)
		}
	}

	if err := s.participantRepo.AssignFinalRanks(weekLabel); err != nil {
		return err
	}

	log.Printf("[StatusService] Week %s concluded by admin %d", weekLabel, adminID)
	return nil
}

// SoftDelete скрывает участницу из публичных выборок. Статус и журнал не
// затрагиваются: удаление ортогонально жизненному циклу статусов.
func (s *StatusService) SoftDelete(participantID uint) error {
	return s.participantRepo.SoftDelete(participantID)
}

// Restore возвращает участницу в выборки с прежним статусом
func (s *StatusService) Restore(participantID uint) error {
	return s.participantRepo.Restore(participantID)
}
