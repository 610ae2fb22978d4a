package service

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
)

// RatingChange — одно изменение оценки в хронологии голосующего
type RatingChange struct {
	OldValue  *int      `json:"old_value,omitempty"`
	NewValue  int       `json:"new_value"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// VoterHistory — хронология оценок одного голосующего по участнице
type VoterHistory struct {
	VoterID     uint           `json:"voter_id"`
	VoterName   string         `json:"voter_name"`
	LatestValue int            `json:"latest_value"`
	Changes     []RatingChange `json:"changes"`

	// Degraded — хронология недоступна, показана только текущая оценка
	Degraded bool `json:"degraded,omitempty"`
}

// VoterActivity — активность голосующего по другим участницам
type VoterActivity struct {
	VoterID uint `json:"voter_id"`

	// OtherRatings — текущие оценки по другим участницам, по id участницы
	OtherRatings map[uint]int `json:"other_ratings"`

	// LikedParticipants — id участниц, чьи фотографии голосующий отметил
	LikedParticipants []uint `json:"liked_participants"`
}

// ActivityService — агрегатор истории оценок и активности голосующих для
// админских экранов. Сводка строится из журнала rating_history; при его
// недоступности экран деградирует до текущих оценок, а не падает.
type ActivityService struct {
	historyRepo     repository.RatingHistoryRepository
	ratingRepo      repository.RatingRepository
	participantRepo repository.ParticipantRepository
	userRepo        repository.UserRepository
	likeRepo        repository.LikeRepository
}

// NewActivityService создает новый агрегатор активности
func NewActivityService(
	historyRepo repository.RatingHistoryRepository,
	ratingRepo repository.RatingRepository,
	participantRepo repository.ParticipantRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
) *ActivityService {
	return &ActivityService{
		historyRepo:     historyRepo,
		ratingRepo:      ratingRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		likeRepo:        likeRepo,
	}
}

// ParticipantVoters возвращает голосующих по участнице с хронологией изменений
// каждой оценки, сгруппированной по голосующему. Хронологии внутри группы идут
// от старых к новым; группы отсортированы по id голосующего.
func (s *ActivityService) ParticipantVoters(participantID uint) ([]VoterHistory, error) {
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return nil, err
	}

	ratings, err := s.ratingRepo.GetByParticipant(participantID)
	if err != nil {
		return nil, err
	}

	// Журнал — best effort: его отказ деградирует сводку, не роняя ее
	records, histErr := s.historyRepo.GetByParticipant(participantID)
	if histErr != nil {
		log.Printf("[ActivityService] Rating history unavailable for participant %d: %v", participantID, histErr)
	} else {
		records = append(records, s.legacyRecords(participant)...)
	}

	byVoter := make(map[uint][]RatingChange)
	for _, rec := range records {
		byVoter[rec.VoterID] = append(byVoter[rec.VoterID], RatingChange{
			OldValue:  rec.OldValue,
			NewValue:  rec.NewValue,
			Action:    rec.Action,
			CreatedAt: rec.CreatedAt,
		})
	}

	names := s.voterNames(ratings)

	histories := make([]VoterHistory, 0, len(ratings))
	for _, rating := range ratings {
		h := VoterHistory{
			VoterID:     rating.VoterID,
			VoterName:   names[rating.VoterID],
			LatestValue: rating.Value,
		}
		if changes, ok := byVoter[rating.VoterID]; ok {
			sort.SliceStable(changes, func(i, j int) bool {
				return changes[i].CreatedAt.Before(changes[j].CreatedAt)
			})
			h.Changes = changes
		} else {
			// Записей в журнале нет: единственная синтетическая запись
			// из текущей оценки
			h.Degraded = true
			h.Changes = []RatingChange{{
				NewValue:  rating.Value,
				Action:    entity.RatingActionCreate,
				CreatedAt: rating.UpdatedAt,
			}}
		}
		histories = append(histories, h)
	}

	sort.Slice(histories, func(i, j int) bool {
		return histories[i].VoterID < histories[j].VoterID
	})
	return histories, nil
}

// legacyRecords добирает из журнала записи, сделанные до того, как в нем
// начали заполнять participant_id: такие строки ключуются владельцем анкеты.
func (s *ActivityService) legacyRecords(participant *entity.Participant) []entity.RatingHistory {
	if participant.UserID == 0 {
		return nil
	}
	ownerRecords, err := s.historyRepo.GetByOwnerUser(participant.UserID)
	if err != nil {
		log.Printf("[ActivityService] Legacy rating history unavailable for owner %d: %v", participant.UserID, err)
		return nil
	}
	var legacy []entity.RatingHistory
	for _, rec := range ownerRecords {
		if rec.ParticipantID == 0 {
			legacy = append(legacy, rec)
		}
	}
	return legacy
}

// voterNames загружает имена голосующих одним запросом; отказ не фатален
func (s *ActivityService) voterNames(ratings []entity.Rating) map[uint]string {
	if len(ratings) == 0 {
		return nil
	}
	seen := make(map[uint]bool, len(ratings))
	ids := make([]uint, 0, len(ratings))
	for _, r := range ratings {
		if !seen[r.VoterID] {
			seen[r.VoterID] = true
			ids = append(ids, r.VoterID)
		}
	}
	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		log.Printf("[ActivityService] Failed to resolve voter names: %v", err)
		return nil
	}
	names := make(map[uint]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}
	return names
}

// GetVoterActivity собирает активность голосующего по другим участницам:
// текущие оценки и отмеченные фотографии. Загружается лениво, по запросу
// админа для конкретного голосующего. Любой из источников может отказать —
// тогда соответствующая часть сводки остается пустой.
func (s *ActivityService) GetVoterActivity(voterID, excludeParticipantID uint) (*VoterActivity, error) {
	activity := &VoterActivity{
		VoterID:      voterID,
		OtherRatings: make(map[uint]int),
	}

	records, err := s.historyRepo.GetByVoter(voterID)
	if err != nil {
		log.Printf("[ActivityService] Ratings unavailable for voter %d: %v", voterID, err)
	} else {
		// Текущая оценка — new_value самой свежей записи по участнице
		latest := make(map[uint]entity.RatingHistory)
		for _, rec := range records {
			if rec.ParticipantID == excludeParticipantID || rec.ParticipantID == 0 {
				continue
			}
			if prev, ok := latest[rec.ParticipantID]; !ok || rec.CreatedAt.After(prev.CreatedAt) {
				latest[rec.ParticipantID] = rec
			}
		}
		for participantID, rec := range latest {
			activity.OtherRatings[participantID] = rec.NewValue
		}
	}

	likes, err := s.likeRepo.GetByVoter(voterID)
	if err != nil {
		log.Printf("[ActivityService] Likes unavailable for voter %d: %v", voterID, err)
	} else {
		seen := make(map[uint]bool)
		for i := range likes {
			participantID := likes[i].ParticipantID()
			if participantID == 0 || participantID == excludeParticipantID || seen[participantID] {
				continue
			}
			seen[participantID] = true
			activity.LikedParticipants = append(activity.LikedParticipants, participantID)
		}
		sort.Slice(activity.LikedParticipants, func(i, j int) bool {
			return activity.LikedParticipants[i] < activity.LikedParticipants[j]
		})
	}

	return activity, nil
}

// ExportParticipantVoters выгружает сводку голосующих по участнице в XLSX
func (s *ActivityService) ExportParticipantVoters(participantID uint) ([]byte, error) {
	histories, err := s.ParticipantVoters(participantID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Voters"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Voter ID", "Voter", "Current Rating", "Changes", "Last Change"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, h := range histories {
		lastChange := ""
		if len(h.Changes) > 0 {
			lastChange = h.Changes[len(h.Changes)-1].CreatedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{h.VoterID, h.VoterName, h.LatestValue, len(h.Changes), lastChange}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to build export: %w", err)
	}
	return buf.Bytes(), nil
}
