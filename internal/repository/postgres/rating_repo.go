package postgres

import (
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// Коды ошибок PostgreSQL, которые мы классифицируем отдельно
const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

// RatingRepo реализует repository.RatingRepository
type RatingRepo struct {
	db *gorm.DB
}

// NewRatingRepo создает новый репозиторий оценок
func NewRatingRepo(db *gorm.DB) *RatingRepo {
	return &RatingRepo{db: db}
}

// GetUserRating возвращает активную оценку голосующей для участницы.
// Чтение идет по стабильному ключу (voter, participant): два независимых
// компонента, читающих одну пару, видят одно и то же значение.
func (r *RatingRepo) GetUserRating(voterID, participantID uint) (*entity.Rating, error) {
	var rating entity.Rating
	err := r.db.Where("voter_id = ? AND participant_id = ?", voterID, participantID).
		First(&rating).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &rating, nil
}

// GetByParticipant возвращает все активные оценки участницы
func (r *RatingRepo) GetByParticipant(participantID uint) ([]entity.Rating, error) {
	var ratings []entity.Rating
	err := r.db.Where("participant_id = ?", participantID).
		Order("updated_at DESC").
		Find(&ratings).Error
	return ratings, err
}

// ApplyVote выполняет подтвержденную запись оценки одной транзакцией:
//  1. читает прежнюю оценку пары (voter, participant);
//  2. делает upsert по уникальному индексу пары — повторный голос обновляет строку,
//     а не создает дубликат;
//  3. добавляет append-only запись в rating_history;
//  4. авторитетно пересчитывает average_rating/total_votes участницы в SQL.
//
// Гонка двух первых голосов одной пары разрешается самим индексом: обе записи
// сходятся в одну строку, побеждает последняя по времени.
func (r *RatingRepo) ApplyVote(voterID, participantID uint, value int, ownerUserID uint) (*repository.VoteResult, error) {
	result := &repository.VoteResult{}

	tx := r.db.Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			log.Printf("PANIC recovered during ApplyVote transaction: %v", rec)
		}
	}()
	if tx.Error != nil {
		return nil, tx.Error
	}

	// Шаг 1: прежняя оценка (если была) — нужна для old_value в истории
	var prev entity.Rating
	err := tx.Where("voter_id = ? AND participant_id = ?", voterID, participantID).
		First(&prev).Error
	hadPrev := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, err
	}

	// Шаг 2: идемпотентный upsert по ключу (voter_id, participant_id)
	rating := &entity.Rating{
		VoterID:       voterID,
		ParticipantID: participantID,
		Value:         value,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "voter_id"}, {Name: "participant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": time.Now(),
		}),
	}).Create(rating).Error
	if err != nil {
		tx.Rollback()
		return nil, classifyPgError(err)
	}

	// Шаг 3: append-only история изменений
	action := entity.RatingActionCreate
	var oldValue *int
	if hadPrev {
		action = entity.RatingActionUpdate
		v := prev.Value
		oldValue = &v
	}
	entry := &entity.RatingHistory{
		VoterID:       voterID,
		ParticipantID: participantID,
		OwnerUserID:   ownerUserID,
		OldValue:      oldValue,
		NewValue:      value,
		Action:        action,
	}
	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Шаг 4: авторитетный пересчет агрегата по всем активным оценкам.
	// Клиентский оптимистичный расчет — только подсказка для отображения,
	// системой записи остается этот пересчет.
	var agg struct {
		Avg float64
		Cnt int64
	}
	if err := tx.Table("ratings").
		Select("COALESCE(AVG(value), 0) AS avg, COUNT(*) AS cnt").
		Where("participant_id = ?", participantID).
		Scan(&agg).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&entity.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"average_rating": agg.Avg,
			"total_votes":    agg.Cnt,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	result.Rating = rating
	result.Created = !hadPrev
	result.OldValue = oldValue
	result.AverageRating = agg.Avg
	result.TotalVotes = int(agg.Cnt)
	return result, nil
}

// classifyPgError переводит ошибки ограничений PostgreSQL в ошибки приложения
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			// check (value >= 1 AND value <= 10) — значение вне диапазона
			return apperrors.ErrInvalidRating
		case pgUniqueViolation:
			// Конфликт, не разрешенный upsert-ом, считается состоянием гонки
			return apperrors.ErrConflict
		}
	}
	return err
}
