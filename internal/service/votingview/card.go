// Package votingview содержит состояние карточки голосования одной участницы
// для одного зрителя. Карточка водит пользователя по пути
// unvoted -> voting -> thank_you -> settled (с повторным входом через editing)
// и держит два агрегата: отображаемый (оптимистичный) и подтвержденный.
package votingview

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/contest-api/internal/domain/entity"
	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// State — состояние карточки голосования
type State string

const (
	// StateUnvoted — активной оценки нет, показана кнопка голосования
	StateUnvoted State = "unvoted"
	// StateVoting — контрол оценки активен; достижимо только для открытой когорты
	StateVoting State = "voting"
	// StateThankYou — кратковременное подтверждение, гаснет по таймеру
	StateThankYou State = "thank_you"
	// StateSettled — оценка показана, карточка read-only
	StateSettled State = "settled"
	// StateEditing — повторный вход из settled для открытой когорты
	StateEditing State = "editing"
)

// DefaultThankYouDelay — длительность показа подтверждения по умолчанию
const DefaultThankYouDelay = 1200 * time.Millisecond

// validTransitions описывает допустимые переходы карточки.
// Возвраты voting->unvoted и editing->settled — откаты при ошибке записи.
var validTransitions = map[State]map[State]bool{
	StateUnvoted:  {StateVoting: true},
	StateVoting:   {StateThankYou: true, StateUnvoted: true},
	StateThankYou: {StateSettled: true},
	StateSettled:  {StateEditing: true},
	StateEditing:  {StateThankYou: true, StateSettled: true},
}

// IsValidTransition проверяет допустимость перехода
func IsValidTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// RateFunc выполняет подтвержденную запись оценки через движок оценок и
// возвращает подтвержденный сервером агрегат. Запись идемпотентна по паре
// (voter, participant), поэтому повтор после ошибки безопасен.
type RateFunc func(ctx context.Context, value int) (entity.Aggregate, error)

// Config описывает карточку при создании
type Config struct {
	// Authenticated — известен ли голосующий. Без аутентификации попытка
	// голосовать дает сигнал "требуется вход" без смены состояния.
	Authenticated bool

	// Open — участница в открытой для голосования когорте ("this week")
	Open bool

	// Sample — демонстрационная карточка, всегда read-only
	Sample bool

	// CurrentRating — активная оценка зрителя, 0 если ее нет
	CurrentRating int

	// Aggregate — последний подтвержденный агрегат участницы
	Aggregate entity.Aggregate

	// ThankYouDelay — длительность показа подтверждения; 0 — значение по умолчанию
	ThankYouDelay time.Duration

	// Rate — подтверждающая запись через движок оценок
	Rate RateFunc

	// OnSettled вызывается после гашения подтверждения таймером, когда
	// карточка перешла в settled. Используется для push-уведомления зрителя.
	OnSettled func()
}

// InitialState возвращает стартовое состояние карточки: settled при наличии
// активной оценки, иначе unvoted
func InitialState(currentRating int) State {
	if currentRating > 0 {
		return StateSettled
	}
	return StateUnvoted
}

// Card — карточка голосования одного зрителя по одной участнице
type Card struct {
	mu sync.Mutex

	state     State
	displayed entity.Aggregate
	confirmed entity.Aggregate
	myRating  int

	authenticated bool
	open          bool
	sample        bool

	thankDelay time.Duration
	thankTimer *time.Timer
	closed     bool

	rate      RateFunc
	onSettled func()
}

// NewCard создает карточку. Если у зрителя уже есть активная оценка,
// карточка начинает в settled, иначе в unvoted.
func NewCard(cfg Config) *Card {
	state := InitialState(cfg.CurrentRating)
	delay := cfg.ThankYouDelay
	if delay <= 0 {
		delay = DefaultThankYouDelay
	}
	return &Card{
		state:         state,
		displayed:     cfg.Aggregate,
		confirmed:     cfg.Aggregate,
		myRating:      cfg.CurrentRating,
		authenticated: cfg.Authenticated,
		open:          cfg.Open,
		sample:        cfg.Sample,
		thankDelay:    delay,
		rate:          cfg.Rate,
		onSettled:     cfg.OnSettled,
	}
}

// State возвращает текущее состояние карточки
func (c *Card) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Displayed возвращает отображаемый (оптимистичный) агрегат
func (c *Card) Displayed() entity.Aggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// Confirmed возвращает последний подтвержденный агрегат
func (c *Card) Confirmed() entity.Aggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

// MyRating возвращает активную оценку зрителя, 0 если ее нет
func (c *Card) MyRating() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.myRating
}

// BeginVoting открывает контрол оценки.
// Для закрытой когорты и демо-карточек возвращает ErrVotingClosed: карточка
// показывает только устоявшийся агрегат. Для неаутентифицированного зрителя
// возвращает ErrUnauthenticated — сигнал показать вход, состояние не меняется.
func (c *Card) BeginVoting() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sample || !c.open {
		return apperrors.ErrVotingClosed
	}
	if !c.authenticated {
		return apperrors.ErrUnauthenticated
	}
	if !IsValidTransition(c.state, StateVoting) {
		return apperrors.ErrConflict
	}
	c.state = StateVoting
	return nil
}

// BeginEditing повторно открывает контрол для смены оценки
func (c *Card) BeginEditing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sample || !c.open {
		return apperrors.ErrVotingClosed
	}
	if !IsValidTransition(c.state, StateEditing) {
		return apperrors.ErrConflict
	}
	c.state = StateEditing
	return nil
}

// Rate выполняет голос: сначала оптимистично обновляет отображаемый агрегат,
// затем ждет подтверждения записи. При успехе подтвержденный агрегат замещает
// оптимистичный (сверка с сервером) и карточка проходит thank_you -> settled.
// При ошибке отображение и состояние откатываются к последним подтвержденным
// значениям — карточка не может остаться "проголосовавшей" без записи в базе.
func (c *Card) Rate(ctx context.Context, value int) error {
	c.mu.Lock()
	if c.state != StateVoting && c.state != StateEditing {
		c.mu.Unlock()
		return apperrors.ErrConflict
	}
	rollbackState := StateUnvoted
	if c.state == StateEditing {
		rollbackState = StateSettled
	}

	var previous *int
	if c.myRating > 0 {
		v := c.myRating
		previous = &v
	}
	c.displayed = c.confirmed.Recompute(previous, value)
	rate := c.rate
	c.mu.Unlock()

	confirmed, err := rate(ctx, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// Откат к последним подтвержденным значениям, не к нулю
		c.displayed = c.confirmed
		c.state = rollbackState
		return err
	}

	c.confirmed = confirmed
	c.displayed = confirmed
	c.myRating = value
	c.state = StateThankYou
	c.startThankYouTimerLocked()
	return nil
}

// startThankYouTimerLocked взводит таймер гашения подтверждения.
// Вызывается под мьютексом.
func (c *Card) startThankYouTimerLocked() {
	if c.thankTimer != nil {
		c.thankTimer.Stop()
	}
	c.thankTimer = time.AfterFunc(c.thankDelay, func() {
		c.mu.Lock()
		// Карточку могли закрыть до срабатывания таймера
		if c.closed || c.state != StateThankYou {
			c.mu.Unlock()
			return
		}
		c.state = StateSettled
		onSettled := c.onSettled
		c.mu.Unlock()
		if onSettled != nil {
			onSettled()
		}
	})
}

// Close останавливает таймер карточки. Обязателен при демонтаже карточки,
// иначе отложенный колбэк мутирует уже неживое состояние.
func (c *Card) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.thankTimer != nil {
		c.thankTimer.Stop()
		c.thankTimer = nil
	}
}
