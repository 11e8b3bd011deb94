// Package spin — engine.go выбирает победителя дня.
// Вся работа с состоянием чата идёт под мьютексом кэша: проверка
// "сегодня уже крутили?" и сам розыгрыш не разделяются другими обработчиками.
package spin

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/features/chats"
)

// Rand — источник случайных индексов. *rand.Rand из math/rand/v2 подходит.
type Rand interface {
	IntN(n int) int
}

// Announcer доставляет строки объявления в чат.
type Announcer interface {
	Announce(ctx context.Context, chatID int64, lines []string) error
}

// Result — итог /spin или автоматического розыгрыша.
type Result struct {
	ChatID     int64
	Winner     chats.UserRecord
	WheelLabel string
	Lines      []string
	// Repeat — победитель уже был выбран сегодня, Lines содержит одну строку-напоминание
	Repeat bool
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Engine — движок розыгрыша.
type Engine struct {
	cache   *chats.Cache
	botName string
	loc     *time.Location
	rnd     Rand
	now     func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithRand подменяет источник случайности.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cache *chats.Cache, botName string, loc *time.Location, opts ...Option) *Engine {
	e := &Engine{
		cache:   cache,
		botName: botName,
		loc:     loc,
		rnd:     globalRand{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now возвращает текущее время в поясе чатов.
func (e *Engine) Now() time.Time {
	return e.now().In(e.loc)
}

// Location возвращает пояс, в котором считаются дни.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Spin всегда проводит новый розыгрыш (/force_spin).
// Если запись в БД не удалась, результат всё равно возвращается вместе с ошибкой:
// победитель уже выбран в памяти.
func (e *Engine) Spin(ctx context.Context, chatID int64) (*Result, error) {
	var res *Result
	err := e.cache.WithChat(ctx, chatID, func(st *chats.ChatState) error {
		var err error
		res, err = e.spin(ctx, st)
		return err
	})
	return res, err
}

// SpinDaily проводит розыгрыш, только если сегодня его ещё не было.
// Иначе возвращает сегодняшнего победителя с Repeat = true.
func (e *Engine) SpinDaily(ctx context.Context, chatID int64) (*Result, error) {
	var res *Result
	err := e.cache.WithChat(ctx, chatID, func(st *chats.ChatState) error {
		if st.IsResolved(e.Now(), e.loc) {
			if winner, ok := st.LastWinner(); ok {
				res = &Result{
					ChatID:     chatID,
					Winner:     *winner,
					WheelLabel: st.LastWheelLabel,
					Lines:      []string{RepeatLine(st.LastWheelLabel, winner.DisplayName)},
					Repeat:     true,
				}
				return nil
			}
			// Победителя нет в ростере: разыгрываем заново
			log.WithFields(log.Fields{
				"chat_id":   chatID,
				"winner_id": *st.LastWinnerID,
			}).Warn("Сегодняшний победитель не найден в ростере")
		}
		var err error
		res, err = e.spin(ctx, st)
		return err
	})
	return res, err
}

// IsPending проверяет, нужен ли чату розыгрыш сегодня.
// Чат без участников не ждёт розыгрыша.
func (e *Engine) IsPending(st *chats.ChatState) bool {
	return st.RosterSize() > 0 && !st.IsResolved(e.Now(), e.loc)
}

// spin вызывается под мьютексом кэша.
func (e *Engine) spin(ctx context.Context, st *chats.ChatState) (*Result, error) {
	n := st.RosterSize()
	if n == 0 {
		return nil, common.ErrEmptyRoster
	}

	winnerID := st.Order[e.rnd.IntN(n)]
	// Постгрес хранит микросекунды
	now := e.Now().Truncate(time.Microsecond)
	st.RecordWin(winnerID, now)
	winner := *st.Users[winnerID]

	tmpl := Templates[e.rnd.IntN(len(Templates))]
	res := &Result{
		ChatID:     st.ChatID,
		Winner:     winner,
		WheelLabel: st.LastWheelLabel,
		Lines: tmpl.Render(Values{
			User:   winner.DisplayName,
			Bot:    e.botName,
			Action: st.ActionLabel,
			Wheel:  st.WheelLabel,
		}),
	}

	log.WithFields(log.Fields{
		"chat_id":   st.ChatID,
		"winner_id": winnerID,
		"winner":    winner.DisplayName,
		"wheel":     st.WheelLabel,
		"roster":    n,
	}).Info("Победитель выбран")

	if err := e.cache.Persist(ctx, st, winnerID); err != nil {
		return res, err
	}
	return res, nil
}

// ResetDaily сбрасывает сегодняшний розыгрыш без выбора победителя.
func (e *Engine) ResetDaily(ctx context.Context, chatID int64) error {
	return e.cache.WithChat(ctx, chatID, func(st *chats.ChatState) error {
		st.ResetDaily()
		return e.cache.Persist(ctx, st)
	})
}

// SetWheel меняет существительное розыгрыша. Пустой текст не принимается.
func (e *Engine) SetWheel(ctx context.Context, chatID int64, label string) error {
	return e.setLabel(ctx, chatID, label, func(st *chats.ChatState, v string) { st.WheelLabel = v })
}

// SetAction меняет глагол розыгрыша. Пустой текст не принимается.
func (e *Engine) SetAction(ctx context.Context, chatID int64, label string) error {
	return e.setLabel(ctx, chatID, label, func(st *chats.ChatState, v string) { st.ActionLabel = v })
}

func (e *Engine) setLabel(ctx context.Context, chatID int64, label string, set func(*chats.ChatState, string)) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return common.ErrEmptyArgument
	}
	return e.cache.WithChat(ctx, chatID, func(st *chats.ChatState) error {
		set(st, label)
		return e.cache.Persist(ctx, st)
	})
}
