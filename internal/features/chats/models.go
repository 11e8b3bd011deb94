// Package chats хранит состояние чатов: настройки колеса, ростер участников
// и итог последнего розыгрыша.
// models.go описывает структуры данных таблиц chat_contexts и chat_users.
package chats

import (
	"sort"
	"time"

	"serotonyl.ru/spin-bot/internal/common"
)

// Значения по умолчанию для нового чата.
const (
	DefaultWheelLabel  = "пижма"
	DefaultActionLabel = "запутать"
)

// UserRecord — участник одного чата (строка chat_users).
type UserRecord struct {
	UserID      int64  `db:"user_id"`   // Telegram user ID, уникален в пределах чата
	DisplayName string `db:"username"`  // @username или имя, обновляется при каждой активности
	WinCount    int    `db:"won_times"` // Сколько раз становился победителем
}

// ChatState — настройки и состояние розыгрыша одного чата (строка chat_contexts + ростер).
//
// LastWinnerID и LastSpinAt выставляются и сбрасываются только вместе.
type ChatState struct {
	ChatID         int64      `db:"chat_id"`
	WheelLabel     string     `db:"wheel"`          // Существительное для шаблонов ("пижма")
	ActionLabel    string     `db:"action"`         // Глагол для шаблонов ("запутать")
	LastWinnerID   *int64     `db:"last_winner_id"` // Последний победитель (nil — розыгрыша не было)
	LastSpinAt     *time.Time `db:"last_spin"`      // Когда был последний розыгрыш
	LastWheelLabel string     `db:"last_wheel"`     // WheelLabel на момент последнего розыгрыша

	// Порядок появления участников в чате
	Order []int64
	Users map[int64]*UserRecord
}

// NewChatState создаёт состояние нового чата со значениями по умолчанию.
func NewChatState(chatID int64) *ChatState {
	return &ChatState{
		ChatID:      chatID,
		WheelLabel:  DefaultWheelLabel,
		ActionLabel: DefaultActionLabel,
		Users:       make(map[int64]*UserRecord),
	}
}

// RosterSize возвращает число участников чата.
func (c *ChatState) RosterSize() int {
	return len(c.Order)
}

// User возвращает участника по ID.
func (c *ChatState) User(userID int64) (*UserRecord, bool) {
	u, ok := c.Users[userID]
	return u, ok
}

// AddUser добавляет участника в конец ростера. Повторный ID игнорируется.
// Возвращает true, если участник новый.
func (c *ChatState) AddUser(u UserRecord) bool {
	if _, ok := c.Users[u.UserID]; ok {
		return false
	}
	if c.Users == nil {
		c.Users = make(map[int64]*UserRecord)
	}
	c.Users[u.UserID] = &u
	c.Order = append(c.Order, u.UserID)
	return true
}

// LastWinner возвращает последнего победителя, если он есть в ростере.
func (c *ChatState) LastWinner() (*UserRecord, bool) {
	if c.LastWinnerID == nil {
		return nil, false
	}
	return c.User(*c.LastWinnerID)
}

// IsResolved проверяет, был ли розыгрыш в тот же календарный день, что и now
// (день считается в поясе loc).
func (c *ChatState) IsResolved(now time.Time, loc *time.Location) bool {
	if c.LastWinnerID == nil || c.LastSpinAt == nil {
		return false
	}
	return common.SameLocalDate(*c.LastSpinAt, now, loc)
}

// RecordWin фиксирует победу: увеличивает счётчик и запоминает итог розыгрыша.
func (c *ChatState) RecordWin(userID int64, at time.Time) {
	u := c.Users[userID]
	u.WinCount++

	id := userID
	c.LastWinnerID = &id
	c.LastSpinAt = &at
	c.LastWheelLabel = c.WheelLabel
}

// ResetDaily сбрасывает итог сегодняшнего розыгрыша, не выбирая победителя.
func (c *ChatState) ResetDaily() {
	c.LastWinnerID = nil
	c.LastSpinAt = nil
}

// Leaderboard возвращает участников по убыванию побед.
// При равенстве сохраняется порядок появления в чате.
func (c *ChatState) Leaderboard() []UserRecord {
	out := make([]UserRecord, 0, len(c.Order))
	for _, id := range c.Order {
		out = append(out, *c.Users[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WinCount > out[j].WinCount
	})
	return out
}

// Clone возвращает глубокую копию состояния.
// Копии отдаются наружу, чтобы кэш оставался единственным владельцем оригинала.
func (c *ChatState) Clone() *ChatState {
	cp := *c
	if c.LastWinnerID != nil {
		id := *c.LastWinnerID
		cp.LastWinnerID = &id
	}
	if c.LastSpinAt != nil {
		at := *c.LastSpinAt
		cp.LastSpinAt = &at
	}
	cp.Order = append([]int64(nil), c.Order...)
	cp.Users = make(map[int64]*UserRecord, len(c.Users))
	for id, u := range c.Users {
		uc := *u
		cp.Users[id] = &uc
	}
	return &cp
}
