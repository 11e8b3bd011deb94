package spin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/features/chats"
	"serotonyl.ru/spin-bot/internal/features/chats/chatstest"
)

var msk = time.FixedZone("MSK", 3*60*60)

// seqRand отдаёт заранее заданные значения по кругу (по модулю n).
type seqRand struct {
	vals  []int
	calls int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.calls%len(r.vals)]
	r.calls++
	return v % n
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestEngine(t *testing.T, rnd Rand, users ...chats.UserRecord) (*Engine, *chatstest.MemStore, *clock) {
	t.Helper()
	store := chatstest.NewMemStore()
	st := chats.NewChatState(-100)
	for _, u := range users {
		st.AddUser(u)
	}
	store.Seed(st)

	cache := chats.NewCache(store)
	_, err := cache.Hydrate(context.Background())
	require.NoError(t, err)

	clk := &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, msk)}
	e := NewEngine(cache, "spin_bot", msk, WithRand(rnd), WithClock(clk.Now))
	return e, store, clk
}

func winCounts(t *testing.T, e *Engine) map[int64]int {
	t.Helper()
	snap, ok := e.cache.Snapshot(-100)
	require.True(t, ok)
	out := make(map[int64]int)
	for id, u := range snap.Users {
		out[id] = u.WinCount
	}
	return out
}

func TestEngine_SingleUserAlwaysWins(t *testing.T) {
	e, store, _ := newTestEngine(t, &seqRand{vals: []int{7, 3}},
		chats.UserRecord{UserID: 42, DisplayName: "@alice"},
	)

	res, err := e.Spin(context.Background(), -100)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Winner.UserID)
	assert.False(t, res.Repeat)
	assert.Equal(t, map[int64]int{42: 1}, winCounts(t, e))

	saved, _ := store.Chat(-100)
	require.NotNil(t, saved.LastWinnerID)
	require.NotNil(t, saved.LastSpinAt)
	assert.Equal(t, int64(42), *saved.LastWinnerID)
	assert.Equal(t, 1, saved.Users[42].WinCount)
}

func TestEngine_OnlyWinnerCountChanges(t *testing.T) {
	e, _, _ := newTestEngine(t, &seqRand{vals: []int{1, 0}},
		chats.UserRecord{UserID: 1, DisplayName: "a", WinCount: 2},
		chats.UserRecord{UserID: 2, DisplayName: "b", WinCount: 5},
		chats.UserRecord{UserID: 3, DisplayName: "c"},
	)

	res, err := e.Spin(context.Background(), -100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Winner.UserID)
	assert.Equal(t, map[int64]int{1: 2, 2: 6, 3: 0}, winCounts(t, e))
}

func TestEngine_SpinDailyIsIdempotent(t *testing.T) {
	rnd := &seqRand{vals: []int{0, 1, 1}}
	e, _, clk := newTestEngine(t, rnd,
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
		chats.UserRecord{UserID: 2, DisplayName: "@bob"},
	)
	ctx := context.Background()

	first, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.False(t, first.Repeat)

	clk.t = clk.t.Add(10 * time.Hour)
	second, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.True(t, second.Repeat)
	assert.Equal(t, first.Winner.UserID, second.Winner.UserID)
	require.Len(t, second.Lines, 1)
	assert.Contains(t, second.Lines[0], "Согласно сегодняшнему розыгрышу")
	assert.Equal(t, 2, rnd.calls, "повторный вызов не тратит случайность")

	total := 0
	for _, n := range winCounts(t, e) {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestEngine_SpinDailyNextDaySpinsAgain(t *testing.T) {
	e, _, clk := newTestEngine(t, &seqRand{vals: []int{0}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
	)
	ctx := context.Background()

	_, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)

	// 23:59 того же дня по Москве, затем 00:01 следующего
	clk.t = time.Date(2026, 10, 14, 23, 59, 0, 0, msk)
	res, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.True(t, res.Repeat)

	clk.t = time.Date(2026, 10, 15, 0, 1, 0, 0, msk)
	res, err = e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.False(t, res.Repeat)
	assert.Equal(t, map[int64]int{1: 2}, winCounts(t, e))
}

func TestEngine_ForceSpinRedraws(t *testing.T) {
	e, _, clk := newTestEngine(t, &seqRand{vals: []int{0, 0, 1, 0}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
		chats.UserRecord{UserID: 2, DisplayName: "@bob"},
	)
	ctx := context.Background()

	first, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Winner.UserID)

	require.NoError(t, e.SetWheel(ctx, -100, "кабачок"))
	clk.t = clk.t.Add(time.Hour)

	forced, err := e.Spin(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), forced.Winner.UserID)
	assert.Equal(t, "кабачок", forced.WheelLabel)

	snap, _ := e.cache.Snapshot(-100)
	assert.Equal(t, "кабачок", snap.LastWheelLabel)
	require.NotNil(t, snap.LastSpinAt)
	assert.True(t, clk.t.Equal(*snap.LastSpinAt))

	// После форса автоматический путь считает день закрытым
	again, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.True(t, again.Repeat)
	assert.Equal(t, int64(2), again.Winner.UserID)
}

func TestEngine_RepeatUsesFrozenWheel(t *testing.T) {
	e, _, _ := newTestEngine(t, &seqRand{vals: []int{0}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
	)
	ctx := context.Background()

	_, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	require.NoError(t, e.SetWheel(ctx, -100, "кабачок"))

	res, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, chats.DefaultWheelLabel, res.WheelLabel)
	assert.Contains(t, res.Lines[0], "<b>"+chats.DefaultWheelLabel+" дня</b>")
}

func TestEngine_EmptyRoster(t *testing.T) {
	e, _, _ := newTestEngine(t, &seqRand{vals: []int{0}})

	_, err := e.Spin(context.Background(), -100)
	require.ErrorIs(t, err, common.ErrEmptyRoster)

	snap, _ := e.cache.Snapshot(-100)
	assert.Nil(t, snap.LastWinnerID)
	assert.False(t, e.IsPending(snap))
}

func TestEngine_PersistFailureStillReturnsResult(t *testing.T) {
	e, store, _ := newTestEngine(t, &seqRand{vals: []int{0}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
	)
	store.SetErrUpsertUser(errors.New("db down"))

	res, err := e.Spin(context.Background(), -100)
	require.ErrorIs(t, err, common.ErrStore)
	require.NotNil(t, res)
	assert.Equal(t, int64(1), res.Winner.UserID)
}

func TestEngine_ResetDaily(t *testing.T) {
	e, store, _ := newTestEngine(t, &seqRand{vals: []int{0}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
	)
	ctx := context.Background()

	_, err := e.SpinDaily(ctx, -100)
	require.NoError(t, err)
	require.NoError(t, e.ResetDaily(ctx, -100))

	snap, _ := e.cache.Snapshot(-100)
	assert.Nil(t, snap.LastWinnerID)
	assert.Nil(t, snap.LastSpinAt)
	assert.True(t, e.IsPending(snap))

	saved, _ := store.Chat(-100)
	assert.Nil(t, saved.LastWinnerID)
	assert.Nil(t, saved.LastSpinAt)
	assert.Equal(t, 1, saved.Users[1].WinCount)
}

func TestEngine_SetLabels(t *testing.T) {
	e, store, _ := newTestEngine(t, &seqRand{vals: []int{0}})
	ctx := context.Background()

	tests := []struct {
		name    string
		set     func(ctx context.Context, chatID int64, label string) error
		label   string
		wantErr error
	}{
		{"wheel", e.SetWheel, "  тыква ", nil},
		{"wheel empty", e.SetWheel, "", common.ErrEmptyArgument},
		{"wheel blank", e.SetWheel, "   ", common.ErrEmptyArgument},
		{"action", e.SetAction, "почистить", nil},
		{"action empty", e.SetAction, "", common.ErrEmptyArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set(ctx, -100, tt.label)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	snap, _ := e.cache.Snapshot(-100)
	assert.Equal(t, "тыква", snap.WheelLabel)
	assert.Equal(t, "почистить", snap.ActionLabel)

	saved, _ := store.Chat(-100)
	assert.Equal(t, "тыква", saved.WheelLabel)
}

func TestEngine_LinesUseChatLabels(t *testing.T) {
	// Четвёртый шаблон использует все плейсхолдеры
	e, _, _ := newTestEngine(t, &seqRand{vals: []int{0, 3}},
		chats.UserRecord{UserID: 1, DisplayName: "@alice"},
	)
	ctx := context.Background()
	require.NoError(t, e.SetAction(ctx, -100, "почистить"))

	res, err := e.Spin(ctx, -100)
	require.NoError(t, err)

	joined := strings.Join(res.Lines, "\n")
	assert.Contains(t, joined, "<b>почистить</b>")
	assert.Contains(t, joined, "@spin_bot")
	assert.Contains(t, joined, "На самом деле, это @alice")
}
