package chats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

func TestChatState_AddUserKeepsOrder(t *testing.T) {
	st := NewChatState(1)

	assert.True(t, st.AddUser(UserRecord{UserID: 3, DisplayName: "c"}))
	assert.True(t, st.AddUser(UserRecord{UserID: 1, DisplayName: "a"}))
	assert.False(t, st.AddUser(UserRecord{UserID: 3, DisplayName: "other"}))

	assert.Equal(t, []int64{3, 1}, st.Order)
	assert.Equal(t, "c", st.Users[3].DisplayName)
	assert.Equal(t, 2, st.RosterSize())
}

func TestChatState_RecordWinAndReset(t *testing.T) {
	st := NewChatState(1)
	st.AddUser(UserRecord{UserID: 42, DisplayName: "@alice"})
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, msk)

	st.RecordWin(42, at)

	require.NotNil(t, st.LastWinnerID)
	require.NotNil(t, st.LastSpinAt)
	assert.Equal(t, int64(42), *st.LastWinnerID)
	assert.Equal(t, 1, st.Users[42].WinCount)
	assert.Equal(t, DefaultWheelLabel, st.LastWheelLabel)
	assert.True(t, st.IsResolved(at.Add(10*time.Hour), msk))
	assert.False(t, st.IsResolved(at.Add(24*time.Hour), msk))

	st.ResetDaily()
	assert.Nil(t, st.LastWinnerID)
	assert.Nil(t, st.LastSpinAt)
	assert.False(t, st.IsResolved(at, msk))
	assert.Equal(t, 1, st.Users[42].WinCount, "сброс не трогает счётчик побед")
}

func TestChatState_LastWheelLabelIsFrozen(t *testing.T) {
	st := NewChatState(1)
	st.AddUser(UserRecord{UserID: 42})
	st.RecordWin(42, time.Now())

	st.WheelLabel = "кабачок"
	assert.Equal(t, DefaultWheelLabel, st.LastWheelLabel)
}

func TestChatState_LeaderboardStableTies(t *testing.T) {
	st := NewChatState(1)
	st.AddUser(UserRecord{UserID: 1, DisplayName: "a", WinCount: 1})
	st.AddUser(UserRecord{UserID: 2, DisplayName: "b", WinCount: 3})
	st.AddUser(UserRecord{UserID: 3, DisplayName: "c", WinCount: 1})
	st.AddUser(UserRecord{UserID: 4, DisplayName: "d", WinCount: 0})

	board := st.Leaderboard()

	names := make([]string, 0, len(board))
	for _, u := range board {
		names = append(names, u.DisplayName)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, names)
}

func TestChatState_CloneIsDeep(t *testing.T) {
	st := NewChatState(1)
	st.AddUser(UserRecord{UserID: 42, DisplayName: "@alice"})
	st.RecordWin(42, time.Now())

	cp := st.Clone()
	cp.Users[42].WinCount = 100
	*cp.LastWinnerID = 7
	cp.Order[0] = 7

	assert.Equal(t, 1, st.Users[42].WinCount)
	assert.Equal(t, int64(42), *st.LastWinnerID)
	assert.Equal(t, []int64{42}, st.Order)
}
