// Package chatstest — хранилище чатов в памяти для тестов.
package chatstest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/features/chats"
)

var _ chats.Store = (*MemStore)(nil)

// MemStore реализует chats.Store на картах. Ошибки можно подставить через
// поля Err*: пока поле не nil, соответствующий метод возвращает его.
type MemStore struct {
	mu    sync.Mutex
	chats map[int64]*chats.ChatState
	users map[int64][]chats.UserRecord

	ErrLoad       error
	ErrUpsertChat error
	ErrUpsertUser error
	ErrListUsers  error

	UpsertChatCalls int
	UpsertUserCalls int
}

func NewMemStore() *MemStore {
	return &MemStore{
		chats: make(map[int64]*chats.ChatState),
		users: make(map[int64][]chats.UserRecord),
	}
}

// SetErrUpsertChat подменяет ошибку записи чата под мьютексом.
func (m *MemStore) SetErrUpsertChat(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrUpsertChat = err
}

// SetErrUpsertUser подменяет ошибку записи участника под мьютексом.
func (m *MemStore) SetErrUpsertUser(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrUpsertUser = err
}

// Seed кладёт чат с ростером напрямую, минуя счётчики вызовов.
func (m *MemStore) Seed(st *chats.ChatState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := st.Clone()
	m.chats[st.ChatID] = cp
	users := make([]chats.UserRecord, 0, len(cp.Order))
	for _, id := range cp.Order {
		users = append(users, *cp.Users[id])
	}
	m.users[st.ChatID] = users
}

// Chat возвращает сохранённый чат вместе с ростером.
func (m *MemStore) Chat(chatID int64) (*chats.ChatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.chats[chatID]
	if !ok {
		return nil, false
	}
	st := row.Clone()
	st.Order = nil
	st.Users = make(map[int64]*chats.UserRecord)
	for _, u := range m.users[chatID] {
		st.AddUser(u)
	}
	return st, true
}

func (m *MemStore) LoadAllChatIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrLoad != nil {
		return nil, m.ErrLoad
	}
	ids := make([]int64, 0, len(m.chats))
	for id := range m.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) LoadChat(_ context.Context, chatID int64) (*chats.ChatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrLoad != nil {
		return nil, m.ErrLoad
	}
	row, ok := m.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("чат %d: %w", chatID, common.ErrChatNotFound)
	}
	st := row.Clone()
	st.Order = nil
	st.Users = make(map[int64]*chats.UserRecord)
	return st, nil
}

func (m *MemStore) LoadRoster(_ context.Context, chatID int64) ([]chats.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrLoad != nil {
		return nil, m.ErrLoad
	}
	return append([]chats.UserRecord(nil), m.users[chatID]...), nil
}

func (m *MemStore) UpsertChat(_ context.Context, st *chats.ChatState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertChatCalls++
	if m.ErrUpsertChat != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, m.ErrUpsertChat)
	}
	cp := st.Clone()
	cp.Order = nil
	cp.Users = nil
	m.chats[st.ChatID] = cp
	return nil
}

func (m *MemStore) UpsertUser(_ context.Context, chatID int64, u chats.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertUserCalls++
	if m.ErrUpsertUser != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, m.ErrUpsertUser)
	}
	users := m.users[chatID]
	for i := range users {
		if users[i].UserID == u.UserID {
			users[i] = u
			return nil
		}
	}
	m.users[chatID] = append(users, u)
	return nil
}

func (m *MemStore) ListUsersNotInChat(_ context.Context, chatID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrListUsers != nil {
		return nil, m.ErrListUsers
	}
	inChat := make(map[int64]bool)
	for _, u := range m.users[chatID] {
		inChat[u.UserID] = true
	}
	seen := make(map[int64]bool)
	var ids []int64
	for id, users := range m.users {
		if id == chatID {
			continue
		}
		for _, u := range users {
			if inChat[u.UserID] || seen[u.UserID] {
				continue
			}
			seen[u.UserID] = true
			ids = append(ids, u.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
