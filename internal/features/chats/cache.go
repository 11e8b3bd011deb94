// Package chats — cache.go держит рабочие копии состояний чатов в памяти.
// Кэш — единственный владелец ChatState; наружу отдаются только копии.
// БД обновляется сразу после каждой мутации (write-through), без буферизации.
package chats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/common"
)

// Store — постоянное хранилище чатов. Его реализует *Repository.
type Store interface {
	LoadAllChatIDs(ctx context.Context) ([]int64, error)
	LoadChat(ctx context.Context, chatID int64) (*ChatState, error)
	LoadRoster(ctx context.Context, chatID int64) ([]UserRecord, error)
	UpsertChat(ctx context.Context, st *ChatState) error
	UpsertUser(ctx context.Context, chatID int64, u UserRecord) error
	ListUsersNotInChat(ctx context.Context, chatID int64) ([]int64, error)
}

// Cache — состояния чатов в памяти поверх Store.
//
// Все мутации идут через WithChat под одним мьютексом: чтение старого
// состояния, изменение и запись в БД не перемежаются с другими обработчиками,
// поэтому записи одного чата не переупорядочиваются.
type Cache struct {
	store Store

	mu    sync.Mutex
	chats map[int64]*ChatState
}

// NewCache создаёт пустой кэш.
func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		chats: make(map[int64]*ChatState),
	}
}

// Hydrate загружает все известные чаты при старте.
// Чат, который не удалось прочитать, пропускается: он подгрузится лениво
// при первой активности.
func (c *Cache) Hydrate(ctx context.Context) (int, error) {
	ids, err := c.store.LoadAllChatIDs(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, ok := c.chats[id]; ok {
			continue
		}
		st, err := c.load(ctx, id)
		if err != nil {
			log.WithError(err).WithField("chat_id", id).Warn("Не удалось загрузить чат при старте")
			continue
		}
		c.chats[id] = st
		loaded++
	}

	log.WithFields(log.Fields{
		"total":  len(ids),
		"loaded": loaded,
	}).Info("Чаты загружены в кэш")
	return loaded, nil
}

// GetOrCreate возвращает копию состояния чата. Если чата нет в кэше —
// читает его из БД, а новый чат создаёт со значениями по умолчанию и
// сразу сохраняет.
func (c *Cache) GetOrCreate(ctx context.Context, chatID int64) (*ChatState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.getOrCreate(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// WithChat выполняет fn над рабочей копией состояния чата под мьютексом кэша.
// fn получает оригинал и обязана сохранить изменения через Persist, не выходя
// из функции. Ошибка fn возвращается как есть.
func (c *Cache) WithChat(ctx context.Context, chatID int64, fn func(st *ChatState) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.getOrCreate(ctx, chatID)
	if err != nil {
		return err
	}
	return fn(st)
}

// Persist записывает указанных участников, а затем сам чат.
// Вызывается только изнутри WithChat.
func (c *Cache) Persist(ctx context.Context, st *ChatState, userIDs ...int64) error {
	for _, id := range userIDs {
		u, ok := st.Users[id]
		if !ok {
			return fmt.Errorf("участник %d отсутствует в чате %d", id, st.ChatID)
		}
		if err := c.store.UpsertUser(ctx, st.ChatID, *u); err != nil {
			return err
		}
	}
	return c.store.UpsertChat(ctx, st)
}

// Snapshot возвращает копию состояния чата, если он уже в кэше.
// В БД не ходит.
func (c *Cache) Snapshot(chatID int64) (*ChatState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.chats[chatID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// ChatIDs возвращает ID всех чатов в кэше по возрастанию.
func (c *Cache) ChatIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int64, 0, len(c.chats))
	for id := range c.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// getOrCreate вызывается под c.mu.
func (c *Cache) getOrCreate(ctx context.Context, chatID int64) (*ChatState, error) {
	if st, ok := c.chats[chatID]; ok {
		return st, nil
	}

	st, err := c.load(ctx, chatID)
	switch {
	case err == nil:
		log.WithField("chat_id", chatID).Info("Чат загружен из БД")
	case errors.Is(err, common.ErrChatNotFound):
		st = NewChatState(chatID)
		// Чат без строки в БД в кэш не попадает: следующая активность повторит создание
		if err := c.store.UpsertChat(ctx, st); err != nil {
			return nil, err
		}
		log.WithField("chat_id", chatID).Info("Добавлен новый чат")
	default:
		return nil, err
	}

	c.chats[chatID] = st
	return st, nil
}

func (c *Cache) load(ctx context.Context, chatID int64) (*ChatState, error) {
	st, err := c.store.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	users, err := c.store.LoadRoster(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		st.AddUser(u)
	}
	return st, nil
}
