// Package chats — roster.go наполняет ростер чата: каждая активность в чате
// добавляет или обновляет автора, /scan добирает тех, кто молчит.
package chats

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Статусы участника чата в Telegram.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// Member — участник чата, как его видит транспорт.
type Member struct {
	UserID      int64
	DisplayName string
	Status      string
	IsBot       bool
}

// InChat — участник сейчас состоит в чате.
func (m Member) InChat() bool {
	switch m.Status {
	case StatusCreator, StatusAdministrator, StatusMember, StatusRestricted:
		return true
	default:
		return false
	}
}

// MemberSource — откуда берутся участники для /scan.
type MemberSource interface {
	ChatAdministrators(ctx context.Context, chatID int64) ([]Member, error)
	ChatMember(ctx context.Context, chatID, userID int64) (Member, error)
}

// Roster — менеджер ростеров поверх кэша.
type Roster struct {
	cache *Cache
}

func NewRoster(cache *Cache) *Roster {
	return &Roster{cache: cache}
}

// Observe регистрирует активность пользователя в чате.
// Новый пользователь дописывается в конец ростера, у известного обновляется имя.
// Возвращает true, если пользователь новый.
//
// При ошибке записи состояние в памяти уже изменено, ошибка возвращается вызывающему.
func (r *Roster) Observe(ctx context.Context, chatID, userID int64, displayName string) (bool, error) {
	var added bool
	err := r.cache.WithChat(ctx, chatID, func(st *ChatState) error {
		if u, ok := st.User(userID); ok {
			u.DisplayName = displayName
		} else {
			added = st.AddUser(UserRecord{UserID: userID, DisplayName: displayName})
		}
		return r.cache.store.UpsertUser(ctx, chatID, *st.Users[userID])
	})
	if err != nil {
		return added, err
	}

	if added {
		log.WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": userID,
			"name":    displayName,
		}).Info("Новый участник в ростере")
	}
	return added, nil
}

// Backfill добирает в ростер администраторов чата и пользователей, которых
// бот видел в других чатах. Ошибка по одному кандидату логируется и не
// прерывает остальных. Возвращает число новых участников.
func (r *Roster) Backfill(ctx context.Context, chatID int64, src MemberSource) (int, error) {
	logger := log.WithField("chat_id", chatID)
	added := 0

	observe := func(m Member) {
		if m.IsBot {
			return
		}
		isNew, err := r.Observe(ctx, chatID, m.UserID, m.DisplayName)
		if err != nil {
			logger.WithError(err).WithField("user_id", m.UserID).Warn("Не удалось сохранить участника")
		}
		if isNew {
			added++
		}
	}

	admins, err := src.ChatAdministrators(ctx, chatID)
	if err != nil {
		logger.WithError(err).Warn("Не удалось получить администраторов чата")
	}
	for _, m := range admins {
		observe(m)
	}

	candidates, err := r.cache.store.ListUsersNotInChat(ctx, chatID)
	if err != nil {
		return added, err
	}
	for _, userID := range candidates {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		m, err := src.ChatMember(ctx, chatID, userID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Debug("Кандидат недоступен")
			continue
		}
		if !m.InChat() {
			continue
		}
		observe(m)
	}

	logger.WithFields(log.Fields{
		"admins":     len(admins),
		"candidates": len(candidates),
		"added":      added,
	}).Info("Сканирование чата завершено")
	return added, nil
}
