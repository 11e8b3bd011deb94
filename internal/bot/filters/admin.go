// Package filters — проверки доступа к командам.
// admin.go решает, может ли пользователь управлять розыгрышем в чате.
package filters

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// memberGetter — часть *tgbotapi.BotAPI, нужная фильтру.
type memberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// AdminFilter пропускает создателя и администраторов чата,
// а также операторов из ADMIN_IDS в любом чате.
type AdminFilter struct {
	api       memberGetter
	operators map[int64]struct{}
}

func NewAdminFilter(api memberGetter, operatorIDs []int64) *AdminFilter {
	ops := make(map[int64]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		ops[id] = struct{}{}
	}
	return &AdminFilter{api: api, operators: ops}
}

func (f *AdminFilter) IsAdmin(_ context.Context, message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil || message.From == nil {
		return false
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	logger := log.WithFields(log.Fields{
		"component": "AdminFilter",
		"chat_id":   chatID,
		"user_id":   userID,
	})

	// 1) Оператор бота
	if _, ok := f.operators[userID]; ok {
		logger.Debug("allow: operator")
		return true
	}

	// 2) В личке пользователь сам себе админ
	if message.Chat.IsPrivate() {
		logger.Debug("allow: private chat")
		return true
	}

	// 3) Статус в чате через Telegram API
	cm, err := f.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		logger.WithError(err).Warn("admin check failed (telegram GetChatMember)")
		return false
	}

	switch cm.Status {
	case "creator", "administrator":
		logger.WithField("tg_status", cm.Status).Debug("allow: chat admin")
		return true
	default:
		logger.WithField("tg_status", cm.Status).Debug("deny: not a chat admin")
		return false
	}
}
