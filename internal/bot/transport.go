// Package bot — transport.go содержит всё общение с Telegram API:
// отправку объявлений с паузами, получение участников и проверку чатов.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/features/chats"
)

// telegramAPI — методы *tgbotapi.BotAPI, которыми пользуется бот.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// PacedSender отправляет объявление построчно: "печатает", пауза, строка, пауза.
// Нулевые задержки отключают паузы и индикатор.
type PacedSender struct {
	api         telegramAPI
	typingDelay time.Duration
	lineDelay   time.Duration

	mu       sync.Mutex
	inFlight map[int64]int
}

func NewPacedSender(api telegramAPI, typingDelay, lineDelay time.Duration) *PacedSender {
	return &PacedSender{
		api:         api,
		typingDelay: typingDelay,
		lineDelay:   lineDelay,
		inFlight:    make(map[int64]int),
	}
}

// Announcing сообщает, идёт ли сейчас объявление в чате.
func (s *PacedSender) Announcing(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[chatID] > 0
}

func (s *PacedSender) track(chatID int64, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[chatID] += delta
	if s.inFlight[chatID] <= 0 {
		delete(s.inFlight, chatID)
	}
}

// Announce отправляет строки по одной. Первая ошибка отправки прерывает объявление.
func (s *PacedSender) Announce(ctx context.Context, chatID int64, lines []string) error {
	s.track(chatID, 1)
	defer s.track(chatID, -1)

	for _, line := range lines {
		if s.typingDelay > 0 {
			if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
				log.WithError(err).WithField("chat_id", chatID).Debug("Не удалось показать набор текста")
			}
			if err := sleep(ctx, s.typingDelay); err != nil {
				return err
			}
		}

		msg := tgbotapi.NewMessage(chatID, line)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.api.Send(msg); err != nil {
			return fmt.Errorf("ошибка отправки в чат %d: %w", chatID, err)
		}

		if err := sleep(ctx, s.lineDelay); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// memberSource отдаёт участников чата для /scan.
type memberSource struct {
	api telegramAPI
}

var _ chats.MemberSource = memberSource{}

func (m memberSource) ChatAdministrators(_ context.Context, chatID int64) ([]chats.Member, error) {
	admins, err := m.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("getChatAdministrators %d: %w", chatID, err)
	}
	out := make([]chats.Member, 0, len(admins))
	for _, cm := range admins {
		out = append(out, toMember(cm))
	}
	return out, nil
}

func (m memberSource) ChatMember(_ context.Context, chatID, userID int64) (chats.Member, error) {
	cm, err := m.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return chats.Member{}, fmt.Errorf("getChatMember %d/%d: %w", chatID, userID, err)
	}
	return toMember(cm), nil
}

func toMember(cm tgbotapi.ChatMember) chats.Member {
	m := chats.Member{Status: cm.Status}
	if cm.User != nil {
		m.UserID = cm.User.ID
		m.DisplayName = common.DisplayName(cm.User.UserName, cm.User.FirstName, cm.User.LastName)
		m.IsBot = cm.User.IsBot
	}
	return m
}

// ChatProbe проверяет, что бот всё ещё видит чат и его администраторов.
type ChatProbe struct {
	api telegramAPI
}

func NewChatProbe(api telegramAPI) *ChatProbe {
	return &ChatProbe{api: api}
}

func (p *ChatProbe) Probe(_ context.Context, chatID int64) error {
	cfg := tgbotapi.ChatConfig{ChatID: chatID}
	if _, err := p.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: cfg}); err != nil {
		return fmt.Errorf("getChat %d: %w", chatID, err)
	}
	if _, err := p.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{ChatConfig: cfg}); err != nil {
		return fmt.Errorf("getChatAdministrators %d: %w", chatID, err)
	}
	return nil
}
