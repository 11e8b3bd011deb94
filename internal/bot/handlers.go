// Package bot — handlers.go содержит обработчики команд бота.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/features/spin"
)

// Тексты ответов.
const (
	greetingText      = "You spin me right round, baby\nRight round like a record, baby\nRight round round round!"
	emptyWheelReply   = "Я программист, меня не обманешь!"
	emptyActionReply  = "Ну уж нет!"
	storeFailureReply = "⚠️ База данных недоступна, результат может не сохраниться"
	spinFailureReply  = "Сегодня колесо не крутится, попробуйте позже"
)

type command struct {
	adminOnly bool
	handle    func(ctx context.Context, message *tgbotapi.Message, args string)
}

func (b *Bot) commandTable() map[string]command {
	return map[string]command{
		"start":       {handle: b.handleStart},
		"spin":        {handle: b.handleSpin},
		"winstats":    {handle: b.handleWinStats},
		"now":         {handle: b.handleNow},
		"force_spin":  {adminOnly: true, handle: b.handleForceSpin},
		"reset_daily": {adminOnly: true, handle: b.handleResetDaily},
		"setname":     {adminOnly: true, handle: b.handleSetName},
		"setaction":   {adminOnly: true, handle: b.handleSetAction},
		"scan":        {adminOnly: true, handle: b.handleScan},
		"log_level":   {adminOnly: true, handle: b.handleLogLevel},
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
// Неизвестная команда и чужая админская ведут себя как обычное сообщение.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd, args string) {
	c, ok := b.commands[cmd]
	if !ok {
		b.runDailyPass(ctx)
		return
	}
	if c.adminOnly && !b.admins.IsAdmin(ctx, message) {
		log.WithFields(log.Fields{
			"cmd":     cmd,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Info("Админская команда от не-админа")
		b.runDailyPass(ctx)
		return
	}
	c.handle(ctx, message, args)
}

func (b *Bot) handleStart(_ context.Context, message *tgbotapi.Message, _ string) {
	b.reply(message, greetingText, false)
}

func (b *Bot) handleSpin(ctx context.Context, message *tgbotapi.Message, _ string) {
	res, err := b.engine.SpinDaily(ctx, message.Chat.ID)
	b.deliver(ctx, message, res, err)
}

func (b *Bot) handleForceSpin(ctx context.Context, message *tgbotapi.Message, _ string) {
	res, err := b.engine.Spin(ctx, message.Chat.ID)
	b.deliver(ctx, message, res, err)
	b.runDailyPass(ctx)
}

// deliver отправляет итог розыгрыша в чат.
func (b *Bot) deliver(ctx context.Context, message *tgbotapi.Message, res *spin.Result, err error) {
	chatID := message.Chat.ID
	logger := log.WithField("chat_id", chatID)

	if res == nil {
		logger.WithError(err).Warn("Розыгрыш не состоялся")
		b.reply(message, spinFailureReply, false)
		return
	}

	if res.Repeat {
		// Пока идёт объявление, напоминание раскрыло бы победителя раньше времени
		if b.announcer.Announcing(chatID) {
			logger.Debug("Объявление ещё идёт, повтор не отправляем")
		} else {
			b.send(chatID, res.Lines[0], true)
		}
	} else if aerr := b.announcer.Announce(ctx, chatID, res.Lines); aerr != nil {
		logger.WithError(aerr).Warn("Ошибка при объявлении победителя")
	}

	b.warnStore(message, err)
}

func (b *Bot) handleResetDaily(ctx context.Context, message *tgbotapi.Message, _ string) {
	err := b.engine.ResetDaily(ctx, message.Chat.ID)
	if err == nil {
		log.WithFields(log.Fields{
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Info("Сегодняшний розыгрыш сброшен")
	}
	b.warnStore(message, err)
}

func (b *Bot) handleSetName(ctx context.Context, message *tgbotapi.Message, args string) {
	err := b.engine.SetWheel(ctx, message.Chat.ID, args)
	if errors.Is(err, common.ErrEmptyArgument) {
		b.reply(message, emptyWheelReply, false)
		return
	}
	b.reply(message, fmt.Sprintf("Текст розыгрыша изменён на %s", html.EscapeString(strings.TrimSpace(args))), true)
	b.warnStore(message, err)
}

func (b *Bot) handleSetAction(ctx context.Context, message *tgbotapi.Message, args string) {
	err := b.engine.SetAction(ctx, message.Chat.ID, args)
	if errors.Is(err, common.ErrEmptyArgument) {
		b.reply(message, emptyActionReply, false)
		return
	}
	b.reply(message, fmt.Sprintf("Ты хочешь меня %s?", html.EscapeString(strings.TrimSpace(args))), true)
	b.warnStore(message, err)
}

func (b *Bot) handleScan(ctx context.Context, message *tgbotapi.Message, _ string) {
	n, err := b.roster.Backfill(ctx, message.Chat.ID, b.members)
	if err != nil {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Warn("Сканирование прервано")
	}
	b.reply(message, fmt.Sprintf("Нашёл %d %s", n, common.PluralizeUsers(n)), false)
	b.warnStore(message, err)
}

func (b *Bot) handleWinStats(_ context.Context, message *tgbotapi.Message, _ string) {
	st, ok := b.cache.Snapshot(message.Chat.ID)
	if !ok {
		return
	}
	board := st.Leaderboard()
	if len(board) == 0 {
		return
	}

	lines := make([]string, 0, len(board))
	for _, u := range board {
		lines = append(lines, fmt.Sprintf("<code>%s</code>:  %d", html.EscapeString(u.DisplayName), u.WinCount))
	}
	b.reply(message, strings.Join(lines, "\n"), true)
}

func (b *Bot) handleNow(_ context.Context, message *tgbotapi.Message, _ string) {
	b.reply(message, "Сейчас "+common.FormatLocalTime(b.engine.Now(), b.engine.Location()), false)
}

func (b *Bot) handleLogLevel(_ context.Context, message *tgbotapi.Message, args string) {
	level, err := log.ParseLevel(strings.ToLower(args))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.WithField("level", level.String()).Warn("Уровень логирования изменён")
	b.reply(message, "Уровень логов: "+level.String(), false)
}

// warnStore сообщает в чат, что изменение не дошло до БД.
func (b *Bot) warnStore(message *tgbotapi.Message, err error) {
	if err == nil {
		return
	}
	log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Ошибка записи в БД")
	if errors.Is(err, common.ErrStore) {
		b.reply(message, storeFailureReply, false)
	}
}

// reply отвечает на сообщение.
func (b *Bot) reply(message *tgbotapi.Message, text string, asHTML bool) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if asHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Ошибка отправки сообщения")
	}
}

// send отправляет сообщение в чат без ответа.
func (b *Bot) send(chatID int64, text string, asHTML bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if asHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
