// Package bot содержит главный модуль бота — запуск, приём апдейтов и маршрутизацию.
// bot.go принимает апдейты (polling или вебхук), регистрирует автора каждого
// сообщения в ростере и передаёт команду обработчику.
package bot

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/bot/middleware"
	"serotonyl.ru/spin-bot/internal/common"
	"serotonyl.ru/spin-bot/internal/config"
	"serotonyl.ru/spin-bot/internal/features/chats"
	"serotonyl.ru/spin-bot/internal/features/spin"
)

// DailyRunner — ежедневный проход розыгрыша (*jobs.DailySpinner).
type DailyRunner interface {
	Run(ctx context.Context) int
}

// AdminChecker — проверка прав на админские команды (*filters.AdminFilter).
type AdminChecker interface {
	IsAdmin(ctx context.Context, message *tgbotapi.Message) bool
}

// Deps — компоненты, которые бот получает при сборке.
type Deps struct {
	Cache     *chats.Cache
	Roster    *chats.Roster
	Engine    *spin.Engine
	Spinner   DailyRunner
	Admins    AdminChecker
	Announcer *PacedSender
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	botAPI *tgbotapi.BotAPI
	api    telegramAPI
	cfg    *config.Config

	cache     *chats.Cache
	roster    *chats.Roster
	engine    *spin.Engine
	spinner   DailyRunner
	admins    AdminChecker
	announcer *PacedSender
	members   chats.MemberSource

	rateLimiter *middleware.RateLimiter
	parser      *CommandParser
	commands    map[string]command

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	// фоновые проходы розыгрыша
	background sync.WaitGroup
}

// New создаёт бота поверх настоящего Telegram API.
func New(botAPI *tgbotapi.BotAPI, cfg *config.Config, deps Deps) *Bot {
	b := newBot(botAPI, cfg, deps)
	b.botAPI = botAPI
	return b
}

func newBot(api telegramAPI, cfg *config.Config, deps Deps) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 16
	}

	b := &Bot{
		api:         api,
		cfg:         cfg,
		cache:       deps.Cache,
		roster:      deps.Roster,
		engine:      deps.Engine,
		spinner:     deps.Spinner,
		admins:      deps.Admins,
		announcer:   deps.Announcer,
		members:     memberSource{api: api},
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(cfg.BotName),
		inflight:    make(chan struct{}, maxInFlight),
	}
	b.commands = b.commandTable()
	return b
}

// Start принимает апдейты до отмены ctx. Режим выбирается BOT_WEBHOOK_MODE.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.BotWebhookMode {
		return b.startWebhook(ctx)
	}
	return b.startPolling(ctx)
}

func (b *Bot) startPolling(ctx context.Context) error {
	// Вебхук и getUpdates взаимоисключающие; старые апдейты пропускаем
	if _, err := b.botAPI.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		log.WithError(err).Warn("Не удалось снять вебхук")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	updates := b.botAPI.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен (long polling) и ожидает сообщения...")

	b.serve(ctx, updates, b.botAPI.StopReceivingUpdates)
	return nil
}

func (b *Bot) startWebhook(ctx context.Context) error {
	wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL())
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := b.botAPI.Request(wh); err != nil {
		return err
	}

	updates := b.botAPI.ListenForWebhook(b.cfg.WebhookPath)
	srv := &http.Server{
		Addr:              b.cfg.WebAppAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP-сервер вебхука упал")
		}
	}()

	log.WithFields(log.Fields{
		"url":  b.cfg.WebhookURL(),
		"addr": srv.Addr,
	}).Info("Бот запущен (webhook) и ожидает сообщения...")

	b.serve(ctx, updates, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки HTTP-сервера")
		}
	})
	return nil
}

// serve читает апдейты и обрабатывает каждый в своей горутине.
func (b *Bot) serve(ctx context.Context, updates tgbotapi.UpdatesChannel, stop func()) {
	var handlers sync.WaitGroup
	defer func() {
		handlers.Wait()
		b.background.Wait()
		b.rateLimiter.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			stop()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				stop()
				return
			}
			handlers.Add(1)
			go func(upd tgbotapi.Update) {
				defer handlers.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic("update")

	message := update.Message
	if message == nil || message.Chat == nil || message.From == nil {
		return
	}

	middleware.LogMessage(message)

	// Любая активность пополняет ростер
	b.observe(ctx, message.Chat.ID, message.From)
	for i := range message.NewChatMembers {
		if !message.NewChatMembers[i].IsBot {
			b.observe(ctx, message.Chat.ID, &message.NewChatMembers[i])
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		b.runDailyPass(ctx)
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	if !b.rateLimiter.Allow(message.Chat.ID, message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	b.routeCommand(ctx, message, cmd, args)
}

func (b *Bot) observe(ctx context.Context, chatID int64, user *tgbotapi.User) {
	name := common.DisplayName(user.UserName, user.FirstName, user.LastName)
	if _, err := b.roster.Observe(ctx, chatID, user.ID, name); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": user.ID,
		}).Warn("Не удалось сохранить участника")
	}
}

// runDailyPass запускает ежедневный проход в фоне, не занимая слот обработчика.
func (b *Bot) runDailyPass(ctx context.Context) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		defer middleware.RecoverFromPanic("daily pass")
		b.spinner.Run(ctx)
	}()
}

// CommandParser разбирает команды Telegram вида /cmd@bot аргументы.
type CommandParser struct {
	prefix  string
	botName string
}

// NewCommandParser создаёт парсер команд. botName — username бота без @.
func NewCommandParser(botName string) *CommandParser {
	return &CommandParser{
		prefix:  "/",
		botName: strings.TrimPrefix(botName, "@"),
	}
}

// ParseCommand разбирает текст на команду и строку аргументов.
// Команда, адресованная другому боту (/spin@other_bot), командой не считается.
func (p *CommandParser) ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, p.prefix) {
		return "", "", false
	}
	text = strings.TrimPrefix(text, p.prefix)

	head, args, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		args = head[i:] + " " + args
		head = head[:i]
	}

	command, mention, hasMention := strings.Cut(head, "@")
	if hasMention && !strings.EqualFold(mention, p.botName) {
		return "", "", false
	}
	if command == "" {
		return "", "", false
	}

	return strings.ToLower(command), strings.TrimSpace(args), true
}
