// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, хранилище чатов, кэш, движок розыгрыша,
// планировщик и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/bot"
	"serotonyl.ru/spin-bot/internal/bot/filters"
	"serotonyl.ru/spin-bot/internal/config"
	"serotonyl.ru/spin-bot/internal/db/postgres"
	"serotonyl.ru/spin-bot/internal/features/chats"
	"serotonyl.ru/spin-bot/internal/features/spin"
	"serotonyl.ru/spin-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Схема создаётся один раз при старте, повторный запуск безопасен
	if err := postgres.RunMigrations(ctx, pool, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development" && log.IsLevelEnabled(log.TraceLevel)
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Хранилище и кэш чатов ===
	cache := chats.NewCache(chats.NewRepository(pool))
	if _, err := cache.Hydrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка загрузки чатов: %w", err)
	}
	roster := chats.NewRoster(cache)

	// === 4. Розыгрыш ===
	loc := cfg.Location()
	engine := spin.NewEngine(cache, cfg.BotName, loc)
	announcer := bot.NewPacedSender(botAPI, cfg.SpinTypingDelay, cfg.SpinLineDelay)

	// === 5. Планировщик ===
	spinner := jobs.NewDailySpinner(cache, engine, announcer, bot.NewChatProbe(botAPI), cfg.SpinThrottle, cfg.SpinGateHour)
	scheduler := jobs.NewScheduler(spinner, loc, cfg.JobsHeartbeatSpec)

	// === 6. Собираем бота ===
	b := bot.New(botAPI, cfg, bot.Deps{
		Cache:     cache,
		Roster:    roster,
		Engine:    engine,
		Spinner:   spinner,
		Admins:    filters.NewAdminFilter(botAPI, cfg.AdminIDs),
		Announcer: announcer,
	})

	log.WithFields(log.Fields{
		"timezone":  loc.String(),
		"gate_hour": cfg.SpinGateHour,
		"throttle":  cfg.SpinThrottle.String(),
		"webhook":   cfg.BotWebhookMode,
	}).Info("Приложение собрано")

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}
