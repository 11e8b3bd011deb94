// Package jobs — daily.go проводит ежедневный розыгрыш во всех чатах.
// Проход запускается от любой активности в любом чате и от cron-пульса,
// поэтому глобальный троттлинг ограничивает работу на окно времени.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/spin-bot/internal/features/chats"
	"serotonyl.ru/spin-bot/internal/features/spin"
)

// ChatProbe проверяет, что чат доступен боту.
type ChatProbe interface {
	Probe(ctx context.Context, chatID int64) error
}

// DailySpinner — планировщик ежедневного розыгрыша.
type DailySpinner struct {
	cache     *chats.Cache
	engine    *spin.Engine
	announcer spin.Announcer
	probe     ChatProbe

	throttle time.Duration
	gateHour int

	mu        sync.Mutex
	lastRunAt time.Time
}

func NewDailySpinner(
	cache *chats.Cache,
	engine *spin.Engine,
	announcer spin.Announcer,
	probe ChatProbe,
	throttle time.Duration,
	gateHour int,
) *DailySpinner {
	return &DailySpinner{
		cache:     cache,
		engine:    engine,
		announcer: announcer,
		probe:     probe,
		throttle:  throttle,
		gateHour:  gateHour,
	}
}

// LastRunAt возвращает время последнего прохода (нулевое, если проходов не было).
func (d *DailySpinner) LastRunAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRunAt
}

// begin решает, запускать ли проход, и сразу фиксирует lastRunAt.
func (d *DailySpinner) begin(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastRunAt.IsZero() && now.Sub(d.lastRunAt) < d.throttle {
		return false
	}
	if now.Hour() < d.gateHour {
		return false
	}
	d.lastRunAt = now
	return true
}

// Run проводит розыгрыш во всех чатах, где сегодня его ещё не было.
// Ошибки по отдельному чату логируются и чат пропускается.
// Возвращает число чатов, где был выбран победитель.
func (d *DailySpinner) Run(ctx context.Context) int {
	now := d.engine.Now()
	if !d.begin(now) {
		return 0
	}

	logger := log.WithField("component", "scheduler")
	spun := 0
	for _, chatID := range d.cache.ChatIDs() {
		if ctx.Err() != nil {
			logger.Warn("Проход прерван: контекст отменён")
			break
		}
		snap, ok := d.cache.Snapshot(chatID)
		if !ok || !d.engine.IsPending(snap) {
			continue
		}
		if d.spinChat(ctx, logger.WithField("chat_id", chatID), chatID) {
			spun++
		}
	}

	logger.WithFields(log.Fields{
		"spun": spun,
		"at":   now.Format(time.RFC3339),
	}).Info("Ежедневный проход завершён")
	return spun
}

func (d *DailySpinner) spinChat(ctx context.Context, logger *log.Entry, chatID int64) bool {
	if err := d.probe.Probe(ctx, chatID); err != nil {
		logger.WithError(err).Warn("Чат недоступен, пропускаем")
		return false
	}

	res, err := d.engine.SpinDaily(ctx, chatID)
	if res == nil {
		if err != nil {
			logger.WithError(err).Warn("Не удалось провести розыгрыш")
		}
		return false
	}
	if err != nil {
		logger.WithError(err).Warn("Розыгрыш проведён, но не сохранён в БД")
	}
	// Пока шёл проход, в чате успели прокрутить вручную
	if res.Repeat {
		return false
	}

	if err := d.announcer.Announce(ctx, chatID, res.Lines); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("Объявление прервано")
		} else {
			logger.WithError(err).Warn("Ошибка при объявлении победителя")
		}
	}
	return true
}
