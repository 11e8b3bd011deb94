// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает пульс: раз в JOBS_HEARTBEAT_SPEC запускается
// тот же проход, что и от активности в чатах, чтобы тихие чаты тоже получили розыгрыш.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	spinner *DailySpinner
	spec    string
}

// NewScheduler создаёт планировщик в поясе чатов. Пустой spec отключает пульс.
func NewScheduler(spinner *DailySpinner, loc *time.Location, spec string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		spinner: spinner,
		spec:    spec,
	}
}

// Start запускает фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		log.Info("Пульс планировщика отключён")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("неверное расписание %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.WithField("spec", s.spec).Info("Планировщик задач запущен")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	log.Debug("[CRON] Пульс ежедневного розыгрыша")
	if n := s.spinner.Run(ctx); n > 0 {
		log.WithField("spun", n).Info("[CRON] Розыгрыш по пульсу проведён")
	}
}

// Stop останавливает планировщик и ждёт завершения текущей задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
