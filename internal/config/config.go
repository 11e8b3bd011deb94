// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// необязательный .env подхватывается через godotenv.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/spin-bot/internal/common"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Имя бота, подставляется в шаблоны розыгрыша
	BotName string `envconfig:"BOT_NAME" required:"true"`
	// Операторы бота: считаются админами в любом чате
	AdminIDsRaw string  `envconfig:"ADMIN_IDS"`
	AdminIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// DATABASE_URL (как на Heroku) имеет приоритет над DB_*.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"postgres"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"botuser"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"spin_bot"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"4"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Spin ---
	// Раньше этого часа (по APP_TIMEZONE) ежедневный розыгрыш не запускается
	SpinGateHour int `envconfig:"SPIN_GATE_HOUR" default:"8"`
	// Минимальный интервал между проходами ежедневного розыгрыша
	SpinThrottle time.Duration `envconfig:"SPIN_THROTTLE" default:"10m"`
	// Пауза с индикатором "печатает" перед каждой строкой объявления
	SpinTypingDelay time.Duration `envconfig:"SPIN_TYPING_DELAY" default:"2s"`
	// Пауза после каждой строки объявления
	SpinLineDelay time.Duration `envconfig:"SPIN_LINE_DELAY" default:"1s"`

	// --- Jobs ---
	// Cron-выражение для фонового прохода розыгрыша. Пустое — отключено.
	JobsHeartbeatSpec string `envconfig:"JOBS_HEARTBEAT_SPEC" default:"@every 10m"`

	// --- Bot runtime ---
	// true — принимаем апдейты вебхуком, false — long polling
	BotWebhookMode bool   `envconfig:"BOT_WEBHOOK_MODE" default:"false"`
	WebhookHost    string `envconfig:"WEBHOOK_HOST"`
	WebhookPath    string `envconfig:"WEBHOOK_PATH" default:"/webhook/"`
	WebAppHost     string `envconfig:"WEBAPP_HOST" default:"0.0.0.0"`
	WebAppPort     int    `envconfig:"PORT" default:"8080"`
	// Сколько апдейтов обрабатываем параллельно
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"16"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"5"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// WebhookURL возвращает полный адрес вебхука для setWebhook.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.WebhookHost, "/") + c.WebhookPath
}

// WebAppAddr возвращает адрес, на котором слушает HTTP-сервер вебхука.
func (c *Config) WebAppAddr() string {
	return fmt.Sprintf("%s:%d", c.WebAppHost, c.WebAppPort)
}

// Location возвращает часовой пояс чатов.
func (c *Config) Location() *time.Location {
	return common.LoadLocation(c.AppTimezone)
}

func (c *Config) Validate() error {
	if c.TelegramBotToken == "" || c.BotName == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN и BOT_NAME не могут быть пустыми")
	}
	if c.DatabaseURL == "" && c.DBPassword == "" {
		return fmt.Errorf("нужен DATABASE_URL или DB_PASSWORD")
	}
	if c.SpinGateHour < 0 || c.SpinGateHour > 23 {
		return fmt.Errorf("SPIN_GATE_HOUR должен быть в диапазоне 0..23")
	}
	if c.SpinThrottle < 0 || c.SpinTypingDelay < 0 || c.SpinLineDelay < 0 {
		return fmt.Errorf("SPIN_THROTTLE/SPIN_TYPING_DELAY/SPIN_LINE_DELAY не могут быть отрицательными")
	}
	if c.BotWebhookMode && c.WebhookHost == "" {
		return fmt.Errorf("WEBHOOK_HOST обязателен при BOT_WEBHOOK_MODE=true")
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		return fmt.Errorf("WEBHOOK_PATH должен начинаться с /")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет структуру Config.
func Load() (*Config, error) {
	// .env необязателен: в Docker всё приходит через окружение
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
