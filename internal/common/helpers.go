// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с часовым поясом чатов, отображаемые имена, склонения.
package common

import (
	"fmt"
	"time"
)

// DefaultTimezone — пояс по умолчанию, если APP_TIMEZONE не загрузился.
const DefaultTimezone = "Europe/Moscow"

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна — использует UTC+3 вручную, как для Москвы.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// LocalDate возвращает полночь того же календарного дня в поясе loc.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameLocalDate проверяет, что моменты a и b приходятся на один день в поясе loc.
// Сравниваются именно календарные даты, время суток не важно.
func SameLocalDate(a, b time.Time, loc *time.Location) bool {
	return LocalDate(a, loc).Equal(LocalDate(b, loc))
}

// FormatLocalTime форматирует момент для команды /now.
// Пример: "14.10.2026 09:31:05 MSK"
func FormatLocalTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04:05 MST")
}

// DisplayName собирает отображаемое имя из профиля Telegram.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func DisplayName(username, firstName, lastName string) string {
	if username != "" {
		return "@" + username
	}
	if lastName != "" {
		return fmt.Sprintf("%s %s", firstName, lastName)
	}
	return firstName
}
