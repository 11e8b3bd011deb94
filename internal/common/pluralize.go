// Package common — pluralize.go содержит склонения русских числительных
// для сообщений бота.
package common

// PluralizeUsers возвращает правильную форму слова «участник» для числа n.
//
// Правила:
//   - 1, 21, 101 (кроме 11) → "участник"
//   - 2-4, 22-24 (кроме 12-14) → "участника"
//   - остальные → "участников"
//
// Примеры:
//
//	PluralizeUsers(1)  → "участник"
//	PluralizeUsers(3)  → "участника"
//	PluralizeUsers(12) → "участников"
func PluralizeUsers(n int) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "участник"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "участника"
	}
	return "участников"
}
