// Package spin — templates.go содержит тексты объявления победителя.
// Плейсхолдеры: {user}, {bot}, {action}, {wheel}. Разметка — Telegram HTML.
package spin

import (
	"fmt"
	"html"
	"strings"
)

// Template — последовательность строк, каждая уходит отдельным сообщением.
type Template []string

// Templates — набор сценариев объявления, выбирается случайно.
var Templates = []Template{
	{
		"Итак, кто же сегодня <b>{wheel} дня</b>?",
		"Хмм, интересно...",
		"<b>АГА</b>!",
		"Сегодня ты <b>{wheel} дня</b>, {user}!",
	},
	{
		"Эмм... Ты уверен?",
		"Ты <b>точно</b> уверен?",
		"Хотя ладно, процесс уже необратим",
		"Сегодня я назначаю тебе должность <b>{wheel} дня</b>, {user}!",
	},
	{
		"Ищем рандомного кота на улице...",
		"Ищем палку...",
		"Ищем шапку...",
		"Рисуем ASCII-арт...",
		"Готово!",
		"<pre>.∧＿∧\n( ･ω･｡)つ━☆・*。\n⊂　 ノ 　　　・゜+.\nしーＪ　　　°。+ *´¨)\n　　　　　　　　　.· ´¸.·*´¨) ¸.·*¨)\n　　　　　　　　　　(¸.·´ (¸.·'* ☆ \n    ВЖУХ, И ТЫ {wheel} ДНЯ, {user}\n</pre>",
	},
	{
		"Кручу-верчу, <b>{action}</b> хочу",
		"Сегодня ты <b>{wheel} дня</b>, @{bot}",
		"(нет)",
		"На самом деле, это {user}",
	},
	{
		"<b>Колесо Сансары запущено!</b>",
		"<i>Что за дичь?!</i>",
		"Ну ок...",
		"Поздравляю, ты <b>{wheel} дня</b>, {user}",
	},
}

// Values — подстановки для шаблона. Экранируются при рендере.
type Values struct {
	User   string
	Bot    string
	Action string
	Wheel  string
}

// Render подставляет значения в каждую строку шаблона.
func (t Template) Render(v Values) []string {
	r := strings.NewReplacer(
		"{user}", html.EscapeString(v.User),
		"{bot}", html.EscapeString(v.Bot),
		"{action}", html.EscapeString(v.Action),
		"{wheel}", html.EscapeString(v.Wheel),
	)
	out := make([]string, len(t))
	for i, line := range t {
		out[i] = r.Replace(line)
	}
	return out
}

// RepeatLine — ответ на /spin, когда сегодня победитель уже выбран.
func RepeatLine(wheel, user string) string {
	return fmt.Sprintf("Согласно сегодняшнему розыгрышу, <b>%s дня</b> — <code>%s</code>",
		html.EscapeString(wheel), html.EscapeString(user))
}
