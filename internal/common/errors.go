// Package common — errors.go определяет ошибки, общие для всех модулей бота.
// Обработчики различают по ним типы проблем: хранилище, пустой ростер,
// пустой аргумент команды.
package common

import "errors"

// Ошибки хранилища
var (
	// ErrStore — запрос к PostgreSQL не выполнен. Кэш и БД могли разойтись.
	ErrStore = errors.New("ошибка хранилища")
	// ErrChatNotFound — чата нет в таблице chat_contexts
	ErrChatNotFound = errors.New("чат не найден")
)

// Ошибки розыгрыша
var (
	// ErrEmptyRoster — в чате нет ни одного участника, крутить некого.
	// Вызывающий код обязан проверить ростер до вызова спина.
	ErrEmptyRoster = errors.New("в чате нет участников")
)

// Ошибки команд
var (
	// ErrEmptyArgument — команде не передали обязательный аргумент
	ErrEmptyArgument = errors.New("пустой аргумент")
)
