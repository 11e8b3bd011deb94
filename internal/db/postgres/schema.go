package postgres

// Schema — все миграции бота по порядку. Встроены в код для упрощения деплоя.
var Schema = []Migration{
	{Version: 1, Name: "chat_contexts", SQL: migration001ChatContexts},
	{Version: 2, Name: "chat_users", SQL: migration002ChatUsers},
	{Version: 3, Name: "chat_users_seq", SQL: migration003ChatUsersSeq},
}

var migration001ChatContexts = `
CREATE TABLE IF NOT EXISTS chat_contexts (
    chat_id BIGINT PRIMARY KEY,
    wheel TEXT NOT NULL DEFAULT 'пижма',
    action TEXT NOT NULL DEFAULT 'запутать',
    last_winner_id BIGINT,
    last_wheel TEXT,
    last_spin TIMESTAMPTZ
);
`

var migration002ChatUsers = `
CREATE TABLE IF NOT EXISTS chat_users (
    chat_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    username TEXT,
    won_times INTEGER NOT NULL DEFAULT 0,
    seq BIGSERIAL,
    PRIMARY KEY (chat_id, user_id)
);
CREATE INDEX IF NOT EXISTS uchats_index ON chat_users(chat_id);
`

// Таблица chat_users, созданная до появления seq, получает колонку здесь.
// Существующие строки нумеруются в порядке хранения.
var migration003ChatUsersSeq = `
ALTER TABLE chat_users ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
`
