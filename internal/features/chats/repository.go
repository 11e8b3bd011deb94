// Package chats — repository.go отвечает за все операции с таблицами
// chat_contexts и chat_users. Каждая функция выполняет один SQL-запрос.
// Все записи — идемпотентные upsert'ы по chat_id или (chat_id, user_id).
package chats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"serotonyl.ru/spin-bot/internal/common"
)

// Querier — общая часть *pgxpool.Pool и pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db Querier
}

func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// storeErr оборачивает ошибку драйвера в common.ErrStore.
// errors.Is срабатывает и на ErrStore, и на исходную ошибку.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStore, op, err)
}

// LoadAllChatIDs возвращает ID всех известных чатов.
func (r *Repository) LoadAllChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT chat_id FROM chat_contexts ORDER BY chat_id`)
	if err != nil {
		return nil, storeErr("ошибка запроса чатов", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("ошибка сканирования chat_id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ошибка чтения строк", err)
	}
	return ids, nil
}

// LoadChat читает настройки чата без ростера.
// Если чата нет — ошибка с common.ErrChatNotFound.
func (r *Repository) LoadChat(ctx context.Context, chatID int64) (*ChatState, error) {
	query := `
		SELECT wheel, action, last_winner_id, last_wheel, last_spin
		FROM chat_contexts
		WHERE chat_id = $1
	`
	st := NewChatState(chatID)
	var lastWheel *string
	err := r.db.QueryRow(ctx, query, chatID).Scan(
		&st.WheelLabel, &st.ActionLabel, &st.LastWinnerID, &lastWheel, &st.LastSpinAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("чат %d: %w", chatID, common.ErrChatNotFound)
		}
		return nil, storeErr(fmt.Sprintf("ошибка чтения чата %d", chatID), err)
	}
	if lastWheel != nil {
		st.LastWheelLabel = *lastWheel
	}
	return st, nil
}

// LoadRoster читает участников чата в порядке их появления.
func (r *Repository) LoadRoster(ctx context.Context, chatID int64) ([]UserRecord, error) {
	query := `
		SELECT user_id, username, won_times
		FROM chat_users
		WHERE chat_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("ошибка запроса участников чата %d", chatID), err)
	}
	defer rows.Close()

	var out []UserRecord
	for rows.Next() {
		var (
			u    UserRecord
			name *string
		)
		if err := rows.Scan(&u.UserID, &name, &u.WinCount); err != nil {
			return nil, storeErr("ошибка сканирования участника", err)
		}
		if name != nil {
			u.DisplayName = *name
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ошибка чтения строк", err)
	}
	return out, nil
}

// UpsertChat сохраняет настройки и итог розыгрыша чата.
func (r *Repository) UpsertChat(ctx context.Context, st *ChatState) error {
	query := `
		INSERT INTO chat_contexts (chat_id, wheel, action, last_winner_id, last_wheel, last_spin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id) DO UPDATE
		SET wheel = EXCLUDED.wheel,
		    action = EXCLUDED.action,
		    last_winner_id = EXCLUDED.last_winner_id,
		    last_wheel = EXCLUDED.last_wheel,
		    last_spin = EXCLUDED.last_spin
	`
	var lastSpin *time.Time
	if st.LastSpinAt != nil {
		t := st.LastSpinAt.UTC()
		lastSpin = &t
	}
	_, err := r.db.Exec(ctx, query,
		st.ChatID, st.WheelLabel, st.ActionLabel,
		st.LastWinnerID, nullString(st.LastWheelLabel), lastSpin,
	)
	if err != nil {
		return storeErr(fmt.Sprintf("ошибка сохранения чата %d", st.ChatID), err)
	}
	return nil
}

// UpsertUser сохраняет участника чата. seq не меняется при обновлении,
// поэтому порядок ростера стабилен.
func (r *Repository) UpsertUser(ctx context.Context, chatID int64, u UserRecord) error {
	query := `
		INSERT INTO chat_users (chat_id, user_id, username, won_times)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    won_times = EXCLUDED.won_times
	`
	if _, err := r.db.Exec(ctx, query, chatID, u.UserID, u.DisplayName, u.WinCount); err != nil {
		return storeErr(fmt.Sprintf("ошибка сохранения участника %d в чате %d", u.UserID, chatID), err)
	}
	return nil
}

// ListUsersNotInChat возвращает пользователей, которых бот видел в других
// чатах, но не в этом. Кандидаты для /scan.
func (r *Repository) ListUsersNotInChat(ctx context.Context, chatID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT user_id
		FROM chat_users
		WHERE user_id NOT IN (
			SELECT user_id FROM chat_users WHERE chat_id = $1
		)
		ORDER BY user_id
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, storeErr("ошибка запроса кандидатов", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("ошибка сканирования user_id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("ошибка чтения строк", err)
	}
	return ids, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
