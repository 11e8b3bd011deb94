package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = []Migration{
	{Version: 1, Name: "chat_contexts", SQL: "CREATE TABLE IF NOT EXISTS chat_contexts (chat_id BIGINT)"},
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunMigrations_AppliesNewVersion(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chat_contexts").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsAppliedVersion(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_FailedStatementRollsBack(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chat_contexts").
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := RunMigrations(context.Background(), mock, testMigrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "миграция 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SchemaAddsSeqToExistingChatUsers(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	// chat_contexts и chat_users уже были, колонки seq ещё нет
	for _, version := range []int{1, 2} {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(version).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("ALTER TABLE chat_users ADD COLUMN IF NOT EXISTS seq BIGSERIAL").
		WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, Schema))
	assert.NoError(t, mock.ExpectationsWereMet())
}
