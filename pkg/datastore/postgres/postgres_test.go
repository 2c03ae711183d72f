package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db,
		WithLogger(logging.NewNoop()),
		WithRetryPolicy(retry.FixedPolicy(2, time.Millisecond)),
	), mock
}

func TestTableEnsure(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "saver" (id serial, name text)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, client.Table("saver").Ensure(context.Background(), "id serial", "name text"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableEnsureReadyRetriesAfterFailure(t *testing.T) {
	client, mock := newMockClient(t)
	create := regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "saver" (id serial)`)
	mock.ExpectExec(create).WillReturnError(errors.New("down"))
	mock.ExpectExec(create).WillReturnError(errors.New("down"))
	mock.ExpectExec(create).WillReturnResult(sqlmock.NewResult(0, 0))

	table := client.Table("saver")
	ctx := context.Background()
	assert.Error(t, table.EnsureReady(ctx, "id serial"))
	require.NoError(t, table.EnsureReady(ctx, "id serial"))
	// ready tables do not run CREATE again
	require.NoError(t, table.EnsureReady(ctx, "id serial"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableInsertRetries(t *testing.T) {
	client, mock := newMockClient(t)
	query := regexp.QuoteMeta(`INSERT INTO "saver" ("a", "b") VALUES ($1, $2)`)
	mock.ExpectExec(query).WithArgs(1, "x").WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(query).WithArgs(1, "x").WillReturnResult(sqlmock.NewResult(1, 1))

	err := client.Table("saver").Insert(context.Background(), map[string]interface{}{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableInsertGivesUp(t *testing.T) {
	client, mock := newMockClient(t)
	query := regexp.QuoteMeta(`INSERT INTO "saver" ("a") VALUES ($1)`)
	mock.ExpectExec(query).WillReturnError(errors.New("down"))
	mock.ExpectExec(query).WillReturnError(errors.New("down"))

	err := client.Table("saver").Insert(context.Background(), map[string]interface{}{"a": 1})
	assert.ErrorContains(t, err, "failed to insert into saver")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableDeleteAndQueryRow(t *testing.T) {
	client, mock := newMockClient(t)
	table := client.Table("saver")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "saver" WHERE "session_id" = $1 AND "user_id" = $2`)).
		WithArgs("s1", "a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := table.Delete(context.Background(), map[string]interface{}{"user_id": "a@b.com", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "checkpoint" FROM "saver" WHERE "user_id" = $1 ORDER BY "checkpoint_id" DESC LIMIT 1`)).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint"}).AddRow(`{"k":1}`))
	var raw string
	require.NoError(t, table.QueryRow(context.Background(), "checkpoint", map[string]interface{}{"user_id": "a@b.com"}, "checkpoint_id").Scan(&raw))
	assert.Equal(t, `{"k":1}`, raw)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := client.Transaction(context.Background(), func(*sql.Tx) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, client.Transaction(context.Background(), func(*sql.Tx) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}
