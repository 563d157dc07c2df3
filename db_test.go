package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	db "github.com/TechXTT/tormsql"
	"github.com/TechXTT/tormsql/pkg/session"
)

type Users struct {
	Id       int
	Username string
}

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	testDB := db.Wrap(mockDB, session.ConnectionAttributes{DriverName: "postgres", ProductName: "PostgreSQL"})
	settings := session.DefaultSettings()
	settings.Logger = zap.NewNop()
	testDB.Settings = session.SettingsFunc(func() session.Settings { return settings })
	return testDB, mock
}

// TestNewDB ensures that NewDB correctly initializes a database connection.
func TestNewDB(t *testing.T) {
	// Mock database connection
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	assert.NoError(t, err)
	defer mockDB.Close()

	// Expect a Ping to be successful
	mock.ExpectPing()

	// Create the database instance
	testDB := &db.DB{Conn: mockDB}

	err = testDB.Conn.Ping()
	assert.NoError(t, err)
}

func TestNewDB_EmptyDSN(t *testing.T) {
	_, err := db.NewDB("postgres", "")
	assert.Error(t, err)
}

// TestSelect checks that rows are mapped onto struct fields by column name.
func TestSelect(t *testing.T) {
	testDB, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "username", "ignored"}).
		AddRow(1, "TechXT", "x")
	mock.ExpectPrepare(`SELECT \* FROM users`).ExpectQuery().WillReturnRows(rows)

	var users []Users
	err := testDB.ReadOnly(context.Background(), func(s session.Session) error {
		var err error
		users, err = db.Select[Users](context.Background(), s)
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Len(t, users, 1)
	assert.Equal(t, 1, users[0].Id)
	assert.Equal(t, "TechXT", users[0].Username)
}

func TestReadOnly_RejectsWrites(t *testing.T) {
	testDB, mock := newMockDB(t)

	err := testDB.ReadOnly(context.Background(), func(s session.Session) error {
		_, err := s.Update(context.Background(), "delete from users")
		return err
	})
	assert.ErrorIs(t, err, session.ErrReadOnly)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalTx_CommitsOnSuccess(t *testing.T) {
	testDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`insert into users`).ExpectExec().
		WithArgs("ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := testDB.LocalTx(context.Background(), func(s session.Session) error {
		n, err := s.Update(context.Background(), "insert into users(username) values ($1)", "ada")
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalTx_RollsBackOnError(t *testing.T) {
	testDB, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := testDB.LocalTx(context.Background(), func(s session.Session) error {
		return boom
	})
	assert.Same(t, boom, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoCommit_QueryBuilder(t *testing.T) {
	testDB, mock := newMockDB(t)

	mock.ExpectPrepare(`SELECT COUNT\(\*\) FROM users WHERE username = \$1`).
		ExpectQuery().
		WithArgs("ada").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err := testDB.AutoCommit(context.Background(), func(s session.Session) error {
		n, err := db.Query(s, db.StructExtractor[Users]()).
			From("users").
			Where("username = $1", "ada").
			Count(context.Background())
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
