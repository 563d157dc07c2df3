package core

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TechXTT/tormsql/pkg/session"
)

func TestBuild_WithAllClauses(t *testing.T) {
	qb := NewQueryBuilder[any](nil, nil).
		From("users").
		Select("id", "name").
		Where("active = ?", true).
		Join("JOIN orders ON orders.user_id = users.id").
		OrderBy("created_at DESC").
		Limit(10).
		Offset(5)

	sql, args := qb.Build()
	require.Equal(t,
		"SELECT id, name FROM users JOIN orders ON orders.user_id = users.id WHERE active = ? ORDER BY created_at DESC LIMIT 10 OFFSET 5",
		sql,
	)
	require.Equal(t, []any{true}, args)
}

func TestBuild_Defaults(t *testing.T) {
	qb := NewQueryBuilder[any](nil, nil).
		From("items")

	sql, args := qb.Build()
	require.Equal(t, "SELECT * FROM items", sql)
	require.Empty(t, args)
}

func newMockSession(t *testing.T) (session.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)

	settings := session.DefaultSettings()
	settings.Logger = zap.NewNop()
	s, err := session.New(conn, session.ConnectionAttributes{DriverName: "postgres"},
		session.WithSettings(session.SettingsFunc(func() session.Settings { return settings })))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mock
}

type item struct {
	ID   int64
	Name string
}

func scanItem(r *session.Row) (item, error) {
	id, err := r.Int64("id")
	if err != nil {
		return item{}, err
	}
	name, err := r.String("name")
	return item{ID: id, Name: name}, err
}

func TestCount(t *testing.T) {
	s, mock := newMockSession(t)

	// Expect COUNT query
	mock.ExpectPrepare(`SELECT COUNT\(\*\) FROM t WHERE x > \?`).
		ExpectQuery().
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	qb := NewQueryBuilder[any](s, nil).
		From("t").
		Where("x > ?", 5)

	count, err := qb.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAll(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectPrepare(`SELECT id, name FROM items ORDER BY id`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"))

	items, err := NewQueryBuilder(s, scanItem).
		From("items").
		Select("id", "name").
		OrderBy("id").
		All(context.Background())
	require.NoError(t, err)
	require.Equal(t, []item{{1, "a"}, {2, "b"}}, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOne_NoRows(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectPrepare(`SELECT id, name FROM items WHERE id = \? LIMIT 1`).
		ExpectQuery().
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := NewQueryBuilder(s, scanItem).
		From("items").
		Select("id", "name").
		Where("id = ?", 9).
		One(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEach_StopsEarly(t *testing.T) {
	s, mock := newMockSession(t)

	mock.ExpectPrepare(`SELECT id, name FROM items`).
		WillBeClosed().
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"))

	var got []item
	for it, err := range NewQueryBuilder(s, scanItem).From("items").Select("id", "name").Each(context.Background()) {
		require.NoError(t, err)
		got = append(got, it)
		break
	}
	require.Equal(t, []item{{1, "a"}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
