package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command against a sqlite file and returns stdout.
func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--driver", "sqlite", "--dsn", dsn}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestExecAndQuery(t *testing.T) {
	t.Setenv("TORM_LOG_LEVEL", "error")
	dsn := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, dsn, "exec", "create table users(id integer primary key autoincrement, email text)")
	require.NoError(t, err)
	assert.Equal(t, "0 row(s) affected\n", out)

	out, err = run(t, dsn, "exec", "--returning-key", "id", "insert into users(email) values (?)", "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = run(t, dsn, "query", "select id, email from users where id = ?", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"id", "email"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "a@b.c"}, strings.Fields(lines[1]))

	_, err = run(t, dsn, "query", "select nope from users")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	t.Setenv("TORM_LOG_LEVEL", "error")
	dsn := filepath.Join(t.TempDir(), "migrate.db")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_users.up.sql"),
		[]byte("CREATE TABLE users(id integer primary key);\nCREATE INDEX users_id ON users(id);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_users.down.sql"), []byte("DROP TABLE users;"), 0o644))

	_, err := run(t, dsn, "migrate", "up", "--dir", dir)
	require.NoError(t, err)

	out, err := run(t, dsn, "migrate", "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0001")
	assert.Contains(t, out, "true")

	_, err = run(t, dsn, "migrate", "down", "--dir", dir)
	require.NoError(t, err)

	out, err = run(t, dsn, "migrate", "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "false")

	_, err = run(t, dsn, "migrate", "sideways", "--dir", dir)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version()+"\n", out.String())
}
