package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TechXTT/tormsql/pkg/session"
)

// Migration holds one versioned migration
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Status reports whether a migration has been applied.
type Status struct {
	Version int
	Name    string
	Applied bool
}

// Runner hands out sessions. *db.DB implements it.
type Runner interface {
	AutoCommit(ctx context.Context, fn func(session.Session) error) error
	ReadOnly(ctx context.Context, fn func(session.Session) error) error
	LocalTx(ctx context.Context, fn func(session.Session) error, opts ...*sql.TxOptions) error
}

// Manager applies and rolls back migrations
type Manager struct {
	runner        Runner
	migrationsDir string
	migrations    []Migration
	placeholder   string
	log           *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the progress logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithPlaceholder sets the bind variable used for the version column.
func WithPlaceholder(p string) Option {
	return func(m *Manager) { m.placeholder = p }
}

// PlaceholderFor returns the first bind variable of driver.
func PlaceholderFor(driver string) string {
	switch strings.ToLower(driver) {
	case "postgres", "pgx":
		return "$1"
	default:
		return "?"
	}
}

// NewManager loads migration files from the specified directory
func NewManager(r Runner, migrationsDir string, opts ...Option) (*Manager, error) {
	m := &Manager{runner: r, migrationsDir: migrationsDir, placeholder: "$1", log: zap.L()}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadMigrations(); err != nil {
		return nil, err
	}
	return m, nil
}

// Migrations returns the loaded migrations ordered by version.
func (m *Manager) Migrations() []Migration {
	return m.migrations
}

var fileName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// loadMigrations reads .up.sql/.down.sql files and organizes them by version
func (m *Manager) loadMigrations() error {
	entries, err := os.ReadDir(m.migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	tmp := map[int]*Migration{}
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		matches := fileName.FindStringSubmatch(fi.Name())
		if len(matches) != 4 {
			continue
		}
		ver, _ := strconv.Atoi(matches[1])
		name := matches[2]
		dir := matches[3]
		path := filepath.Join(m.migrationsDir, fi.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", fi.Name(), err)
		}
		mig, exists := tmp[ver]
		if !exists {
			mig = &Migration{Version: ver, Name: name}
			tmp[ver] = mig
		}
		if dir == "up" {
			mig.UpSQL = string(data)
		} else {
			mig.DownSQL = string(data)
		}
	}
	// sort and assign
	versions := make([]int, 0, len(tmp))
	for v := range tmp {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		m.migrations = append(m.migrations, *tmp[v])
	}
	return nil
}

// EnsureVersionTable creates schema_migrations if missing
func (m *Manager) EnsureVersionTable(ctx context.Context) error {
	return m.runner.AutoCommit(ctx, func(s session.Session) error {
		_, err := s.Update(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INT PRIMARY KEY)`)
		return err
	})
}

// currentVersion returns the highest applied migration version
func (m *Manager) currentVersion(ctx context.Context) (int, error) {
	var v int
	err := m.runner.ReadOnly(ctx, func(s session.Session) error {
		var err error
		v, _, err = session.Single(ctx, s, `SELECT MAX(version) FROM schema_migrations`, func(r *session.Row) (int, error) {
			return r.IntAt(1)
		})
		return err
	})
	return v, err
}

// applied returns every recorded version.
func (m *Manager) applied(ctx context.Context) (map[int]struct{}, error) {
	var out map[int]struct{}
	err := m.runner.ReadOnly(ctx, func(s session.Session) error {
		var err error
		out, err = session.Collection(ctx, s, `SELECT version FROM schema_migrations`, func(r *session.Row) (int, error) {
			return r.IntAt(1)
		}, session.SetCollector[int]())
		return err
	})
	return out, err
}

// Up applies all pending migrations. Each migration and its version record
// commit together.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.EnsureVersionTable(ctx); err != nil {
		return err
	}
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		m.log.Info("applying migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		err := m.runner.LocalTx(ctx, func(s session.Session) error {
			if err := execScript(ctx, s, mig.UpSQL); err != nil {
				return fmt.Errorf("apply up %d: %w", mig.Version, err)
			}
			if _, err := s.Update(ctx, `INSERT INTO schema_migrations(version) VALUES(`+m.placeholder+`)`, mig.Version); err != nil {
				return fmt.Errorf("record version %d: %w", mig.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the latest migration
func (m *Manager) Down(ctx context.Context) error {
	if err := m.EnsureVersionTable(ctx); err != nil {
		return err
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		m.log.Info("no migrations to roll back")
		return nil
	}
	var toRoll *Migration
	for i := len(m.migrations) - 1; i >= 0; i-- {
		if m.migrations[i].Version == current {
			toRoll = &m.migrations[i]
			break
		}
	}
	if toRoll == nil {
		return fmt.Errorf("migration not found for version %d", current)
	}
	m.log.Info("rolling back migration", zap.Int("version", toRoll.Version), zap.String("name", toRoll.Name))
	return m.runner.LocalTx(ctx, func(s session.Session) error {
		if err := execScript(ctx, s, toRoll.DownSQL); err != nil {
			return fmt.Errorf("apply down %d: %w", toRoll.Version, err)
		}
		_, err := s.Update(ctx, `DELETE FROM schema_migrations WHERE version = `+m.placeholder, toRoll.Version)
		return err
	})
}

// Status lists every known migration and whether it was applied.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	if err := m.EnsureVersionTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		_, ok := done[mig.Version]
		out = append(out, Status{Version: mig.Version, Name: mig.Name, Applied: ok})
	}
	return out, nil
}

// execScript runs each ;-separated statement of script in order. Prepared
// statements hold a single command, so scripts are split client side.
func execScript(ctx context.Context, s session.Session, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := s.Update(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
