package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema change, named NNN_description.sql
type Migration struct {
	Version int
	Name    string
	SQL     string
}

type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Run applies every embedded migration whose version is not yet in
// schema_migrations, each inside its own transaction.
func (m *Migrator) Run() error {
	if err := m.ensureVersionTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if _, done := applied[migration.Version]; done {
			continue
		}
		if err := m.apply(migration); err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) ensureVersionTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (m *Migrator) appliedVersions() (map[int]struct{}, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

// apply runs the migration and records its version in the same
// transaction, so a failure leaves no half-applied state behind.
func (m *Migrator) apply(migration Migration) error {
	log.Printf("applying migration %d (%s)", migration.Version, migration.Name)

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("migration %d failed: %w", migration.Version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		migration.Version, migration.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		version, name, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseMigrationName(filename string) (version int, name string, ok bool) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", false
	}
	prefix, rest, found := strings.Cut(filename, "_")
	if !found {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", false
	}
	return version, strings.TrimSuffix(rest, ".sql"), true
}
