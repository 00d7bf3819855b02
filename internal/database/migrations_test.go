package database

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		ok       bool
	}{
		{"001_create_events.sql", 1, "create_events", true},
		{"012_add_payouts.sql", 12, "add_payouts", true},
		{"notes.txt", 0, "", false},
		{"no_version_here.sql", 0, "", false},
		{"README.sql", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationName(tt.filename)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.version, version)
				assert.Equal(t, tt.name, name)
			}
		})
	}
}

func TestLoadMigrations_SortedAndNonEmpty(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	sorted := sort.SliceIsSorted(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	assert.True(t, sorted, "migrations must apply in version order")

	for _, m := range migrations {
		assert.NotEmpty(t, m.SQL, "migration %d has no SQL", m.Version)
	}
}
