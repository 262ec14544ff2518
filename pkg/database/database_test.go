package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:         filepath.Join(t.TempDir(), "nested", "fraudguard.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_RunsEmbeddedMigrations(t *testing.T) {
	db := newTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	require.NoError(t, migrator.RunMigrations(EmbeddedMigrations()))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'claims'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "claims", name)

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, migrator.RunMigrations(EmbeddedMigrations()))

		var applied int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
		assert.Equal(t, 1, applied)
	})
}

func TestMigrator_AppliesInVersionOrder(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"002_add_row.sql":      {Data: []byte(`INSERT INTO things (id) VALUES (1);`)},
		"001_create_table.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
		"README.md":            {Data: []byte(`ignored`)},
	}

	require.NoError(t, NewMigrator(db, zap.NewNop()).RunMigrations(fsys))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count))
	assert.Equal(t, 1, count)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM schema_migrations WHERE version = 2`).Scan(&name))
	assert.Equal(t, "add_row", name)
}

func TestMigrator_RejectsBadFilename(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"create_table.sql": {Data: []byte(`CREATE TABLE x (id INTEGER);`)},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename format")
}

func TestMigrator_FailedMigrationIsRolledBack(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte(`CREATE TABLE ok (id INTEGER); NOT VALID SQL;`)},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)
	require.Error(t, err)

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 0, applied)
}

func TestMigrator_RejectsDuplicateVersions(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"001_a.sql":     {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"sub/001_b.sql": {Data: []byte(`CREATE TABLE b (id INTEGER);`)},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 1")
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		wantErr  bool
	}{
		{"001_create_claims.sql", 1, "create_claims", false},
		{"12_add_index.sql", 12, "add_index", false},
		{"003.sql", 3, "", false},
		{"create_table.sql", 0, "", true},
		{"000_zero.sql", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, err := parseMigrationName(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestDB_InTx(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (id) VALUES (1)`)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = db.InTx(ctx, func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO t (id) VALUES (2)`)
			panic("kaboom")
		})
	})

	require.NoError(t, db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (id) VALUES (3)`)
		return err
	}))

	var ids []int
	rows, err := db.Query(`SELECT id FROM t`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(t, []int{3}, ids)
}
