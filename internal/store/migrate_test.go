// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/customfields/internal/customfield/customfieldtest"
)

// fakeMigrate implements migrateIface for testing.
type fakeMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	version        uint
	versionErr     error
	dirty          bool
	forceErr       error
	forced         int
	closeSourceErr error
	closeDBErr     error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Steps(_ int) error            { return f.stepsErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }

func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestNewMigrator_RejectsUnknownScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	customfieldtest.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/cf":   "pgx5://u:p@db:5432/cf",
		"postgresql://u:p@db:5432/cf": "pgx5://u:p@db:5432/cf",
		"pgx5://u:p@db:5432/cf":       "pgx5://u:p@db:5432/cf",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_DirectionalErrors(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name     string
		fake     *fakeMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{"up no change is success", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up failure", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down no change is success", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down failure", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps zero is a no-op", &fakeMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(0) }, ""},
		{"steps failure", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force failure", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			customfieldtest.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Force_PassesVersion(t *testing.T) {
	fake := &fakeMigrate{}
	require.NoError(t, (&Migrator{m: fake}).Force(2))
	assert.Equal(t, 2, fake.forced)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("empty database reports zero", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("dirty flag is reported", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		_, _, err := (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Version()
		customfieldtest.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Status(t *testing.T) {
	tests := []struct {
		name        string
		fake        *fakeMigrate
		wantName    string
		wantApplied []uint
		wantPending []uint
	}{
		{
			name:        "fresh database",
			fake:        &fakeMigrate{versionErr: migrate.ErrNilVersion},
			wantPending: []uint{1, 2, 3},
		},
		{
			name:        "partially migrated",
			fake:        &fakeMigrate{version: 2},
			wantName:    "000002_field_definitions",
			wantApplied: []uint{1, 2},
			wantPending: []uint{3},
		},
		{
			name:        "at latest",
			fake:        &fakeMigrate{version: 3},
			wantName:    "000003_field_values",
			wantApplied: []uint{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.fake}
			st, err := m.Status()
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, st.Name)
			assert.Equal(t, tt.wantApplied, st.Applied)
			assert.Equal(t, tt.wantPending, st.Pending)

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.wantApplied, applied)
		})
	}
}

func TestMigrator_Status_VersionError(t *testing.T) {
	_, err := (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Status()
	require.Error(t, err)
	customfieldtest.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Close(t *testing.T) {
	srcErr := errors.New("source close failed")
	dbErr := errors.New("db close failed")
	tests := []struct {
		name          string
		fake          *fakeMigrate
		wantComponent string
	}{
		{"clean", &fakeMigrate{}, ""},
		{"source", &fakeMigrate{closeSourceErr: srcErr}, "source"},
		{"database", &fakeMigrate{closeDBErr: dbErr}, "database"},
		{"both", &fakeMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}, "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			if tt.wantComponent == "" {
				require.NoError(t, err)
				return
			}
			customfieldtest.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			customfieldtest.AssertErrorContext(t, err, "component", tt.wantComponent)
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := map[uint]string{
		1:   "000001_field_tabs",
		2:   "000002_field_definitions",
		3:   "000003_field_values",
		999: "",
	}
	for version, want := range tests {
		name, err := MigrationName(version)
		require.NoError(t, err)
		assert.Equal(t, want, name, "version %d", version)
	}
}

func TestLoadMigrationIndex_SkipsMalformedNames(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/000001_a.down.sql": {Data: []byte("SELECT 1;")},
		"migrations/notes.up.sql":      {Data: []byte("-- stray")},
		"migrations/.gitkeep":          {},
	}

	idx, err := loadMigrationIndex(fsys)
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{1: "000001_a"}, idx)
}

func TestLoadMigrationIndex_MissingDir(t *testing.T) {
	_, err := loadMigrationIndex(fstest.MapFS{})
	require.Error(t, err)
	customfieldtest.AssertErrorCode(t, err, "MIGRATION_LIST_FAILED")
}
