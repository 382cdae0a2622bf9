package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := SQLiteDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger()})
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestConfigurePool_SQLiteUsesSingleConnection(t *testing.T) {
	db := openTestSQLite(t)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_Postgres(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           3,
		DBConnMaxLifetimeMinutes: 15,
	}))
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteFile(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     DriverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "inkwell.db"),
		DBSchemaMode: SchemaModeHybrid,
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	require.NoError(t, Ping(context.Background(), db))
	assert.Same(t, db, GetReadDB())
	assert.True(t, db.Migrator().HasTable(&models.Like{}))
	assert.True(t, db.Migrator().HasIndex(&models.Like{}, "idx_user_post"))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "blog.db?_foreign_keys=on", SQLiteDSN("blog.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", SQLiteDSN("file:x?mode=memory"))
	assert.Equal(t, "inkwell.db?_foreign_keys=on", SQLiteDSN(""))
}

func TestReadReplicaDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost: "primary", DBPort: "5432", DBUser: "app", DBPassword: "pw", DBName: "inkwell",
		DBReadHost: "replica", DBReadUser: "reader",
	}
	dsn := readReplicaDSN(cfg)
	assert.Contains(t, dsn, "host=replica")
	assert.Contains(t, dsn, "user=reader")
	assert.Contains(t, dsn, "password=pw")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		sql     bool
		auto    bool
		wantErr bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBDriver: DriverPostgres}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBDriver: DriverPostgres, DBSchemaMode: "hybrid"}, true, false, false},
		{"sql", config.Config{Env: "development", DBDriver: DriverPostgres, DBSchemaMode: "sql"}, true, false, false},
		{"auto prod refused", config.Config{Env: "production", DBDriver: DriverPostgres, DBSchemaMode: "auto"}, false, false, true},
		{"auto prod allowed", config.Config{Env: "production", DBDriver: DriverPostgres, DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: DriverSQLite, DBSchemaMode: "sql"}, false, true, false},
		{"unknown", config.Config{DBDriver: DriverPostgres, DBSchemaMode: "magic"}, false, false, true},
		{"sqlite unknown", config.Config{DBDriver: DriverSQLite, DBSchemaMode: "magic"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sql, plan.runSQL)
			assert.Equal(t, tt.auto, plan.runAuto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	list := GetMigrations()
	require.NotEmpty(t, list)
	assert.Equal(t, 1, list[0].Version)
	assert.Equal(t, "000001_init_schema", list[0].String())
	assert.Contains(t, list[0].UpScript, "idx_user_post")
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Version, list[i].Version)
	}
}

func testMigrationFS() fstest.MapFS {
	return fstest.MapFS{
		"m/000001_create_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);")},
		"m/000001_create_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
		"m/000002_add_tag.up.sql":        {Data: []byte("ALTER TABLE notes ADD COLUMN tag TEXT;")},
		"m/000002_add_tag.down.sql":      {Data: []byte("ALTER TABLE notes DROP COLUMN tag;")},
		"m/README.md":                    {Data: []byte("ignored")},
	}
}

func TestLoadMigrations(t *testing.T) {
	list, err := LoadMigrations(testMigrationFS(), "m")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "create_notes", list[0].Name)
	assert.Equal(t, 2, list[1].Version)

	missingDown := fstest.MapFS{"m/000003_x.up.sql": {Data: []byte("SELECT 1;")}}
	_, err = LoadMigrations(missingDown, "m")
	assert.Error(t, err)
}

func TestRunAndRollbackMigrations(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()
	list, err := LoadMigrations(testMigrationFS(), "m")
	require.NoError(t, err)

	require.NoError(t, runMigrations(ctx, db, list))
	// A second run is a no-op.
	require.NoError(t, runMigrations(ctx, db, list))

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasColumn("notes", "tag"))

	require.NoError(t, rollbackMigration(ctx, db, list, 2))
	applied, err = NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	assert.Error(t, rollbackMigration(ctx, db, list, 2))
	assert.Error(t, rollbackMigration(ctx, db, list, 99))
}

func TestRunMigrations_RejectsUnknownAppliedVersion(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, db.Create(&MigrationLog{Version: 42, Name: "from_the_future", AppliedAt: time.Now()}).Error)

	list, err := LoadMigrations(testMigrationFS(), "m")
	require.NoError(t, err)
	err = runMigrations(ctx, db, list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000042")
}

func TestGetSchemaStatus_SQLite(t *testing.T) {
	db := openTestSQLite(t)
	status, err := GetSchemaStatus(context.Background(), db, &config.Config{Env: "test", DBDriver: DriverSQLite})
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
	assert.Equal(t, []string{"users", "posts", "likes"}, status.MissingTables)
	assert.False(t, status.Ready())

	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.MissingTables)
	assert.True(t, status.LikeIndexPresent)
	assert.True(t, status.Ready())
}

func TestSchemaStatus_DetectsMissingLikeIndex(t *testing.T) {
	db := openTestSQLite(t)
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	// AutoMigrate would restore it, so drop it after the apply.
	require.NoError(t, db.Migrator().DropIndex(&models.Like{}, LikeUniqueIndex))
	missing, likeIndex := inspectBlogSchema(db)
	assert.Empty(t, missing)
	assert.False(t, likeIndex)

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.Ready())
}
