package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// LikeUniqueIndex keeps one like per user and post. The like toggle relies on it.
const LikeUniqueIndex = "idx_user_post"

// blogTables are checked after every schema apply, in dependency order.
var blogTables = []struct {
	name  string
	model interface{}
}{
	{"users", &models.User{}},
	{"posts", &models.Post{}},
	{"likes", &models.Like{}},
}

// schemaPlan is what ApplySchema will run for one configuration.
type schemaPlan struct {
	mode    string
	runSQL  bool
	runAuto bool
}

// SchemaStatus describes what ApplySchema would do and what the database holds now.
type SchemaStatus struct {
	Mode               string
	Driver             string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	MissingTables      []string
	LikeIndexPresent   bool
}

// Ready reports whether every blog table and the like uniqueness index exist.
func (s *SchemaStatus) Ready() bool {
	return len(s.MissingTables) == 0 && s.LikeIndexPresent
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema decides which schema steps run. The SQL files target PostgreSQL,
// so SQLite databases are always built by AutoMigrate.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}
	switch plan.mode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}

	if cfg.DBDriver == DriverSQLite {
		plan.runAuto = true
		return plan, nil
	}

	prodLike := isProdLikeEnv(cfg.Env)
	switch plan.mode {
	case SchemaModeSQL:
		plan.runSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.runAuto = true
	case SchemaModeHybrid:
		plan.runSQL = true
		plan.runAuto = !prodLike
	}
	return plan, nil
}

// AutoMigrate creates or updates the tables for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE,
// then checks that the users, posts and likes tables and the like index are in place.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}
	if cfg.DBDriver == DriverSQLite && isProdLikeEnv(cfg.Env) {
		middleware.Logger.Warn("SQLite selected in a production-like environment",
			slog.String("env", cfg.Env))
	}

	if plan.runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.runAuto {
		if plan.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	missing, likeIndex := inspectBlogSchema(db.WithContext(ctx))
	if len(missing) > 0 {
		return fmt.Errorf("schema incomplete after %s apply: missing tables %s", plan.mode, strings.Join(missing, ", "))
	}
	if !likeIndex {
		return fmt.Errorf("schema incomplete after %s apply: likes table has no %s index", plan.mode, LikeUniqueIndex)
	}
	return nil
}

// inspectBlogSchema lists missing blog tables and whether the like uniqueness index exists.
func inspectBlogSchema(db *gorm.DB) (missing []string, likeIndex bool) {
	m := db.Migrator()
	for _, t := range blogTables {
		if !m.HasTable(t.model) {
			missing = append(missing, t.name)
		}
	}
	if m.HasTable(&models.Like{}) {
		likeIndex = m.HasIndex(&models.Like{}, LikeUniqueIndex)
	}
	return missing, likeIndex
}

// GetSchemaStatus reports the schema plan, the blog tables present and, for SQL mode,
// applied and pending migration versions.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Driver:             cfg.DBDriver,
		Environment:        cfg.Env,
		WillRunSQL:         plan.runSQL,
		WillRunAutoMigrate: plan.runAuto,
	}
	status.MissingTables, status.LikeIndexPresent = inspectBlogSchema(db.WithContext(ctx))

	if !plan.runSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	done := make(map[int]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
