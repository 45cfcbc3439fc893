package db

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"handoff-backend/config"
	"handoff-backend/internal/model"
)

// Init opens the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates the schema and the dialect-specific constraints that the
// models cannot express through struct tags.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Handoff{},
		&model.HandoffAsset{},
		&model.SupplementalNote{},
		&model.VoiceNote{},
		&model.Acknowledgment{},
		&model.AuditEntry{},
		&model.PushSubscription{},
		&model.NotificationPreference{},
		&model.Notification{},
		&model.AssetAssignment{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	var ddls []string
	switch db.Dialector.Name() {
	case "postgres":
		ddls = postgresDDL
	case "sqlite":
		ddls = sqliteDDL
	}
	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

// At most one draft or pending handoff per (creator, shift_date, shift_type).
const openHandoffIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_handoffs_open_shift " +
	"ON handoffs (creator_id, shift_date, shift_type) " +
	"WHERE status IN ('draft', 'pending_acknowledgment');"

var sqliteDDL = []string{
	openHandoffIndex,
	"CREATE TRIGGER IF NOT EXISTS audit_entries_no_update BEFORE UPDATE ON audit_entries " +
		"BEGIN SELECT RAISE(ABORT, 'audit entries are append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete BEFORE DELETE ON audit_entries " +
		"BEGIN SELECT RAISE(ABORT, 'audit entries are append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS acknowledgments_no_update BEFORE UPDATE ON acknowledgments " +
		"BEGIN SELECT RAISE(ABORT, 'acknowledgments are append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS acknowledgments_no_delete BEFORE DELETE ON acknowledgments " +
		"BEGIN SELECT RAISE(ABORT, 'acknowledgments are append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS supplemental_notes_no_update BEFORE UPDATE ON supplemental_notes " +
		"BEGIN SELECT RAISE(ABORT, 'supplemental notes are append-only'); END;",
	"CREATE TRIGGER IF NOT EXISTS supplemental_notes_no_delete BEFORE DELETE ON supplemental_notes " +
		"BEGIN SELECT RAISE(ABORT, 'supplemental notes are append-only'); END;",
}

var postgresDDL = []string{
	openHandoffIndex,
	`CREATE OR REPLACE FUNCTION reject_append_only_change() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;`,
	"DROP TRIGGER IF EXISTS audit_entries_append_only ON audit_entries;",
	"CREATE TRIGGER audit_entries_append_only BEFORE UPDATE OR DELETE ON audit_entries " +
		"FOR EACH ROW EXECUTE FUNCTION reject_append_only_change();",
	"DROP TRIGGER IF EXISTS acknowledgments_append_only ON acknowledgments;",
	"CREATE TRIGGER acknowledgments_append_only BEFORE UPDATE OR DELETE ON acknowledgments " +
		"FOR EACH ROW EXECUTE FUNCTION reject_append_only_change();",
	"DROP TRIGGER IF EXISTS supplemental_notes_append_only ON supplemental_notes;",
	"CREATE TRIGGER supplemental_notes_append_only BEFORE UPDATE OR DELETE ON supplemental_notes " +
		"FOR EACH ROW EXECUTE FUNCTION reject_append_only_change();",
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
