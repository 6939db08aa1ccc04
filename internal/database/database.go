package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/logger"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Open connects to the configured store and tunes the connection pool.
func Open(cfg config.DatabaseConfig, log *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg))
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DriverName: cfg.PostgresDriver,
			DSN:        cfg.PostgresDSN(),
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Gorm(log, cfg.LogLevel, cfg.SlowThreshold),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database handle: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer; one connection keeps writes queued
		// in the pool instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	log.Infow("database connected", "driver", cfg.Driver)
	return db, nil
}

func sqliteDSN(cfg config.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.SQLitePath, busy.Milliseconds())
}

// Migrate creates or updates the schema and seeds the default tags.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Answer{},
		&models.Tag{},
		&models.QuestionTag{},
		&models.Vote{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}

	tags := defaultTags()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tags).Error; err != nil {
		return fmt.Errorf("error seeding tags: %w", err)
	}
	return nil
}

func defaultTags() []models.Tag {
	return []models.Tag{
		{Name: "javascript", Description: "Questions about JavaScript programming", Color: "#f7df1e"},
		{Name: "typescript", Description: "Questions about TypeScript", Color: "#3178c6"},
		{Name: "react", Description: "Questions about React.js", Color: "#61dafb"},
		{Name: "node.js", Description: "Questions about Node.js", Color: "#339933"},
		{Name: "html", Description: "Questions about HTML markup", Color: "#e34f26"},
		{Name: "css", Description: "Questions about CSS styling", Color: "#1572b6"},
		{Name: "python", Description: "Questions about Python programming", Color: "#3776ab"},
		{Name: "go", Description: "Questions about Go programming", Color: "#00add8"},
		{Name: "sql", Description: "Questions about SQL databases", Color: "#336791"},
		{Name: "git", Description: "Questions about Git version control", Color: "#f05032"},
		{Name: "api", Description: "Questions about APIs and web services", Color: "#ff6b35"},
		{Name: "database", Description: "Questions about databases", Color: "#336791"},
		{Name: "authentication", Description: "Questions about user authentication", Color: "#4caf50"},
		{Name: "frontend", Description: "Questions about frontend development", Color: "#ff4081"},
		{Name: "backend", Description: "Questions about backend development", Color: "#795548"},
		{Name: "debugging", Description: "Questions about debugging code", Color: "#f44336"},
	}
}

// Health checks the health of the database connection by pinging the database.
func Health(ctx context.Context, db *gorm.DB) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err came from a unique index, for
// every driver the server can run on.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
