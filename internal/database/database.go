package database

import (
	"strings"

	"github.com/arnold/goalmentor-api/internal/config"
	"github.com/arnold/goalmentor-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the driver from the DATABASE_URL scheme: postgres(ql)://
// for PostgreSQL, mysql:// for MySQL, anything else is a SQLite file.
func Dialector(databaseURL string) gorm.Dialector {
	switch {
	case strings.HasPrefix(databaseURL, "postgres"):
		return postgres.Open(databaseURL)
	case strings.HasPrefix(databaseURL, "mysql://"):
		return mysql.Open(mysqlDSN(databaseURL))
	default:
		return sqlite.Open(sqliteDSN(databaseURL))
	}
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}
	return Open(Dialector(cfg.DatabaseURL), level)
}

// Open is shared by Connect and tests. Driver errors are translated into
// gorm's sentinel errors so Humanize can classify them.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Goal{},
		&models.Task{},
		&models.ChatMessage{},
	)
}

func mysqlDSN(databaseURL string) string {
	dsn := strings.TrimPrefix(databaseURL, "mysql://")
	if !strings.Contains(dsn, "parseTime=") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	return dsn
}

// sqliteParams are appended to a SQLite DSN unless already present.
// Foreign keys are off by default, which would skip the goal -> task
// cascade. Transactions begin IMMEDIATE so a read-then-write transaction
// takes the write lock up front, and the busy timeout makes concurrent
// writers wait for it instead of failing with "database is locked".
var sqliteParams = []struct{ key, value string }{
	{"_foreign_keys", "on"},
	{"_busy_timeout", "5000"},
	{"_txlock", "immediate"},
}

func sqliteDSN(path string) string {
	dsn := path
	for _, p := range sqliteParams {
		if strings.Contains(dsn, p.key+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p.key + "=" + p.value
	}
	return dsn
}
