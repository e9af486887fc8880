package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/podstreak/models"
)

var db *gorm.DB

// streakColumns are the users columns owned by the streak engine. The users table itself is
// created by the account service, so they are added one by one when missing.
var streakColumns = []string{
	"Timezone",
	"CurrentStreak",
	"LastSuccessfulDay",
	"LastCheckIn",
	"RestoresUsedThisMonth",
	"RestoresResetAt",
}

// InitDatabase establishes the configured connection and performs automatic migrations.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	var err error
	db, err = OpenDatabase(Get())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := Migrate(db, modelDefs...); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	return db
}

// OpenDatabase opens a gorm handle for the configured driver and tunes its pool.
func OpenDatabase(c AppConfig) (*gorm.DB, error) {
	// Derive GORM log level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormCfg := &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		// Unique index violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	switch c.DBDriver {
	case "sqlite":
		return openSQLite(c, gormCfg)
	case "mysql", "":
		return openMySQL(c, gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
}

func openMySQL(c AppConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := c.DatabaseURI
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser,
			c.DBPassword,
			c.DBHost,
			c.DBPort,
			c.DBName,
		)
	}

	conn, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	// Moderate pool with eager recycling so the server's wait_timeout never hands us a dead idle conn
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Ping at boot so network/auth problems show up before the first query
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

func openSQLite(c AppConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := c.DatabaseURI
	if dsn == "" {
		if dir := filepath.Dir(c.SQLitePath); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		dsn = c.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
	}

	conn, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY inside transactions
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return conn, nil
}

// Migrate creates missing tables and, for an existing users table, adds the streak columns.
func Migrate(conn *gorm.DB, modelDefs ...interface{}) error {
	for _, model := range modelDefs {
		if !conn.Migrator().HasTable(model) {
			if err := conn.AutoMigrate(model); err != nil {
				return fmt.Errorf("auto migration failed for %T: %w", model, err)
			}
			continue
		}
		// Safe, additive migrations: add missing columns only
		switch model.(type) {
		case *models.User:
			for _, col := range streakColumns {
				if conn.Migrator().HasColumn(&models.User{}, col) {
					continue
				}
				if err := conn.Migrator().AddColumn(&models.User{}, col); err != nil {
					return fmt.Errorf("add users.%s column: %w", col, err)
				}
			}
		case *models.CheckIn:
			if !conn.Migrator().HasIndex(&models.CheckIn{}, "idx_check_in_user_date") {
				if err := conn.Migrator().CreateIndex(&models.CheckIn{}, "idx_check_in_user_date"); err != nil {
					return fmt.Errorf("create check_ins unique index: %w", err)
				}
			}
		}
	}
	return nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}
