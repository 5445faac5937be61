package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/freshretail/freshpos/config"
	"github.com/freshretail/freshpos/internal/domain"
	"github.com/freshretail/freshpos/pkg/common"
)

func getDatabase(cfg config.DatabaseConfig, workdir string) *gorm.DB {
	logLevel := gormlogger.Warn
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dsn := filepath.Join(workdir, "data", "freshpos.db") + "?_pragma=busy_timeout(10000)"
		dialector = sqlite.Open(dsn)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	if cfg.Type == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetMaxOpenConns(32)
	}
	return db
}

func (a *Application) MigrateDB() error {
	return a.gormDB.Migrator().AutoMigrate(domain.Tables...)
}

// checkSuper seeds the default operator account so a fresh install can log
// in. The password is stored as a bcrypt hash and should be rotated through
// the API afterwards.
func (a *Application) checkSuper() {
	const superUsername = "admin"
	const defaultPassword = "password123"

	var operator domain.SysOpr
	err := a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, herr := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		if herr != nil {
			zap.L().Error("failed to hash default operator password", zap.Error(herr))
			return
		}
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Email:     "N/A",
			Username:  superUsername,
			Password:  string(hashed),
			Level:     "super",
			Status:    common.ENABLED,
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default operator", zap.Error(err))
		} else {
			zap.L().Info("initialized default operator account", zap.String("username", superUsername))
		}
	case err != nil:
		zap.L().Error("failed to query default operator", zap.Error(err))
	}
}

// DropAll removes every managed table. Destructive; only wired to explicit
// maintenance commands.
func (a *Application) DropAll() {
	for _, table := range domain.Tables {
		if err := a.gormDB.Migrator().DropTable(table); err != nil {
			zap.L().Error("failed to drop table", zap.Error(err))
		}
	}
}
