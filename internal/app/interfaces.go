package app

import (
	"gorm.io/gorm"

	"github.com/freshretail/freshpos/config"
	"github.com/freshretail/freshpos/internal/pos"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// EngineProvider provides the sale engine (catalog, lots, ledger,
// coordinator).
type EngineProvider interface {
	Engine() *pos.Engine
}
