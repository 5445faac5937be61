// Package posapi exposes the point-of-sale HTTP API: operator auth, product
// catalog, lot inventory and the sale ledger.
package posapi

import (
	"go.uber.org/zap"

	"github.com/freshretail/freshpos/internal/app"
)

// Init registers all API routes and opens the idempotency replay store. The
// web server must be initialized first.
func Init(a *app.Application) {
	store, err := OpenReplayStore(a.Config().System.Workdir)
	if err != nil {
		zap.L().Warn("replay store unavailable, idempotent retries disabled", zap.Error(err))
	} else {
		replays = store
	}

	registerAuthRoutes()
	registerProductRoutes()
	registerInventoryRoutes()
	registerSaleRoutes()
}

// Release closes the replay store.
func Release() {
	if replays != nil {
		_ = replays.Close()
		replays = nil
	}
}
