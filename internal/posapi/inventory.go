package posapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/freshretail/freshpos/internal/domain"
	"github.com/freshretail/freshpos/internal/pos"
	"github.com/freshretail/freshpos/internal/webserver"
)

type receiveStockPayload struct {
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	DateReceived string `json:"date_received"`
	ExpiryDate   string `json:"expiry_date" validate:"required"`
}

func registerInventoryRoutes() {
	webserver.ApiPOST("/inventory/receive", receiveStock)
	webserver.ApiGET("/inventory/lots", listLots)
	webserver.ApiGET("/inventory/availability/:id", getAvailability)
	webserver.ApiGET("/inventory/expiring", listExpiringLots)
}

func receiveStock(c echo.Context) error {
	var payload receiveStockPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse stock parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	received := time.Now()
	if payload.DateReceived != "" {
		t, err := parseDate(payload.DateReceived)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid date_received", nil)
		}
		received = t
	}
	expiry, err := parseDate(payload.ExpiryDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid expiry_date", nil)
	}

	lot, err := GetEngine(c).Lots.Receive(c.Request().Context(),
		payload.ProductID, payload.Quantity, received, expiry)
	if err != nil {
		return failSaleError(c, err)
	}
	return ok(c, lot)
}

func listLots(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.InventoryLot{})
	if pid := c.QueryParam("product_id"); pid != "" {
		id, err := parseID(pid)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product_id", nil)
		}
		db = db.Where("product_id = ?", id)
	}
	if c.QueryParam("in_stock") == "true" {
		db = db.Where("remaining_quantity > 0")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query lots", err.Error())
	}

	var rows []domain.InventoryLot
	if err := db.Order("expiry_date ASC, id ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query lots", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

func getAvailability(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	asOf, err := parseDateParam(c, "as_of")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid as_of date", nil)
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	if _, err := GetEngine(c).Catalog.Get(c.Request().Context(), id); err != nil {
		return failSaleError(c, err)
	}

	available, err := GetEngine(c).Lots.AvailableQuantity(c.Request().Context(), id, asOf)
	if err != nil {
		return failSaleError(c, err)
	}
	return ok(c, map[string]interface{}{
		"product_id": id,
		"as_of":      pos.DateOnly(asOf),
		"available":  available,
	})
}

type expiringLotRow struct {
	LotID             int64     `json:"lot_id"`
	ProductID         int64     `json:"product_id"`
	ProductName       string    `json:"product_name"`
	RemainingQuantity int       `json:"remaining_quantity"`
	ExpiryDate        time.Time `json:"expiry_date"`
}

func listExpiringLots(c echo.Context) error {
	days := GetApp(c).Config().Notify.ExpiryWindowDays
	if v := c.QueryParam("days"); v != "" {
		d, err := parseID(v)
		if err != nil || d < 0 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid days", nil)
		}
		days = int(d)
	}

	now := time.Now()
	deadline := now.AddDate(0, 0, days)

	rows := make([]expiringLotRow, 0)
	err := GetDB(c).Table("inventory_lots").
		Select("inventory_lots.id AS lot_id, inventory_lots.product_id, products.name AS product_name, inventory_lots.remaining_quantity, inventory_lots.expiry_date").
		Joins("JOIN products ON products.id = inventory_lots.product_id").
		Where("inventory_lots.remaining_quantity > 0 AND inventory_lots.expiry_date >= ? AND inventory_lots.expiry_date <= ?",
			pos.DateOnly(now), pos.DateOnly(deadline)).
		Order("inventory_lots.expiry_date ASC, inventory_lots.id ASC").
		Scan(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query lots", err.Error())
	}
	return ok(c, rows)
}
