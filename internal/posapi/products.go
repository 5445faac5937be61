package posapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/freshretail/freshpos/internal/domain"
	"github.com/freshretail/freshpos/internal/pos"
	"github.com/freshretail/freshpos/internal/webserver"
)

type productPayload struct {
	Name     string  `json:"name" validate:"required,min=1,max=200"`
	Price    float64 `json:"price" validate:"gte=0"`
	Category string  `json:"category" validate:"omitempty,max=100"`
	Image    string  `json:"image" validate:"omitempty,max=500"`
}

func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Product{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("name_key LIKE ?", "%"+pos.NormalizeName(q)+"%")
	}
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("category = ?", category)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	if err := db.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	p, err := GetEngine(c).Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return failSaleError(c, err)
	}
	return ok(c, p)
}

// createProduct resolves the payload name against the catalog, creating the
// product only when no row with the same normalized name exists. The response
// carries a created flag so clients can tell a fresh row from a match.
func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	p, created, err := GetEngine(c).Catalog.FindOrCreate(c.Request().Context(),
		payload.Name, payload.Price, payload.Category, payload.Image)
	if err != nil {
		return failSaleError(c, err)
	}

	return ok(c, map[string]interface{}{"product": p, "created": created})
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	p, err := GetEngine(c).Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return failSaleError(c, err)
	}

	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	p.Name = payload.Name
	p.Price = payload.Price
	p.Category = payload.Category
	p.Image = payload.Image
	if err := GetEngine(c).Catalog.Update(c.Request().Context(), p); err != nil {
		return failSaleError(c, err)
	}
	return ok(c, p)
}
