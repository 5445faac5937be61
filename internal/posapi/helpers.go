package posapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/app"
	"github.com/freshretail/freshpos/internal/pos"
)

type apiEnvelope struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

type pagedEnvelope struct {
	Code     string      `json:"code"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, apiEnvelope{Code: "OK", Data: data})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, apiEnvelope{Code: code, Message: message, Detail: detail})
}

func paged(c echo.Context, rows interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, pagedEnvelope{
		Code:     "OK",
		Data:     rows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func handleValidationError(c echo.Context, err error) error {
	if verrs, is := err.(validator.ValidationErrors); is {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", fields)
	}
	return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = cast.ToInt(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	pageSize = cast.ToInt(c.QueryParam("perPage"))
	if pageSize <= 0 {
		pageSize = cast.ToInt(c.QueryParam("pageSize"))
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func parseID(v string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
}

func parseDate(v string) (time.Time, error) {
	return dateparse.ParseAny(strings.TrimSpace(v))
}

// parseDateParam accepts any common date layout. A blank value yields the
// zero time so range queries stay open ended.
func parseDateParam(c echo.Context, name string) (time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseAny(v)
}

// GetApp returns the application container injected by the web server.
func GetApp(c echo.Context) *app.Application {
	return c.Get("app").(*app.Application)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetApp(c).DB()
}

func GetEngine(c echo.Context) *pos.Engine {
	return GetApp(c).Engine()
}

// failSaleError maps sale engine errors onto the API envelope.
func failSaleError(c echo.Context, err error) error {
	switch e := err.(type) {
	case *pos.ValidationError:
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", e.Error(), nil)
	case *pos.UnknownProductError:
		return fail(c, http.StatusNotFound, "NOT_FOUND", e.Error(),
			map[string]interface{}{"product_id": e.ProductID})
	case *pos.InsufficientStockError:
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", e.Error(),
			map[string]interface{}{
				"product_id": e.ProductID,
				"requested":  e.Requested,
				"available":  e.Available,
			})
	default:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Operation failed", err.Error())
	}
}
