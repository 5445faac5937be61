package posapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/freshretail/freshpos/internal/pos"
	"github.com/freshretail/freshpos/internal/webserver"
	"github.com/freshretail/freshpos/pkg/metrics"
)

const idempotencyHeader = "X-Idempotency-Key"

var replays *ReplayStore

type saleLinePayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type submitSalePayload struct {
	Date  string            `json:"date"`
	Time  string            `json:"time"`
	Items []saleLinePayload `json:"items" validate:"required,min=1,dive"`
}

func registerSaleRoutes() {
	webserver.ApiPOST("/sales", submitSale)
	webserver.ApiGET("/sales", listSales)
	webserver.ApiGET("/sales/:id", getSale)
	webserver.ApiGET("/sales/summary", salesSummary)
	webserver.ApiGET("/sales/export", exportSales)
	webserver.ApiGET("/sales/metrics", salesMetrics)
}

// submitSale commits a multi-line sale as one atomic unit. A client supplied
// X-Idempotency-Key makes retries safe: a replayed key returns the original
// receipt without touching stock. When the header is absent the server
// assigns a key and echoes it back.
func submitSale(c echo.Context) error {
	var payload submitSalePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse sale parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	key := c.Request().Header.Get(idempotencyHeader)
	if key == "" {
		key = uuid.NewString()
	}
	c.Response().Header().Set(idempotencyHeader, key)

	if replays != nil {
		if receipt, err := replays.Lookup(key); err != nil {
			zap.L().Warn("replay lookup failed", zap.Error(err))
		} else if receipt != nil {
			return ok(c, map[string]interface{}{"receipt": receipt, "replayed": true})
		}
	}

	req := pos.SaleRequest{Time: payload.Time}
	if payload.Date != "" {
		t, err := parseDate(payload.Date)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid sale date", nil)
		}
		req.Date = t
	}
	for _, item := range payload.Items {
		req.Items = append(req.Items, pos.SaleLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	receipt, err := GetEngine(c).Coordinator.SubmitSale(c.Request().Context(), req)
	if err != nil {
		return failSaleError(c, err)
	}

	if err := metrics.RecordSale(receipt.Subtotal); err != nil {
		zap.L().Warn("record sale metric failed", zap.Error(err))
	}
	if replays != nil {
		if err := replays.Record(key, receipt); err != nil {
			zap.L().Warn("record replay key failed", zap.Error(err))
		}
	}

	return ok(c, map[string]interface{}{"receipt": receipt, "replayed": false})
}

func querySales(c echo.Context) ([]pos.SaleReceipt, error) {
	from, err := parseDateParam(c, "from")
	if err != nil {
		return nil, &pos.ValidationError{Reason: "invalid from date"}
	}
	to, err := parseDateParam(c, "to")
	if err != nil {
		return nil, &pos.ValidationError{Reason: "invalid to date"}
	}

	sales, err := GetEngine(c).Ledger.Query(c.Request().Context(), from, to)
	if err != nil {
		return nil, err
	}

	receipts := make([]pos.SaleReceipt, 0, len(sales))
	for _, s := range sales {
		receipts = append(receipts, pos.SaleReceipt{
			OrderID:  s.ID,
			Date:     s.SaleDate,
			Time:     s.SaleTime,
			Subtotal: s.Subtotal,
			Items:    s.Items,
		})
	}
	return receipts, nil
}

func listSales(c echo.Context) error {
	receipts, err := querySales(c)
	if err != nil {
		return failSaleError(c, err)
	}
	return ok(c, receipts)
}

func getSale(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	sale, err := GetEngine(c).Ledger.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Sale not found", nil)
	}
	return ok(c, sale)
}

// salesSummary aggregates the ledger over a date range.
func salesSummary(c echo.Context) error {
	receipts, err := querySales(c)
	if err != nil {
		return failSaleError(c, err)
	}

	subtotals := make([]float64, 0, len(receipts))
	itemCount := 0
	for _, r := range receipts {
		subtotals = append(subtotals, r.Subtotal)
		for _, item := range r.Items {
			itemCount += item.Quantity
		}
	}

	summary := map[string]interface{}{
		"orders":     len(receipts),
		"items_sold": itemCount,
	}
	if len(subtotals) > 0 {
		total, _ := stats.Sum(subtotals)
		mean, _ := stats.Mean(subtotals)
		median, _ := stats.Median(subtotals)
		max, _ := stats.Max(subtotals)
		summary["revenue"] = total
		summary["mean_order"] = mean
		summary["median_order"] = median
		summary["max_order"] = max
	} else {
		summary["revenue"] = 0.0
	}
	return ok(c, summary)
}

type saleExportRow struct {
	OrderID   int64   `csv:"order_id"`
	Date      string  `csv:"date"`
	Time      string  `csv:"time"`
	ProductID int64   `csv:"product_id"`
	Quantity  int     `csv:"quantity"`
	UnitPrice float64 `csv:"unit_price"`
	LineTotal float64 `csv:"line_total"`
}

func exportRows(receipts []pos.SaleReceipt) []saleExportRow {
	rows := make([]saleExportRow, 0, len(receipts))
	for _, r := range receipts {
		for _, item := range r.Items {
			rows = append(rows, saleExportRow{
				OrderID:   r.OrderID,
				Date:      r.Date.Format("2006-01-02"),
				Time:      r.Time,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: float64(item.Quantity) * item.UnitPrice,
			})
		}
	}
	return rows
}

// exportSales streams the ledger as csv or xlsx, one row per sale line.
func exportSales(c echo.Context) error {
	receipts, err := querySales(c)
	if err != nil {
		return failSaleError(c, err)
	}
	rows := exportRows(receipts)

	switch c.QueryParam("format") {
	case "xlsx":
		xlsx := excelize.NewFile()
		headers := []string{"order_id", "date", "time", "product_id", "quantity", "unit_price", "line_total"}
		for i, h := range headers {
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("%c1", 'A'+i), h)
		}
		for i, row := range rows {
			line := i + 2
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("A%d", line), row.OrderID)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("B%d", line), row.Date)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("C%d", line), row.Time)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("D%d", line), row.ProductID)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("E%d", line), row.Quantity)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("F%d", line), row.UnitPrice)
			xlsx.SetCellValue("Sheet1", fmt.Sprintf("G%d", line), row.LineTotal)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="sales.xlsx"`)
		c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Response().WriteHeader(http.StatusOK)
		return xlsx.Write(c.Response())
	default:
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="sales.csv"`)
		c.Response().Header().Set(echo.HeaderContentType, "text/csv")
		c.Response().WriteHeader(http.StatusOK)
		return gocsv.Marshal(rows, c.Response())
	}
}

// salesMetrics reads the embedded time-series store for dashboards.
func salesMetrics(c echo.Context) error {
	from, err := parseDateParam(c, "from")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid from date", nil)
	}
	to, err := parseDateParam(c, "to")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid to date", nil)
	}
	if from.IsZero() {
		from = time.Now().AddDate(0, 0, -7)
	}
	if to.IsZero() {
		to = time.Now()
	}

	result := map[string]interface{}{}
	for _, name := range []string{metrics.MetricSalesTotal, metrics.MetricSalesCount} {
		points, err := metrics.Select(name, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			zap.L().Warn("metrics select failed", zap.String("metric", name), zap.Error(err))
			continue
		}
		result[name] = points
	}
	return ok(c, result)
}
