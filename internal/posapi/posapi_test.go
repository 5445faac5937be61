package posapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/freshretail/freshpos/config"
	"github.com/freshretail/freshpos/internal/app"
	"github.com/freshretail/freshpos/internal/domain"
	"github.com/freshretail/freshpos/internal/webserver"
	"github.com/freshretail/freshpos/pkg/common"
)

func newTestServer(t *testing.T) (*echo.Echo, *app.Application) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.System.Workdir = t.TempDir()

	dsn := filepath.Join(t.TempDir(), "posapi.db") + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.Tables...))

	a := app.NewApplication(cfg)
	a.OverrideDB(db)

	webserver.Init(a)
	Release()
	Init(a)
	t.Cleanup(Release)

	return webserver.Echo(), a
}

func authToken(t *testing.T, a *app.Application) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(a.Config().Web.JwtSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(e *echo.Echo, method, target, token string, payload interface{}, header map[string]string) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := jsoniter.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedStock(t *testing.T, a *app.Application, name string, price float64, qty int) int64 {
	t.Helper()
	ctx := context.Background()
	p, _, err := a.Engine().Catalog.FindOrCreate(ctx, name, price, "poultry", "")
	require.NoError(t, err)
	_, err = a.Engine().Lots.Receive(ctx, p.ID, qty,
		time.Now(), time.Now().AddDate(0, 0, 30))
	require.NoError(t, err)
	return p.ID
}

func TestApiRequiresToken(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/products", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIssuesToken(t *testing.T) {
	e, a := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, a.DB().Create(&domain.SysOpr{
		ID:       common.UUIDint64(),
		Username: "cashier",
		Password: string(hash),
		Level:    "opr",
		Status:   common.ENABLED,
	}).Error)

	rec := doJSON(e, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "cashier", "password": "secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Code string `json:"code"`
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Code)
	assert.NotEmpty(t, resp.Data.Token)

	authed := doJSON(e, http.MethodGet, "/api/products", resp.Data.Token, nil, nil)
	assert.Equal(t, http.StatusOK, authed.Code)

	bad := doJSON(e, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "cashier", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestCreateProductFindsExisting(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)

	rec := doJSON(e, http.MethodPost, "/api/products", token,
		map[string]interface{}{"name": "Chicken Breast", "price": 120.0}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Created bool           `json:"created"`
			Product domain.Product `json:"product"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Created)
	firstID := resp.Data.Product.ID

	again := doJSON(e, http.MethodPost, "/api/products", token,
		map[string]interface{}{"name": "  chicken BREAST ", "price": 99.0}, nil)
	require.Equal(t, http.StatusOK, again.Code)
	require.NoError(t, jsoniter.Unmarshal(again.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Created)
	assert.Equal(t, firstID, resp.Data.Product.ID)
}

func TestSubmitSaleEndpoint(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)
	pid := seedStock(t, a, "Whole Chicken", 250, 10)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": pid, "quantity": 3},
		},
	}
	rec := doJSON(e, http.MethodPost, "/api/sales", token, payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Replayed bool `json:"replayed"`
			Receipt  struct {
				OrderID  int64   `json:"order_id"`
				Subtotal float64 `json:"subtotal"`
			} `json:"receipt"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Replayed)
	assert.Equal(t, 750.0, resp.Data.Receipt.Subtotal)
	assert.NotEmpty(t, rec.Header().Get("X-Idempotency-Key"))

	available, err := a.Engine().Lots.AvailableQuantity(context.Background(), pid, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, available)
}

func TestSubmitSaleIdempotentReplay(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)
	pid := seedStock(t, a, "Chicken Wings", 180, 10)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": pid, "quantity": 2},
		},
	}
	header := map[string]string{"X-Idempotency-Key": "order-abc-1"}

	first := doJSON(e, http.MethodPost, "/api/sales", token, payload, header)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(e, http.MethodPost, "/api/sales", token, payload, header)
	require.Equal(t, http.StatusOK, second.Code)

	var resp struct {
		Data struct {
			Replayed bool `json:"replayed"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Replayed)

	// the retry must not deduct stock a second time
	available, err := a.Engine().Lots.AvailableQuantity(context.Background(), pid, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 8, available)
}

func TestSubmitSaleInsufficientStockStatus(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)
	pid := seedStock(t, a, "Chicken Liver", 90, 5)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": pid, "quantity": 6},
		},
	}
	rec := doJSON(e, http.MethodPost, "/api/sales", token, payload, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)

	available, err := a.Engine().Lots.AvailableQuantity(context.Background(), pid, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, available)
}

func TestSubmitSaleUnknownProductStatus(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": 424242, "quantity": 1},
		},
	}
	rec := doJSON(e, http.MethodPost, "/api/sales", token, payload, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceiveAndAvailabilityEndpoints(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)

	p, _, err := a.Engine().Catalog.FindOrCreate(context.Background(), "Drumsticks", 150, "poultry", "")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPost, "/api/inventory/receive", token, map[string]interface{}{
		"product_id":  p.ID,
		"quantity":    12,
		"expiry_date": time.Now().AddDate(0, 0, 14).Format("2006-01-02"),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	avail := doJSON(e, http.MethodGet, fmt.Sprintf("/api/inventory/availability/%d", p.ID), token, nil, nil)
	require.Equal(t, http.StatusOK, avail.Code)

	var resp struct {
		Data struct {
			Available int `json:"available"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(avail.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Data.Available)
}

func TestExpiringLotsReport(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)
	ctx := context.Background()

	soonA := seedStock(t, a, "Chicken Thighs", 140, 4)
	soonB := seedStock(t, a, "Gizzards", 80, 6)
	_, err := a.Engine().Lots.Receive(ctx, soonA, 9,
		time.Now(), time.Now().AddDate(0, 0, 2))
	require.NoError(t, err)
	_, err = a.Engine().Lots.Receive(ctx, soonB, 7,
		time.Now(), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)

	rec := doJSON(e, http.MethodGet, "/api/inventory/expiring?days=3", token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			LotID       int64  `json:"lot_id"`
			ProductID   int64  `json:"product_id"`
			ProductName string `json:"product_name"`
			Remaining   int    `json:"remaining_quantity"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))

	// the 30-day lots from seedStock are outside the window
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Gizzards", resp.Data[0].ProductName)
	assert.Equal(t, 7, resp.Data[0].Remaining)
	assert.Equal(t, soonB, resp.Data[0].ProductID)
	assert.Equal(t, "Chicken Thighs", resp.Data[1].ProductName)
	assert.Equal(t, soonA, resp.Data[1].ProductID)
}

func TestSalesSummaryAndExport(t *testing.T) {
	e, a := newTestServer(t)
	token := authToken(t, a)
	pid := seedStock(t, a, "Chicken Feet", 60, 20)

	for i := 0; i < 3; i++ {
		payload := map[string]interface{}{
			"items": []map[string]interface{}{
				{"product_id": pid, "quantity": 2},
			},
		}
		rec := doJSON(e, http.MethodPost, "/api/sales", token, payload, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	summary := doJSON(e, http.MethodGet, "/api/sales/summary", token, nil, nil)
	require.Equal(t, http.StatusOK, summary.Code)

	var resp struct {
		Data struct {
			Orders    int     `json:"orders"`
			ItemsSold int     `json:"items_sold"`
			Revenue   float64 `json:"revenue"`
		} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(summary.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Orders)
	assert.Equal(t, 6, resp.Data.ItemsSold)
	assert.Equal(t, 360.0, resp.Data.Revenue)

	export := doJSON(e, http.MethodGet, "/api/sales/export", token, nil, nil)
	require.Equal(t, http.StatusOK, export.Code)
	assert.Contains(t, export.Body.String(), "order_id")
}
