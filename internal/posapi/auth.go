package posapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/freshretail/freshpos/internal/domain"
	"github.com/freshretail/freshpos/internal/webserver"
	"github.com/freshretail/freshpos/pkg/common"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=1,max=200"`
}

// CredentialVerifier checks an operator's credentials. The default
// implementation reads bcrypt hashes from the operator table; deployments can
// swap in an external directory.
type CredentialVerifier interface {
	Verify(db *gorm.DB, username, password string) (*domain.SysOpr, error)
}

var errBadCredentials = errors.New("invalid username or password")

type gormVerifier struct{}

func (gormVerifier) Verify(db *gorm.DB, username, password string) (*domain.SysOpr, error) {
	var opr domain.SysOpr
	err := db.Where("username = ?", username).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	} else if err != nil {
		return nil, err
	}
	if opr.Status != common.ENABLED {
		return nil, errBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(opr.Password), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return &opr, nil
}

var verifier CredentialVerifier = gormVerifier{}

// SetCredentialVerifier replaces the credential backend. Call before the
// server starts serving.
func SetCredentialVerifier(v CredentialVerifier) {
	verifier = v
}

func registerAuthRoutes() {
	webserver.PubPOST("/api/auth/login", login)
}

func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	opr, err := verifier.Verify(GetDB(c), strings.TrimSpace(payload.Username), payload.Password)
	if errors.Is(err, errBadCredentials) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Login failed", err.Error())
	}

	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).
		Update("last_login", time.Now())

	claims := jwt.RegisteredClaims{
		Subject:   opr.Username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(GetApp(c).Config().Web.JwtSecret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to sign token", err.Error())
	}

	return ok(c, map[string]interface{}{
		"token":    signed,
		"username": opr.Username,
		"level":    opr.Level,
	})
}
