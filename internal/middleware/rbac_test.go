package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newProtectedApp(roles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/", middleware.JWTProtected(testSecret), middleware.RequireRole(roles...), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func request(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRequireRoleAdmitsMatchingRole(t *testing.T) {
	app := newProtectedApp("canteen")
	token := signToken(t, jwt.MapClaims{"sub": "canteen-1", "role": "canteen"})

	resp := request(t, app, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleFoldsVolunteerIntoDriver(t *testing.T) {
	app := newProtectedApp("driver")
	token := signToken(t, jwt.MapClaims{"sub": "driver-1", "role": "volunteer"})

	resp := request(t, app, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsOtherCategory(t *testing.T) {
	app := newProtectedApp("canteen")
	token := signToken(t, jwt.MapClaims{"sub": "ngo-1", "role": "ngo"})

	resp := request(t, app, token)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRejectsUnknownRole(t *testing.T) {
	app := newProtectedApp("canteen", "ngo", "driver")
	token := signToken(t, jwt.MapClaims{"sub": "x", "role": "admin"})

	resp := request(t, app, token)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := newProtectedApp("canteen")

	resp := request(t, app, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app := newProtectedApp("canteen")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "canteen-1", "role": "canteen",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	resp := request(t, app, signed)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRequiresSubject(t *testing.T) {
	app := newProtectedApp("canteen")
	token := signToken(t, jwt.MapClaims{"role": "canteen"})

	resp := request(t, app, token)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
