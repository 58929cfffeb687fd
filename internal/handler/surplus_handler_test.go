package handler_test

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/handler"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/service"
)

type stubSurplusService struct {
	claimErr        error
	verifyPickupErr error
	assignResponse  dto.AssignDriverResponse
	assignErr       error
}

func (s *stubSurplusService) Create(context.Context, service.Caller, dto.SurplusCreateRequest, *multipart.FileHeader) (dto.SurplusResponse, error) {
	return dto.SurplusResponse{ID: 1}, nil
}

func (s *stubSurplusService) Get(context.Context, uint) (dto.SurplusResponse, error) {
	return dto.SurplusResponse{ID: 1}, nil
}

func (s *stubSurplusService) ListAvailable(context.Context) ([]dto.SurplusResponse, error) {
	return []dto.SurplusResponse{}, nil
}

func (s *stubSurplusService) ListForCanteen(context.Context, string) ([]dto.SurplusResponse, error) {
	return []dto.SurplusResponse{}, nil
}

func (s *stubSurplusService) ListClaimedBy(context.Context, string) ([]dto.SurplusResponse, error) {
	return []dto.SurplusResponse{}, nil
}

func (s *stubSurplusService) ListAssignedTo(context.Context, string) ([]dto.SurplusResponse, error) {
	return []dto.SurplusResponse{}, nil
}

func (s *stubSurplusService) ListClaimedNeedingDriver(context.Context) ([]dto.SurplusResponse, error) {
	return []dto.SurplusResponse{}, nil
}

func (s *stubSurplusService) Claim(context.Context, uint, service.Caller) error {
	return s.claimErr
}

func (s *stubSurplusService) AssignDriver(context.Context, uint, service.Caller) (dto.AssignDriverResponse, error) {
	return s.assignResponse, s.assignErr
}

func (s *stubSurplusService) VerifyPickup(context.Context, uint, service.Caller, string) error {
	return s.verifyPickupErr
}

func (s *stubSurplusService) VerifyDelivery(context.Context, uint, service.Caller, string) error {
	return nil
}

func newSurplusApp(stub *stubSurplusService, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, "user-1")
		c.Locals(middleware.LocalUserName, "Test User")
		c.Locals(middleware.LocalUserRole, role)
		return c.Next()
	})

	h := handler.NewSurplusHandler(stub, zerolog.Nop())
	h.Register(app.Group("/surplus"))
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	return resp, payload
}

func TestClaimConflictMapsTo409(t *testing.T) {
	stub := &stubSurplusService{claimErr: service.ErrInvalidState}
	app := newSurplusApp(stub, "ngo")

	resp, payload := doJSON(t, app, http.MethodPost, "/surplus/7/claim", "")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.False(t, payload.Success)
}

func TestVerifyPickupCodeMismatchMapsTo422(t *testing.T) {
	stub := &stubSurplusService{verifyPickupErr: service.ErrCodeMismatch}
	app := newSurplusApp(stub, "canteen")

	resp, payload := doJSON(t, app, http.MethodPost, "/surplus/7/verify-pickup", `{"code":"1234"}`)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.False(t, payload.Success)
}

func TestVerifyPickupNotReadyMapsTo409(t *testing.T) {
	stub := &stubSurplusService{verifyPickupErr: service.ErrNotReady}
	app := newSurplusApp(stub, "canteen")

	resp, _ := doJSON(t, app, http.MethodPost, "/surplus/7/verify-pickup", `{"code":"1234"}`)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAssignDriverReturnsCode(t *testing.T) {
	stub := &stubSurplusService{assignResponse: dto.AssignDriverResponse{SurplusID: 7, DeliveryCode: "4242"}}
	app := newSurplusApp(stub, "driver")

	resp, payload := doJSON(t, app, http.MethodPost, "/surplus/7/assign", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var assignment dto.AssignDriverResponse
	require.NoError(t, json.Unmarshal(payload.Data, &assignment))
	require.Equal(t, "4242", assignment.DeliveryCode)
}

func TestVolunteerTokenPassesDriverGate(t *testing.T) {
	stub := &stubSurplusService{assignResponse: dto.AssignDriverResponse{SurplusID: 7, DeliveryCode: "4242"}}
	app := newSurplusApp(stub, "volunteer")

	resp, _ := doJSON(t, app, http.MethodPost, "/surplus/7/assign", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRoleGateRejectsWrongCategory(t *testing.T) {
	stub := &stubSurplusService{}
	app := newSurplusApp(stub, "canteen")

	resp, _ := doJSON(t, app, http.MethodPost, "/surplus/7/claim", "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestInvalidIDMapsTo400(t *testing.T) {
	stub := &stubSurplusService{}
	app := newSurplusApp(stub, "ngo")

	resp, _ := doJSON(t, app, http.MethodPost, "/surplus/abc/claim", "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
