package serverutils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.NewNopLogger())})
	app.Get("/me", JwtMiddleware(testSecret), func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("me", UserID(ctx)))
	})
	app.Get("/admin", JwtMiddleware(testSecret), AdminOnly([]string{"admin-1"}), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"missing", "", fiber.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", fiber.StatusUnauthorized, ""},
		{"user_id claim", "Bearer " + signed(t, jwt.MapClaims{"user_id": "u1", "exp": exp}), fiber.StatusOK, "u1"},
		{"sub claim", "Bearer " + signed(t, jwt.MapClaims{"sub": "u2", "exp": exp}), fiber.StatusOK, "u2"},
		{"no user", "Bearer " + signed(t, jwt.MapClaims{"exp": exp}), fiber.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), fiber.StatusUnauthorized, ""},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == fiber.StatusOK {
				var body Response[string]
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.user, body.Data)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	app := newApp()
	exp := time.Now().Add(time.Hour).Unix()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"user_id": "u1", "exp": exp}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"user_id": "admin-1", "exp": exp}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", apperr.Invalid("bad"), fiber.StatusBadRequest},
		{"not found", apperr.NotFound("session x"), fiber.StatusNotFound},
		{"unavailable", apperr.Unavailable(errors.New("db")), fiber.StatusServiceUnavailable},
		{"validation", &ValidationError{Fields: map[string]string{"Message": "required"}}, fiber.StatusUnprocessableEntity},
		{"fiber", fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestErrorHandlerHidesInternalDetail(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.NewNopLogger())})
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("password=hunter2") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Message)
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		Message string `validate:"required"`
	}
	assert.NoError(t, ValidateRequest(request{Message: "hi"}))

	err := ValidateRequest(request{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "failed on 'required' tag", ve.Fields["Message"])
}
