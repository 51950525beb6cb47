package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmarket/SkillMarket/internal/pkg/usercontext"
)

func testApp(loggedIn, admin bool) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyFromProtected, loggedIn)
		c.Locals(usercontext.KeyIsAdmin, admin)
		return c.Next()
	})
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/auth", RequireAPISessionAuth, ok)
	app.Get("/admin", RequireAPIAdmin, ok)
	return app
}

func TestRequireAPISessionAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		loggedIn bool
		want     int
	}{
		{name: "anonymous gets 401", loggedIn: false, want: fiber.StatusUnauthorized},
		{name: "logged in passes", loggedIn: true, want: fiber.StatusOK},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			app := testApp(tc.loggedIn, false)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireAPIAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		loggedIn bool
		admin    bool
		want     int
	}{
		{name: "anonymous gets 401", loggedIn: false, admin: false, want: fiber.StatusUnauthorized},
		{name: "plain user gets 403", loggedIn: true, admin: false, want: fiber.StatusForbidden},
		{name: "admin passes", loggedIn: true, admin: true, want: fiber.StatusOK},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			app := testApp(tc.loggedIn, tc.admin)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
