package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"dynfilter/internal/engine"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateAccessToken("user-1", []string{"admin", "editor"}, []string{"product"}, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if len(claims.Models) != 1 || claims.Models[0] != "product" {
		t.Fatalf("unexpected models: %v", claims.Models)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("user-1", nil, nil, "right-secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAccessToken(token, "wrong-secret"); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestClaims_CanAccessModel(t *testing.T) {
	admin := &Claims{Roles: []string{"admin"}, Models: []string{"order"}}
	if !admin.CanAccessModel("product") {
		t.Fatal("expected admin to bypass model scoping")
	}

	unrestricted := &Claims{Roles: []string{"viewer"}}
	if !unrestricted.CanAccessModel("product") {
		t.Fatal("expected empty model scope to allow any model")
	}

	scoped := &Claims{Roles: []string{"viewer"}, Models: []string{"product"}}
	if !scoped.CanAccessModel("product") {
		t.Fatal("expected listed model to be allowed")
	}
	if scoped.CanAccessModel("order") {
		t.Fatal("expected unlisted model to be denied")
	}
}

func TestRequireModelAccess(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var appErr *engine.AppError
			if errors.As(err, &appErr) {
				return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
	setClaims := func(c *fiber.Ctx) error {
		c.Locals("claims", &Claims{Roles: []string{"viewer"}, Models: []string{"product"}})
		return c.Next()
	}
	app.Get("/api/:model", setClaims, RequireModelAccess(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/product", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for scoped model, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/order", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 for out-of-scope model, got %d", resp.StatusCode)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatal("expected password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("expected wrong password to fail")
	}
}
