package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
)

func newAuthApp(t *testing.T) (*fiber.App, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	svc := auth.NewService(users, newFakeSessionRepo(), testConfig(), zerolog.Nop())
	handler := NewAuthHandler(svc, zerolog.Nop())

	app := fiber.New()
	app.Post("/register", handler.Register)
	app.Post("/login", handler.Login)
	return app, users
}

func register(t *testing.T, app *fiber.App, username, email, password string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		t.Fatalf("marshal register body: %v", err)
	}
	return doReq(t, app, jsonReq(http.MethodPost, "/register", string(body)))
}

func TestRegisterHandler(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	resp := register(t, app, "alice", "alice@example.com", "Aa1!aaaa")
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusCreated, body)
	}
	var got struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal response %q: %v", body, err)
	}
	if got.Message == "" {
		t.Error("response message is empty")
	}
}

func TestRegisterHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/register", "not json"))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	if env := parseError(t, body); env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q, want VALIDATION_ERROR", env.Error.Code)
	}
}

func TestRegisterHandler_ValidationErrors(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"invalid email", "alice", "not-an-email", "Aa1!aaaa"},
		{"username too short", "a", "alice@example.com", "Aa1!aaaa"},
		{"username bad chars", "al ice", "alice@example.com", "Aa1!aaaa"},
		{"password too short", "alice", "alice@example.com", "Aa1!a"},
		{"password no special", "alice", "alice@example.com", "Aa1aaaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := register(t, app, tt.username, tt.email, tt.password)
			body := readBody(t, resp)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusBadRequest, body)
			}
			if env := parseError(t, body); env.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error code = %q, want VALIDATION_ERROR", env.Error.Code)
			}
		})
	}
}

func TestRegisterHandler_DuplicateUsername(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	if resp := register(t, app, "alice", "alice@example.com", "Aa1!aaaa"); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first register status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
	}

	resp := register(t, app, "alice", "other@example.com", "Aa1!aaaa")
	body := readBody(t, resp)
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}
	if env := parseError(t, body); env.Error.Code != "CONFLICT" {
		t.Errorf("error code = %q, want CONFLICT", env.Error.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	if resp := register(t, app, "alice", "alice@example.com", "Aa1!aaaa"); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
	}

	resp := doReq(t, app, jsonReq(http.MethodPost, "/login", `{"username":"alice","password":"Aa1!aaaa"}`))
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusOK, body)
	}
	var got loginResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal response %q: %v", body, err)
	}
	if got.Token == "" {
		t.Error("token is empty")
	}
	if got.Type != "Bearer" {
		t.Errorf("type = %q, want Bearer", got.Type)
	}
}

func TestLoginHandler_BadCredentials(t *testing.T) {
	t.Parallel()
	app, _ := newAuthApp(t)

	if resp := register(t, app, "alice", "alice@example.com", "Aa1!aaaa"); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
	}

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username":"alice","password":"Wrong1!aa"}`},
		{"unknown user", `{"username":"mallory","password":"Aa1!aaaa"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doReq(t, app, jsonReq(http.MethodPost, "/login", tt.body))
			body := readBody(t, resp)
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, fiber.StatusUnauthorized, body)
			}
			if env := parseError(t, body); env.Error.Code != "UNAUTHORIZED" {
				t.Errorf("error code = %q, want UNAUTHORIZED", env.Error.Code)
			}
		})
	}
}
