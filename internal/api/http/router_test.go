package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/internal/worker"
)

type memoryAccountRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Account
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byEmail: make(map[string]*domain.Account)}
}

func (m *memoryAccountRepo) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[account.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	account.ID = uuid.NewString()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	m.byEmail[account.Email] = &stored
	return nil
}

func (m *memoryAccountRepo) Update(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, stored := range m.byEmail {
		if stored.ID == account.ID {
			replaced := *account
			delete(m.byEmail, email)
			m.byEmail[account.Email] = &replaced
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.byEmail {
		if stored.ID == id {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *stored
	return &cp, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string]string)}
}

func (n *recordingNotifier) SendOTP(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = code
	return nil
}

func (n *recordingNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

func newTestApp(t *testing.T) (*fiber.App, *recordingNotifier) {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "auth-service", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret",
			AccessTokenTTLHours: 24,
			BcryptCost:          bcrypt.MinCost,
			OTPTTLMinutes:       10,
		},
	}

	repo := newMemoryAccountRepo()
	notifier := newRecordingNotifier()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, notifier, zap.NewNop()))

	accountService := service.NewAccountService(cfg, service.AccountDependencies{
		AccountRepo: repo,
		Dispatcher:  dispatcher,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil),
		Accounts:       handlers.NewAccountsHandler(accountService),
		Session:        handlers.NewSessionHandler(accountService, cfg.App.Name),
		AuthMiddleware: auth.NewAuthMiddleware(accountService.TokenManager()),
	})
	return app, notifier
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) (int, map[string]any, string) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded, string(raw)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error object, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func TestFullAccountLifecycle(t *testing.T) {
	t.Parallel()
	app, notifier := newTestApp(t)

	status, body, _ := doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "A@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "a@b.com", body["email"])

	code := notifier.code("a@b.com")
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	status, body, _ = doJSON(t, app, http.MethodPost, "/api/verify-otp",
		map[string]string{"email": "a@b.com", "otp": wrong}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_CODE", errorCode(t, body))

	status, _, _ = doJSON(t, app, http.MethodPost, "/api/verify-otp",
		map[string]string{"email": "a@b.com", "otp": code}, nil)
	require.Equal(t, http.StatusOK, status)

	status, body, _ = doJSON(t, app, http.MethodPost, "/api/login",
		map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a@b.com", user["email"])
	require.NotEmpty(t, user["id"])

	authHeader := map[string]string{"Authorization": "Bearer " + token}

	status, body, _ = doJSON(t, app, http.MethodGet, "/api/landing", nil, authHeader)
	require.Equal(t, http.StatusOK, status)
	landingUser, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a@b.com", landingUser["email"])
	require.Equal(t, user["id"], landingUser["userId"])

	status, body, raw := doJSON(t, app, http.MethodGet, "/api/profile", nil, authHeader)
	require.Equal(t, http.StatusOK, status)
	profile, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a@b.com", profile["email"])
	require.NotContains(t, strings.ToLower(raw), "password")
	require.NotContains(t, strings.ToLower(raw), "otp")
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t)

	status, body, _ := doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "a@b.com"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, _, _ = doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, status)

	status, body, _ = doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "A@B.COM", "password": "secret1"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "DUPLICATE_ACCOUNT", errorCode(t, body))
}

func TestResendOTPEndpoint(t *testing.T) {
	t.Parallel()
	app, notifier := newTestApp(t)

	status, _, _ := doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, status)
	first := notifier.code("a@b.com")

	status, _, _ = doJSON(t, app, http.MethodPost, "/api/resend-otp",
		map[string]string{"email": "a@b.com"}, nil)
	require.Equal(t, http.StatusOK, status)
	second := notifier.code("a@b.com")

	if first != second {
		status, body, _ := doJSON(t, app, http.MethodPost, "/api/verify-otp",
			map[string]string{"email": "a@b.com", "otp": first}, nil)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "INVALID_CODE", errorCode(t, body))
	}

	status, _, _ = doJSON(t, app, http.MethodPost, "/api/verify-otp",
		map[string]string{"email": "a@b.com", "otp": second}, nil)
	require.Equal(t, http.StatusOK, status)

	status, body, _ := doJSON(t, app, http.MethodPost, "/api/resend-otp",
		map[string]string{"email": "a@b.com"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "ALREADY_VERIFIED", errorCode(t, body))

	status, body, _ = doJSON(t, app, http.MethodPost, "/api/resend-otp",
		map[string]string{"email": "ghost@b.com"}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestLoginFailureStatuses(t *testing.T) {
	t.Parallel()
	app, notifier := newTestApp(t)

	status, _, _ := doJSON(t, app, http.MethodPost, "/api/register",
		map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, status)

	// Unverified account with the correct password.
	status, body, _ := doJSON(t, app, http.MethodPost, "/api/login",
		map[string]string{"email": "a@b.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, _, _ = doJSON(t, app, http.MethodPost, "/api/verify-otp",
		map[string]string{"email": "a@b.com", "otp": notifier.code("a@b.com")}, nil)
	require.Equal(t, http.StatusOK, status)

	// Unknown email and wrong password must be indistinguishable.
	statusUnknown, bodyUnknown, _ := doJSON(t, app, http.MethodPost, "/api/login",
		map[string]string{"email": "ghost@b.com", "password": "secret1"}, nil)
	statusWrongPw, bodyWrongPw, _ := doJSON(t, app, http.MethodPost, "/api/login",
		map[string]string{"email": "a@b.com", "password": "wrongpw"}, nil)
	require.Equal(t, http.StatusUnauthorized, statusUnknown)
	require.Equal(t, http.StatusUnauthorized, statusWrongPw)
	require.Equal(t, bodyUnknown, bodyWrongPw)

	status, body, _ = doJSON(t, app, http.MethodPost, "/api/login",
		map[string]string{"email": "a@b.com"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
}

func TestProtectedRouteTokenHandling(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t)

	status, body, _ := doJSON(t, app, http.MethodGet, "/api/landing", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(t, body))

	status, body, _ = doJSON(t, app, http.MethodGet, "/api/landing", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body, _ = doJSON(t, app, http.MethodGet, "/api/profile", nil,
		map[string]string{"Authorization": "Token abc"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestWelcomeRoute(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t)

	status, body, _ := doJSON(t, app, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["message"], "auth-service")
}
