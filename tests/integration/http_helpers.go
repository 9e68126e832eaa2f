package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pslattery/gatehouse/internal/auth"
	"github.com/pslattery/gatehouse/internal/database"
	"github.com/pslattery/gatehouse/internal/handlers"
	customMiddleware "github.com/pslattery/gatehouse/internal/middleware"
	"github.com/pslattery/gatehouse/internal/models"
	"github.com/pslattery/gatehouse/internal/routes"
	"github.com/pslattery/gatehouse/internal/services"
	pkghttp "github.com/pslattery/gatehouse/pkg/http"
	pkglogger "github.com/pslattery/gatehouse/pkg/logger"
)

// SentMessage represents a captured email or SMS delivery
type SentMessage struct {
	To   string
	Kind string // "otp_email", "magic_link", "otp_sms"
	Body string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	mu       sync.Mutex
	Messages []SentMessage
}

func (m *MockEmailService) SendOTPEmail(ctx context.Context, email, code string) error {
	m.record(SentMessage{To: email, Kind: "otp_email", Body: code})
	return nil
}

func (m *MockEmailService) SendMagicLinkEmail(ctx context.Context, email, link string) error {
	m.record(SentMessage{To: email, Kind: "magic_link", Body: link})
	return nil
}

func (m *MockEmailService) record(msg SentMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
}

// LastMessage returns the most recent delivery, or nil
func (m *MockEmailService) LastMessage() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return nil
	}
	return &m.Messages[len(m.Messages)-1]
}

// MockSMSService captures sent SMS codes
type MockSMSService struct {
	mu       sync.Mutex
	Messages []SentMessage
}

func (m *MockSMSService) SendOTP(ctx context.Context, mobile, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, SentMessage{To: mobile, Kind: "otp_sms", Body: code})
	return nil
}

// memoryRefreshStore is an in-process stand-in for the Redis refresh
// token mirror.
type memoryRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryRefreshStore() *memoryRefreshStore {
	return &memoryRefreshStore{tokens: make(map[string]string)}
}

func (s *memoryRefreshStore) Save(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *memoryRefreshStore) Get(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userID]
	if !ok {
		return "", models.ErrNotFound
	}
	return token, nil
}

func (s *memoryRefreshStore) Rotate(ctx context.Context, userID, presented, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[userID] != presented {
		return models.ErrUnauthorized
	}
	s.tokens[userID] = next
	return nil
}

func (s *memoryRefreshStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// memoryRateBackend counts requests per key in a fixed window.
type memoryRateBackend struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemoryRateBackend() *memoryRateBackend {
	return &memoryRateBackend{counts: make(map[string]int)}
}

func (b *memoryRateBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[key]++
	count := b.counts[key]
	result := &models.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfterSeconds = int(window.Seconds())
	}
	return result, nil
}

// Reset clears all counters for test isolation
func (b *memoryRateBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts = make(map[string]int)
}

// fixedLocationService avoids live geo lookups during tests.
type fixedLocationService struct{}

func (fixedLocationService) Lookup(ctx context.Context, ip string) string {
	return "Test City, Testland"
}

// TestServer wraps httptest.Server with the database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	Client       *http.Client
	Pool         *database.DB
	EmailService *MockEmailService
	SMSService   *MockSMSService
	TokenManager *auth.TokenManager
	RateBackend  *memoryRateBackend
}

// NewTestServer initializes a complete HTTP server with real database and
// mocked outbound deliveries
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	auditLogger := pkglogger.NewAuditLogger(logger)

	userRepo, sessionRepo, deletionRepo := InitializeRepositories(db)

	mockEmail := &MockEmailService{}
	mockSMS := &MockSMSService{}
	refreshStore := newMemoryRefreshStore()
	rateBackend := newMemoryRateBackend()

	tokenManager := auth.NewTokenManager(
		"integration-access-secret-32-bytes!",
		"integration-refresh-secret-32-byte!",
		15*time.Minute,
		7*24*time.Hour,
	)

	totpKey := make([]byte, 32)
	if _, err := rand.Read(totpKey); err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	totpManager, err := auth.NewTOTPManager(totpKey, "GatehouseTest")
	if err != nil {
		return nil, fmt.Errorf("failed to create TOTP manager: %w", err)
	}

	sessionService := services.NewSessionService(sessionRepo, fixedLocationService{}, logger)
	userService := services.NewUserService(userRepo, logger)
	twoFactorService := services.NewTwoFactorService(userRepo, totpManager, logger)
	rateLimitService := services.NewRateLimitService(rateBackend, logger)

	authService := services.NewAuthService(
		userRepo,
		deletionRepo,
		sessionService,
		tokenManager,
		totpManager,
		mockEmail,
		mockSMS,
		refreshStore,
		services.AuthServiceConfig{
			MagicLinkBase:   "http://localhost:3000",
			OTPExpiry:       10 * time.Minute,
			MagicLinkExpiry: 15 * time.Minute,
			MobileOTPWindow: time.Hour,
			MobileOTPMax:    3,
		},
		logger,
		auditLogger,
	)

	cookies := auth.CookieConfig{}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: nil}

	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, tokenManager, cookies, ipConfig),
		Users:     handlers.NewUserHandler(userService, authService, cookies),
		Sessions:  handlers.NewSessionHandler(sessionService),
		TwoFactor: handlers.NewTwoFactorHandler(twoFactorService),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(customMiddleware.SecurityHeaders(customMiddleware.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, h, tokenManager, rateLimitService, ipConfig)

	server := httptest.NewServer(r)

	jar, err := cookiejar.New(nil)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &TestServer{
		Server:       server,
		Client:       client,
		Pool:         db,
		EmailService: mockEmail,
		SMSService:   mockSMS,
		TokenManager: tokenManager,
		RateBackend:  rateBackend,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server. The client carries a
// cookie jar, so token cookies from earlier responses are sent back.
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return ts.Client.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request using a bearer token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse extracts the token pair from an auth response
func ExtractTokensFromResponse(resp *http.Response) (accessToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var authResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	if access, ok := authResp["access_token"].(string); ok {
		accessToken = access
	}
	if refresh, ok := authResp["refresh_token"].(string); ok {
		refreshToken = refresh
	}

	return accessToken, refreshToken, nil
}

// GetErrorMessage extracts the error message from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
