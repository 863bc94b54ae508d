package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/quantleap/brokerage/internal/types"
)

// MockAuthService is a mock implementation of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, email, username, password, confirmPassword string) (string, types.UserSummary, error) {
	args := m.Called(ctx, email, username, password, confirmPassword)
	return args.String(0), args.Get(1).(types.UserSummary), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, types.UserSummary, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Get(1).(types.UserSummary), args.Error(2)
}

func (m *MockAuthService) VerifyToken(ctx context.Context, tokenString string) (types.UserSummary, error) {
	args := m.Called(ctx, tokenString)
	return args.Get(0).(types.UserSummary), args.Error(1)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID string) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func newTestHandler(service AuthService) *AuthHandler {
	return NewAuthHandler(service, slog.Default())
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestSignupHandler(t *testing.T) {
	summary := types.UserSummary{ID: "user123", Email: "a@x.com", Username: "a"}

	t.Run("Created", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Signup", mock.Anything, "a@x.com", "a", "p1", "p1").
			Return("signed-token", summary, nil).Once()
		handler := newTestHandler(mockService)

		rr := postJSON(t, handler.Signup, "/api/auth/signup", SignupRequest{
			Email: "a@x.com", Username: "a", Password: "p1", ConfirmPassword: "p1",
		})

		assert.Equal(t, http.StatusCreated, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "User created successfully", body["message"])
		assert.Equal(t, "signed-token", body["token"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "user123", user["id"])
		assert.Equal(t, "a@x.com", user["email"])
		assert.Equal(t, "a", user["username"])
		mockService.AssertExpectations(t)
	})

	t.Run("ValidationMessages", func(t *testing.T) {
		cases := []struct {
			name    string
			err     error
			message string
		}{
			{"MissingFields", ErrMissingFields, "All fields are required"},
			{"PasswordMismatch", ErrPasswordMismatch, "Passwords do not match"},
			{"EmailTaken", ErrEmailTaken, "Email already registered"},
			{"UsernameTaken", ErrUsernameTaken, "Username already taken"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				mockService := new(MockAuthService)
				mockService.On("Signup", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", types.UserSummary{}, tc.err).Once()
				handler := newTestHandler(mockService)

				rr := postJSON(t, handler.Signup, "/api/auth/signup", SignupRequest{Email: "a@x.com"})

				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Equal(t, tc.message, decodeBody(t, rr)["message"])
			})
		}
	})

	t.Run("InternalErrorIsOpaque", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Signup", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", types.UserSummary{}, errors.New("pgx: connection refused")).Once()
		handler := newTestHandler(mockService)

		rr := postJSON(t, handler.Signup, "/api/auth/signup", SignupRequest{Email: "a@x.com"})

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Error creating user", decodeBody(t, rr)["message"])
		assert.NotContains(t, rr.Body.String(), "pgx")
	})
}

func TestLoginHandler(t *testing.T) {
	summary := types.UserSummary{ID: "user123", Email: "a@x.com", Username: "a"}

	t.Run("Ok", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "a@x.com", "p1").
			Return("signed-token", summary, nil).Once()
		handler := newTestHandler(mockService)

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{Email: "a@x.com", Password: "p1"})

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Login successful", body["message"])
		assert.Equal(t, "signed-token", body["token"])
		mockService.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "a@x.com", "").
			Return("", types.UserSummary{}, ErrMissingFields).Once()
		handler := newTestHandler(mockService)

		rr := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{Email: "a@x.com"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Email and password are required", decodeBody(t, rr)["message"])
	})

	t.Run("BadCredentials", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return("", types.UserSummary{}, ErrBadCredentials).Twice()
		handler := newTestHandler(mockService)

		unknownEmail := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{Email: "nobody@x.com", Password: "p1"})
		wrongPassword := postJSON(t, handler.Login, "/api/auth/login", LoginRequest{Email: "a@x.com", Password: "nope"})

		assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
		assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
		assert.Equal(t, "Invalid email or password", decodeBody(t, unknownEmail)["message"])
		assert.Equal(t, "Invalid email or password", decodeBody(t, wrongPassword)["message"])
	})
}

func TestVerifyHandler(t *testing.T) {
	summary := types.UserSummary{ID: "user123", Email: "a@x.com", Username: "a"}

	t.Run("Ok", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("VerifyToken", mock.Anything, "signed-token").
			Return(summary, nil).Once()
		handler := newTestHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req = req.WithContext(context.WithValue(req.Context(), BearerTokenKey, "signed-token"))
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Token is valid", body["message"])
		assert.Equal(t, "user123", body["user"].(map[string]any)["id"])
		mockService.AssertExpectations(t)
	})

	t.Run("NoTokenInContext", func(t *testing.T) {
		handler := newTestHandler(new(MockAuthService))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("RejectedToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("VerifyToken", mock.Anything, "stale-token").
			Return(types.UserSummary{}, ErrBadCredentials).Once()
		handler := newTestHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req = req.WithContext(context.WithValue(req.Context(), BearerTokenKey, "stale-token"))
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid or expired token", decodeBody(t, rr)["message"])
	})
}

func TestMeHandler(t *testing.T) {
	t.Run("Ok", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("CurrentUser", mock.Anything, "user123").
			Return(&types.UserAuth{ID: "user123", Email: "a@x.com", Username: "a", Password: "hash"}, nil).Once()
		handler := newTestHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user123"))
		rr := httptest.NewRecorder()
		handler.Me(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "user123", body["id"])
		// The password hash must never leak into the profile body.
		assert.NotContains(t, rr.Body.String(), "hash")
		mockService.AssertExpectations(t)
	})

	t.Run("NoUserInContext", func(t *testing.T) {
		handler := newTestHandler(new(MockAuthService))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		rr := httptest.NewRecorder()
		handler.Me(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("AccountGone", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("CurrentUser", mock.Anything, "user123").
			Return(nil, ErrBadCredentials).Once()
		handler := newTestHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "user123"))
		rr := httptest.NewRecorder()
		handler.Me(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
