package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quantleap/brokerage/internal/api"
)

// AuthHandler handles HTTP requests for authentication operations
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authService.Signup(r.Context(), req.Email, req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields):
			api.ErrorResponse(w, r, http.StatusBadRequest, "All fields are required")
		case errors.Is(err, ErrPasswordMismatch):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Passwords do not match")
		case errors.Is(err, ErrEmailTaken):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email already registered")
		case errors.Is(err, ErrUsernameTaken):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Username already taken")
		default:
			h.logger.ErrorContext(r.Context(), "Signup failed", slog.Any("error", err), slog.String("email", req.Email))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error creating user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, TokenResponse{
		Message: "User created successfully",
		Token:   token,
		User:    user,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email and password are required")
		case errors.Is(err, ErrUnauthenticated):
			// One message for unknown email and wrong password.
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid email or password")
		default:
			h.logger.ErrorContext(r.Context(), "Login failed", slog.Any("error", err), slog.String("email", req.Email))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Error logging in")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// Verify handles GET /api/auth/verify. The Authenticate middleware has
// already checked the token; this resolves it to the current user record.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token, ok := GetBearerTokenFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.VerifyToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Token verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error verifying token")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, VerifyResponse{
		Message: "Token is valid",
		User:    user,
	})
}

// Me handles GET /api/auth/me, returning the full non-sensitive profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Fetching current user failed", slog.Any("error", err), slog.String("user_id", userID))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Error fetching user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}
