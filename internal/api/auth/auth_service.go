package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/quantleap/brokerage/config"
	"github.com/quantleap/brokerage/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the authentication operations exposed over HTTP.
type AuthService interface {
	// Signup validates the input, stores the new user with a hashed password
	// and returns a fresh session token plus the public user summary.
	Signup(ctx context.Context, email, username, password, confirmPassword string) (string, types.UserSummary, error)

	// Login authenticates by email+password and returns a fresh session token.
	Login(ctx context.Context, email, password string) (string, types.UserSummary, error)

	// VerifyToken checks signature and expiry of a session token and resolves
	// the encoded user id to the current user record.
	VerifyToken(ctx context.Context, tokenString string) (types.UserSummary, error)

	// CurrentUser returns the full non-sensitive profile for an
	// already-authenticated user id.
	CurrentUser(ctx context.Context, userID string) (*types.UserAuth, error)
}

// AuthServiceImpl implements AuthService. It is stateless with respect to
// sessions: there is no session table and no revocation list, a token stays
// valid until its embedded expiry.
type AuthServiceImpl struct {
	logger    *slog.Logger
	repo      AuthRepo
	jwtCfg    config.JWTConfig
	userCache *cache.Cache
}

// Summary lookups behind VerifyToken are memoized briefly so the guard on
// protected routes stays cheap under repeated calls with the same token.
const (
	userCacheTTL     = 5 * time.Minute
	userCacheCleanup = 10 * time.Minute
)

const defaultTokenTTL = 7 * 24 * time.Hour

func NewAuthService(repo AuthRepo, jwtCfg config.JWTConfig, logger *slog.Logger) *AuthServiceImpl {
	if jwtCfg.TokenTTL <= 0 {
		jwtCfg.TokenTTL = defaultTokenTTL
	}
	return &AuthServiceImpl{
		logger:    logger,
		repo:      repo,
		jwtCfg:    jwtCfg,
		userCache: cache.New(userCacheTTL, userCacheCleanup),
	}
}

// Signup creates a new user and issues a session token.
func (s *AuthServiceImpl) Signup(ctx context.Context, email, username, password, confirmPassword string) (string, types.UserSummary, error) {
	l := s.logger.With(slog.String("method", "Signup"), slog.String("email", email))

	if email == "" || username == "" || password == "" || confirmPassword == "" {
		return "", types.UserSummary{}, ErrMissingFields
	}
	if password != confirmPassword {
		return "", types.UserSummary{}, ErrPasswordMismatch
	}

	// Pre-checks give friendly errors; the unique indexes remain the real
	// enforcement boundary under concurrent signups (see CreateUser).
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return "", types.UserSummary{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return "", types.UserSummary{}, fmt.Errorf("signup: email lookup failed: %w", err)
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return "", types.UserSummary{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return "", types.UserSummary{}, fmt.Errorf("signup: username lookup failed: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", types.UserSummary{}, fmt.Errorf("signup: failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, username, string(hashedPassword))
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race against a concurrent signup with the same
			// email/username.
			return "", types.UserSummary{}, ErrEmailTaken
		}
		return "", types.UserSummary{}, fmt.Errorf("signup: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", types.UserSummary{}, fmt.Errorf("signup: %w", err)
	}

	l.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))
	return token, user.Summary(), nil
}

// Login authenticates a user. Unknown email and wrong password produce the
// same error value.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, types.UserSummary, error) {
	if email == "" || password == "" {
		return "", types.UserSummary{}, ErrMissingFields
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", types.UserSummary{}, ErrBadCredentials
		}
		return "", types.UserSummary{}, fmt.Errorf("login: user lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", types.UserSummary{}, ErrBadCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", types.UserSummary{}, fmt.Errorf("login: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))
	return token, user.Summary(), nil
}

// VerifyToken validates a session token and resolves the embedded user id to
// the current record. Repeated calls with the same unexpired token return the
// same summary.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, tokenString string) (types.UserSummary, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return types.UserSummary{}, err
	}

	cacheKey := "user:" + claims.UserID
	if cached, found := s.userCache.Get(cacheKey); found {
		return cached.(types.UserSummary), nil
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token is cryptographically fine but the account is gone.
			return types.UserSummary{}, fmt.Errorf("token subject no longer exists: %w", ErrUnauthenticated)
		}
		return types.UserSummary{}, fmt.Errorf("verify: user lookup failed: %w", err)
	}

	summary := user.Summary()
	s.userCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

// CurrentUser returns the full profile minus the password hash, which the
// UserAuth JSON tags never expose.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, userID string) (*types.UserAuth, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", ErrUnauthenticated)
		}
		return nil, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}

// issueToken signs a session token carrying user id and email with a fixed
// 7-day expiry (configurable for tests).
func (s *AuthServiceImpl) issueToken(user *types.UserAuth) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtCfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthServiceImpl) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if s.jwtCfg.Issuer != "" && claims.Issuer != s.jwtCfg.Issuer {
		return nil, fmt.Errorf("invalid token issuer: %w", ErrUnauthenticated)
	}
	return claims, nil
}
