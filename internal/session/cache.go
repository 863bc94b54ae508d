package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantleap/brokerage/internal/types"
)

// State is the session cache lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateVerifying
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateVerifying:
		return "verifying"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Cache holds the current session token and user summary, mirrored to a
// durable Store, and reconciles with the auth service once at startup.
//
// It is a best-effort session cache, not an authority: a cached session
// either was confirmed by the auth service or came from the local fallback
// store (marked by a distinguishable token shape). A rejected token is always
// trusted over a connectivity failure — rejection purges, unreachability
// falls back to cached state.
//
// Init and a concurrently triggered Login/Signup are not mutually excluded;
// the last durable write wins. That eventual-consistency window is accepted.
type Cache struct {
	client   Client
	store    Store
	fallback *FallbackStore
	logger   *slog.Logger

	initOnce sync.Once

	mu    sync.RWMutex
	state State
	token string
	user  *types.UserSummary
}

func NewCache(client Client, store Store, fallback *FallbackStore, logger *slog.Logger) *Cache {
	return &Cache{
		client:   client,
		store:    store,
		fallback: fallback,
		logger:   logger,
		state:    StateUninitialized,
	}
}

// Init runs the startup verification pass. It executes at most once per
// process; later calls are no-ops.
func (c *Cache) Init(ctx context.Context) error {
	var err error
	c.initOnce.Do(func() {
		err = c.verifyOnStartup(ctx)
	})
	return err
}

func (c *Cache) verifyOnStartup(ctx context.Context) error {
	raw, err := c.store.Get(ctx, KeyToken)
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}
	if raw == nil {
		c.setState(StateUnauthenticated, "", nil)
		return nil
	}
	token := string(raw)
	c.setState(StateVerifying, token, nil)

	user, err := c.client.Verify(ctx, token)
	switch {
	case err == nil:
		c.persistSession(ctx, token, *user)
		return nil

	case errors.Is(err, ErrRejected):
		// Explicit rejection: the token is bad, purge everything.
		c.logger.WarnContext(ctx, "Stored token rejected by auth service, clearing session", slog.Any("error", err))
		c.purge(ctx)
		return nil

	case errors.Is(err, ErrUnavailable):
		// Connectivity failure: trust stale cached state if we have it.
		if cached := c.loadCachedUser(ctx); cached != nil {
			c.logger.WarnContext(ctx, "Auth service unreachable, restoring cached session", slog.String("user_id", cached.ID))
			c.setState(StateAuthenticated, token, cached)
			return nil
		}
		c.setState(StateUnauthenticated, "", nil)
		return nil

	default:
		c.setState(StateUnauthenticated, "", nil)
		return fmt.Errorf("session init: %w", err)
	}
}

// Login authenticates against the auth service, falling back to the local
// shadow directory only on a connectivity failure. Application-level
// rejections propagate unchanged.
func (c *Cache) Login(ctx context.Context, email, password string) (*Credentials, error) {
	creds, err := c.client.Login(ctx, email, password)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) || c.fallback == nil {
			return nil, err
		}
		c.logger.WarnContext(ctx, "Server login failed, attempting local fallback", slog.Any("error", err))
		localCreds, localErr := c.fallback.Login(ctx, email, password)
		if localErr != nil {
			// No local match: surface the original connectivity error.
			return nil, err
		}
		creds = localCreds
	}

	c.persistSession(ctx, creds.Token, creds.User)
	return creds, nil
}

// Signup registers against the auth service, falling back to the local
// shadow directory only on a connectivity failure. A local conflict
// propagates as such.
func (c *Cache) Signup(ctx context.Context, email, username, password, confirmPassword string) (*Credentials, error) {
	creds, err := c.client.Signup(ctx, email, username, password, confirmPassword)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) || c.fallback == nil {
			return nil, err
		}
		c.logger.WarnContext(ctx, "Server signup failed, attempting local fallback", slog.Any("error", err))
		localCreds, localErr := c.fallback.Signup(ctx, email, username, password)
		if localErr != nil {
			return nil, localErr
		}
		creds = localCreds
	}

	c.persistSession(ctx, creds.Token, creds.User)
	return creds, nil
}

// Logout purges the session from memory and durable storage.
func (c *Cache) Logout(ctx context.Context) {
	c.purge(ctx)
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Token returns the current session token, if any.
func (c *Cache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns a copy of the cached user summary, or nil.
func (c *Cache) User() *types.UserSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// IsAuthenticated reports whether the cache currently holds a session.
func (c *Cache) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

func (c *Cache) setState(state State, token string, user *types.UserSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.token = token
	c.user = user
}

// persistSession writes the session through to durable storage and marks the
// cache authenticated. Write failures degrade to an in-memory session.
func (c *Cache) persistSession(ctx context.Context, token string, user types.UserSummary) {
	if err := c.store.Set(ctx, KeyToken, []byte(token)); err != nil {
		c.logger.WarnContext(ctx, "Failed to persist session token", slog.Any("error", err))
	}
	if raw, err := json.Marshal(user); err == nil {
		if err := c.store.Set(ctx, KeyUser, raw); err != nil {
			c.logger.WarnContext(ctx, "Failed to persist user summary", slog.Any("error", err))
		}
	}
	c.setState(StateAuthenticated, token, &user)
}

func (c *Cache) purge(ctx context.Context) {
	if err := c.store.Delete(ctx, KeyToken); err != nil {
		c.logger.WarnContext(ctx, "Failed to delete stored token", slog.Any("error", err))
	}
	if err := c.store.Delete(ctx, KeyUser); err != nil {
		c.logger.WarnContext(ctx, "Failed to delete stored user", slog.Any("error", err))
	}
	c.setState(StateUnauthenticated, "", nil)
}

func (c *Cache) loadCachedUser(ctx context.Context) *types.UserSummary {
	raw, err := c.store.Get(ctx, KeyUser)
	if err != nil || raw == nil {
		return nil
	}
	var user types.UserSummary
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil
	}
	return &user
}
