package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantleap/brokerage/internal/api/auth"
	"github.com/quantleap/brokerage/internal/types"
)

// LocalUser is a shadow user record kept only on this device. The password
// is stored in the clear: the fallback store is a development convenience,
// not a security feature, and is never reconciled with the server.
type LocalUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// FallbackStore approximates signup/login against a local shadow user
// directory when the auth service is unreachable.
type FallbackStore struct {
	store Store
}

func NewFallbackStore(store Store) *FallbackStore {
	return &FallbackStore{store: store}
}

// localTokenPrefix makes synthesized tokens distinguishable from
// server-issued JWTs.
const localTokenPrefix = "local-"

// IsLocalToken reports whether the token was synthesized by the fallback
// store rather than issued by the auth service.
func IsLocalToken(token string) bool {
	return len(token) > len(localTokenPrefix) && token[:len(localTokenPrefix)] == localTokenPrefix
}

func newLocalToken() string {
	return fmt.Sprintf("%s%d", localTokenPrefix, time.Now().UnixMilli())
}

// Login scans the shadow directory for an exact email+password match and
// synthesizes a session on a hit. A miss returns ErrNotFound so the caller
// can surface the original connectivity error instead.
func (f *FallbackStore) Login(ctx context.Context, email, password string) (*Credentials, error) {
	users, err := f.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			return &Credentials{
				Token: newLocalToken(),
				User:  types.UserSummary{ID: u.ID, Email: u.Email, Username: u.Username},
			}, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Signup appends a new shadow record after checking local uniqueness of
// email and username.
func (f *FallbackStore) Signup(ctx context.Context, email, username, password string) (*Credentials, error) {
	users, err := f.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return nil, fmt.Errorf("email already registered locally: %w", auth.ErrConflict)
		}
		if u.Username == username {
			return nil, fmt.Errorf("username already taken locally: %w", auth.ErrConflict)
		}
	}

	newUser := LocalUser{
		ID:       fmt.Sprintf("%s%d", localTokenPrefix, time.Now().UnixMilli()),
		Email:    email,
		Username: username,
		Password: password,
	}
	users = append(users, newUser)
	if err := f.saveUsers(ctx, users); err != nil {
		return nil, err
	}

	return &Credentials{
		Token: newLocalToken(),
		User:  types.UserSummary{ID: newUser.ID, Email: newUser.Email, Username: newUser.Username},
	}, nil
}

func (f *FallbackStore) loadUsers(ctx context.Context) ([]LocalUser, error) {
	raw, err := f.store.Get(ctx, KeyLocalUsers)
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to load local users: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var users []LocalUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("fallback: corrupt local user list: %w", err)
	}
	return users, nil
}

func (f *FallbackStore) saveUsers(ctx context.Context, users []LocalUser) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("fallback: failed to encode local users: %w", err)
	}
	if err := f.store.Set(ctx, KeyLocalUsers, raw); err != nil {
		return fmt.Errorf("fallback: failed to save local users: %w", err)
	}
	return nil
}
